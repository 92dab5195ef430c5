// Package storage persists the processing audit trail: one record per
// handled email, kept in a size-capped YAML log under the agent's data
// directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// AuditRecord is one processed-email entry in the trail.
type AuditRecord struct {
	ID        string    `yaml:"id"`
	Timestamp time.Time `yaml:"timestamp"`
	Sender    string    `yaml:"sender"`
	Subject   string    `yaml:"subject"`
	Action    string    `yaml:"action"`
	Outcome   string    `yaml:"outcome"`
	Reason    string    `yaml:"reason,omitempty"`
	DryRun    bool      `yaml:"dry_run,omitempty"`
}

type auditLog struct {
	Version int           `yaml:"audit_version"`
	Records []AuditRecord `yaml:"records"`
}

// AuditTrail appends processing records to a YAML file, evicting the
// oldest entries when the file grows past maxSize bytes.
type AuditTrail struct {
	mu       sync.Mutex
	rootDir  string
	filePath string
	maxSize  int64
}

// NewAuditTrail creates the trail rooted at rootDir, creating the
// directory as needed.
func NewAuditTrail(rootDir string, maxSize int64) (*AuditTrail, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	return &AuditTrail{
		rootDir:  rootDir,
		filePath: filepath.Join(rootDir, "audit.yaml"),
		maxSize:  maxSize,
	}, nil
}

// Record appends one entry. The record ID and timestamp are filled in
// when empty.
func (a *AuditTrail) Record(rec AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	log, err := a.load()
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	log.Records = append(log.Records, rec)
	return a.save(log)
}

// Recent returns up to n most recent records, newest first.
func (a *AuditTrail) Recent(n int) ([]AuditRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	log, err := a.load()
	if err != nil {
		return nil, err
	}

	records := log.Records
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}

	// Newest first
	out := make([]AuditRecord, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out, nil
}

// Clear removes all records.
func (a *AuditTrail) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save(&auditLog{Version: 1})
}

func (a *AuditTrail) load() (*auditLog, error) {
	data, err := os.ReadFile(a.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &auditLog{Version: 1}, nil
		}
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	var log auditLog
	if err := yaml.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse audit log: %w", err)
	}
	return &log, nil
}

func (a *AuditTrail) save(log *auditLog) error {
	data, err := yaml.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log: %w", err)
	}

	// Evict oldest records while the serialized log is over the cap
	for a.maxSize > 0 && int64(len(data)) > a.maxSize && len(log.Records) > 1 {
		log.Records = log.Records[1:]
		data, err = yaml.Marshal(log)
		if err != nil {
			return fmt.Errorf("failed to marshal audit log: %w", err)
		}
	}

	if err := os.WriteFile(a.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
