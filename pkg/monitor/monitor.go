// Package monitor runs the batch processor on a recurring schedule,
// keeps a bounded history of runs and answers health queries about the
// schedule.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/prasanthmj/email-agent/pkg/processor"
)

// Run triggers recorded in history.
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerOneShot  = "one_shot"
)

// staleThreshold marks the monitor unhealthy when no run completed
// within it.
const staleThreshold = time.Hour

// BatchProcessor is the slice of processor.Processor the monitor
// drives.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, opts processor.BatchOptions) (*processor.BatchResult, error)
	Stats() (processor.StatsSnapshot, error)
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Running         bool                    `json:"running"`
	IntervalMinutes int                     `json:"interval_minutes"`
	LastRunAt       time.Time               `json:"last_run_at,omitzero"`
	LastRunSuccess  bool                    `json:"last_run_success"`
	NextRunAt       time.Time               `json:"next_run_at,omitzero"`
	RunsRecorded    int                     `json:"runs_recorded"`
	Stats           processor.StatsSnapshot `json:"stats"`
}

// Health is the result of a health check.
type Health struct {
	Healthy    bool          `json:"healthy"`
	LastRunAge time.Duration `json:"last_run_age,omitempty"`
	Issues     []string      `json:"issues,omitempty"`
}

// Monitor schedules recurring processing passes. Overlapping passes
// are coalesced: a tick that arrives while a run is in flight is
// dropped.
type Monitor struct {
	proc         BatchProcessor
	logger       *log.Logger
	history      *History
	misfireGrace time.Duration

	runMu sync.Mutex // held for the duration of a pass

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	running  bool
	oneShots map[string]*time.Timer

	// lastSuccessAt is seeded on Start and advanced only by successful
	// passes, so a monitor whose runs keep failing goes stale.
	lastSuccessAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// New builds a monitor over the processor. interval is the recurring
// check period; historyCapacity bounds the run history.
func New(proc BatchProcessor, interval time.Duration, historyCapacity int, misfireGrace time.Duration, logger *log.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		proc:         proc,
		logger:       logger,
		history:      NewHistory(historyCapacity),
		misfireGrace: misfireGrace,
		interval:     interval,
		oneShots:     make(map[string]*time.Timer),
		ctx:          ctx,
		cancel:       cancel,
		now:          time.Now,
	}
}

// Start begins the recurring schedule. Starting a running monitor is
// a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Debug("monitor already running")
		return nil
	}
	if m.ctx.Err() != nil {
		m.ctx, m.cancel = context.WithCancel(context.Background())
	}

	m.cron = cron.New()
	m.entryID = m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
		m.runPass(TriggerInterval)
	}))
	m.cron.Start()
	m.running = true
	if m.lastSuccessAt.IsZero() {
		m.lastSuccessAt = m.now()
	}

	m.logger.Info("monitor started", "interval", m.interval)
	return nil
}

// Stop halts the schedule and waits for an in-flight pass to finish.
// Pending one-shot jobs are cancelled.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCtx := m.cron.Stop()
	for id, timer := range m.oneShots {
		timer.Stop()
		delete(m.oneShots, id)
	}
	m.mu.Unlock()

	m.cancel()
	<-stopCtx.Done()

	// Wait out a pass started outside cron (manual or one-shot)
	m.runMu.Lock()
	m.logger.Info("monitor stopped")
	m.runMu.Unlock()
}

// UpdateInterval changes the recurring period. Minutes below one are
// rejected. Takes effect immediately when running.
func (m *Monitor) UpdateInterval(minutes int) error {
	if minutes < 1 {
		return errors.Errorf("interval must be at least 1 minute, got %d", minutes)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.interval = time.Duration(minutes) * time.Minute
	if m.running {
		m.cron.Remove(m.entryID)
		m.entryID = m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
			m.runPass(TriggerInterval)
		}))
	}

	m.logger.Info("check interval updated", "minutes", minutes)
	return nil
}

// RunNow triggers a pass immediately, bypassing the schedule. The
// pass still coalesces with any in-flight run.
func (m *Monitor) RunNow() {
	m.runPass(TriggerManual)
}

// ScheduleImmediate queues a single pass after delay and returns the
// job ID. The job is dropped if the monitor stops first.
func (m *Monitor) ScheduleImmediate(delay time.Duration) string {
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.oneShots[id] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.oneShots, id)
		m.mu.Unlock()
		m.runPass(TriggerOneShot)
	})

	m.logger.Info("one-shot check scheduled", "job_id", id, "delay", delay)
	return id
}

// runPass executes one processing pass under the single-flight lock.
// A pass arriving while another runs is dropped, not queued.
func (m *Monitor) runPass(trigger string) {
	if !m.runMu.TryLock() {
		m.logger.Warn("previous pass still running, skipping", "trigger", trigger)
		return
	}
	defer m.runMu.Unlock()

	if m.ctx.Err() != nil {
		return
	}

	rec := RunRecord{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: m.now(),
	}

	result, err := m.proc.ProcessBatch(m.ctx, processor.BatchOptions{})
	rec.Duration = m.now().Sub(rec.StartedAt)

	if err != nil {
		rec.Error = err.Error()
		m.logger.Error("processing pass failed", "trigger", trigger, "error", err)
	} else {
		rec.Success = true
		rec.Processed = result.Processed
		rec.Responded = result.Responded
		rec.Skipped = result.Skipped
		rec.Errors = result.Errors
		m.mu.Lock()
		m.lastSuccessAt = rec.StartedAt
		m.mu.Unlock()
	}

	m.history.Add(rec)
}

// Status reports the monitor state, schedule and lifetime counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Running:         m.running,
		IntervalMinutes: int(m.interval / time.Minute),
		RunsRecorded:    m.history.Len(),
	}
	if snap, err := m.proc.Stats(); err != nil {
		m.logger.Warn("stats unavailable", "error", err)
	} else {
		st.Stats = snap
	}

	if last, ok := m.history.LastRun(); ok {
		st.LastRunAt = last.StartedAt
		st.LastRunSuccess = last.Success
	}
	if m.running {
		st.NextRunAt = m.cron.Entry(m.entryID).Next
	}

	return st
}

// History returns up to n recent runs, newest first.
func (m *Monitor) History(n int) []RunRecord {
	return m.history.Last(n)
}

// RunHealthCheck evaluates schedule liveness. The monitor is unhealthy
// when stopped, when the last successful run is older than an hour, or
// when the next scheduled run is overdue past the misfire grace.
func (m *Monitor) RunHealthCheck() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := Health{Healthy: true}
	now := m.now()

	if !m.running {
		h.Healthy = false
		h.Issues = append(h.Issues, "monitor not running")
	}

	if !m.lastSuccessAt.IsZero() {
		h.LastRunAge = now.Sub(m.lastSuccessAt)
		if h.LastRunAge > staleThreshold {
			h.Healthy = false
			h.Issues = append(h.Issues, "last run older than one hour")
		}
	}
	if last, ok := m.history.LastRun(); ok && !last.Success {
		h.Healthy = false
		h.Issues = append(h.Issues, "last run failed")
	}

	if m.running {
		next := m.cron.Entry(m.entryID).Next
		if !next.IsZero() && now.After(next.Add(m.misfireGrace)) {
			h.Healthy = false
			h.Issues = append(h.Issues, "scheduled run overdue")
		}
	}

	if _, err := m.proc.Stats(); err != nil {
		h.Healthy = false
		h.Issues = append(h.Issues, fmt.Sprintf("stats unavailable: %v", err))
	}

	return h
}
