package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Email account
	EmailAddress  string
	EmailPassword string
	Provider      string // gmail, outlook, or custom

	// IMAP settings
	IMAPServer string
	IMAPPort   int

	// SMTP settings
	SMTPServer string
	SMTPPort   int

	// Generation service settings
	AIBaseURL        string
	AIAPIKey         string
	AIModel          string
	AITemperature    float64
	AIMaxTokens      int64
	AITimeoutSeconds int
	AITimeout        time.Duration

	// Processing settings
	AutoReplyEnabled     bool
	DeleteProcessed      bool
	MaxEmailsPerBatch    int
	CheckIntervalMinutes int
	QuietHoursStart      string
	QuietHoursEnd        string
	AllowedSenders       []string
	BlockedSenders       []string

	// Security settings
	ContentFilterEnabled bool
	MaxContentChars      int
	MaxAttachmentSize    int64

	// Rate limit settings
	RateLimitWindowSeconds int
	RateLimitWindow        time.Duration
	RateLimitMaxSends      int

	// Monitor settings
	HistoryCapacity     int
	MisfireGraceMinutes int
	MisfireGrace        time.Duration

	// Audit trail settings
	AuditEnabled bool
	AuditRoot    string
	AuditMaxSize int64

	TimeoutSeconds int
	Timeout        time.Duration
}

// overlay is the optional YAML config file. It carries the list-valued and
// time-window settings that are awkward to express as environment variables.
type overlay struct {
	AllowedSenders []string `yaml:"allowed_senders"`
	BlockedSenders []string `yaml:"blocked_senders"`
	QuietHours     struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"quiet_hours"`
	RateLimit struct {
		WindowSeconds int `yaml:"window_seconds"`
		MaxPerWindow  int `yaml:"max_per_window"`
	} `yaml:"rate_limit"`
}

// LoadConfig loads configuration from environment variables, with an optional
// .env file and an optional YAML overlay pointed at by AGENT_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Provider:               "gmail",
		AIBaseURL:              "http://localhost:11434/v1",
		AIAPIKey:               "ollama",
		AIModel:                "llama3.2:1b",
		AITemperature:          0.7,
		AIMaxTokens:            500,
		AITimeoutSeconds:       30,
		AutoReplyEnabled:       true,
		DeleteProcessed:        true,
		MaxEmailsPerBatch:      10,
		CheckIntervalMinutes:   5,
		QuietHoursStart:        "22:00",
		QuietHoursEnd:          "08:00",
		ContentFilterEnabled:   true,
		MaxContentChars:        50000,
		MaxAttachmentSize:      5242880, // 5MB default
		RateLimitWindowSeconds: 300,
		RateLimitMaxSends:      5,
		HistoryCapacity:        100,
		MisfireGraceMinutes:    5,
		AuditEnabled:           true,
		AuditRoot:              "/tmp/email-agent",
		AuditMaxSize:           10485760, // 10MB default
		TimeoutSeconds:         120,
	}

	// Email account settings (optional at startup)
	cfg.EmailAddress = os.Getenv("EMAIL_ADDRESS")
	cfg.EmailPassword = os.Getenv("EMAIL_APP_PASSWORD")

	// Provider
	if provider := os.Getenv("EMAIL_PROVIDER"); provider != "" {
		cfg.Provider = provider
	}

	// Auto-configure for known providers
	switch cfg.Provider {
	case "gmail":
		cfg.IMAPServer = "imap.gmail.com"
		cfg.IMAPPort = 993
		cfg.SMTPServer = "smtp.gmail.com"
		cfg.SMTPPort = 587
	case "outlook":
		cfg.IMAPServer = "outlook.office365.com"
		cfg.IMAPPort = 993
		cfg.SMTPServer = "smtp-mail.outlook.com"
		cfg.SMTPPort = 587
	}

	// Override with explicit settings if provided
	if server := os.Getenv("EMAIL_IMAP_SERVER"); server != "" {
		cfg.IMAPServer = server
	}
	if port := os.Getenv("EMAIL_IMAP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid EMAIL_IMAP_PORT: %w", err)
		}
		cfg.IMAPPort = p
	}
	if server := os.Getenv("EMAIL_SMTP_SERVER"); server != "" {
		cfg.SMTPServer = server
	}
	if port := os.Getenv("EMAIL_SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid EMAIL_SMTP_PORT: %w", err)
		}
		cfg.SMTPPort = p
	}

	// Generation service settings
	if url := os.Getenv("AI_BASE_URL"); url != "" {
		cfg.AIBaseURL = url
	}
	if key := os.Getenv("AI_API_KEY"); key != "" {
		cfg.AIAPIKey = key
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		cfg.AIModel = model
	}
	if temp := os.Getenv("AI_TEMPERATURE"); temp != "" {
		t, err := strconv.ParseFloat(temp, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_TEMPERATURE: %w", err)
		}
		cfg.AITemperature = t
	}
	if tokens := os.Getenv("AI_MAX_TOKENS"); tokens != "" {
		n, err := strconv.ParseInt(tokens, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_MAX_TOKENS: %w", err)
		}
		cfg.AIMaxTokens = n
	}
	if timeout := os.Getenv("AI_TIMEOUT_SECONDS"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid AI_TIMEOUT_SECONDS: %w", err)
		}
		cfg.AITimeoutSeconds = t
	}

	// Processing settings
	if v := os.Getenv("PROCESSING_AUTO_REPLY"); v != "" {
		cfg.AutoReplyEnabled = parseBool(v)
	}
	if v := os.Getenv("PROCESSING_DELETE_PROCESSED"); v != "" {
		cfg.DeleteProcessed = parseBool(v)
	}
	if v := os.Getenv("PROCESSING_MAX_BATCH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESSING_MAX_BATCH: %w", err)
		}
		cfg.MaxEmailsPerBatch = n
	}
	if v := os.Getenv("PROCESSING_CHECK_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PROCESSING_CHECK_INTERVAL_MINUTES: %w", err)
		}
		cfg.CheckIntervalMinutes = n
	}
	if v := os.Getenv("PROCESSING_QUIET_HOURS_START"); v != "" {
		cfg.QuietHoursStart = v
	}
	if v := os.Getenv("PROCESSING_QUIET_HOURS_END"); v != "" {
		cfg.QuietHoursEnd = v
	}
	if v := os.Getenv("PROCESSING_ALLOWED_SENDERS"); v != "" {
		cfg.AllowedSenders = splitList(v)
	}
	if v := os.Getenv("PROCESSING_BLOCKED_SENDERS"); v != "" {
		cfg.BlockedSenders = splitList(v)
	}

	// Security settings
	if v := os.Getenv("SECURITY_CONTENT_FILTER"); v != "" {
		cfg.ContentFilterEnabled = parseBool(v)
	}
	if v := os.Getenv("SECURITY_MAX_CONTENT_CHARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SECURITY_MAX_CONTENT_CHARS: %w", err)
		}
		cfg.MaxContentChars = n
	}
	if v := os.Getenv("SECURITY_MAX_ATTACHMENT_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SECURITY_MAX_ATTACHMENT_SIZE: %w", err)
		}
		cfg.MaxAttachmentSize = n
	}

	// Audit trail settings
	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		cfg.AuditEnabled = parseBool(v)
	}
	if root := os.Getenv("AUDIT_ROOT"); root != "" {
		cfg.AuditRoot = root
	}
	if v := os.Getenv("AUDIT_MAX_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIT_MAX_SIZE: %w", err)
		}
		cfg.AuditMaxSize = n
	}

	if timeout := os.Getenv("EMAIL_TIMEOUT_SECONDS"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid EMAIL_TIMEOUT_SECONDS: %w", err)
		}
		cfg.TimeoutSeconds = t
	}

	// Optional YAML overlay for list-valued settings
	if path := os.Getenv("AGENT_CONFIG_FILE"); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, err
		}
	}

	// Derived durations
	cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	cfg.AITimeout = time.Duration(cfg.AITimeoutSeconds) * time.Second
	cfg.RateLimitWindow = time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	cfg.MisfireGrace = time.Duration(cfg.MisfireGraceMinutes) * time.Minute

	// Validate required IMAP/SMTP settings
	if cfg.IMAPServer == "" {
		return nil, fmt.Errorf("EMAIL_IMAP_SERVER is required")
	}
	if cfg.IMAPPort == 0 {
		return nil, fmt.Errorf("EMAIL_IMAP_PORT is required")
	}
	if cfg.SMTPServer == "" {
		return nil, fmt.Errorf("EMAIL_SMTP_SERVER is required")
	}
	if cfg.SMTPPort == 0 {
		return nil, fmt.Errorf("EMAIL_SMTP_PORT is required")
	}

	return cfg, nil
}

// applyOverlay merges the YAML overlay file into the config.
func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if len(o.AllowedSenders) > 0 {
		c.AllowedSenders = o.AllowedSenders
	}
	if len(o.BlockedSenders) > 0 {
		c.BlockedSenders = o.BlockedSenders
	}
	if o.QuietHours.Start != "" {
		c.QuietHoursStart = o.QuietHours.Start
	}
	if o.QuietHours.End != "" {
		c.QuietHoursEnd = o.QuietHours.End
	}
	if o.RateLimit.WindowSeconds > 0 {
		c.RateLimitWindowSeconds = o.RateLimit.WindowSeconds
	}
	if o.RateLimit.MaxPerWindow > 0 {
		c.RateLimitMaxSends = o.RateLimit.MaxPerWindow
	}

	return nil
}

// IsConfigured checks if email credentials are available
func (c *Config) IsConfigured() bool {
	return c.EmailAddress != "" && c.EmailPassword != ""
}

// ValidateForOperation checks if configuration is valid for email operations
func (c *Config) ValidateForOperation() error {
	if c.EmailAddress == "" {
		return fmt.Errorf("email not configured: EMAIL_ADDRESS environment variable is required")
	}
	if c.EmailPassword == "" {
		return fmt.Errorf("email not configured: EMAIL_APP_PASSWORD environment variable is required")
	}
	if c.IMAPServer == "" || c.IMAPPort == 0 {
		return fmt.Errorf("IMAP server configuration is incomplete")
	}
	if c.SMTPServer == "" || c.SMTPPort == 0 {
		return fmt.Errorf("SMTP server configuration is incomplete")
	}
	return nil
}

// Validate checks if basic configuration is valid (used for startup)
func (c *Config) Validate() error {
	if c.MaxEmailsPerBatch <= 0 {
		return fmt.Errorf("invalid batch size")
	}
	if c.CheckIntervalMinutes < 1 {
		return fmt.Errorf("check interval must be at least 1 minute")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid timeout")
	}
	if c.RateLimitMaxSends <= 0 || c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("invalid rate limit settings")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("invalid history capacity")
	}
	if _, err := ParseClock(c.QuietHoursStart); err != nil {
		return fmt.Errorf("invalid quiet hours start: %w", err)
	}
	if _, err := ParseClock(c.QuietHoursEnd); err != nil {
		return fmt.Errorf("invalid quiet hours end: %w", err)
	}
	return nil
}

// ParseClock parses an HH:MM wall-clock string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
