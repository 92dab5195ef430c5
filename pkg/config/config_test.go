package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearAgentEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"EMAIL_ADDRESS", "EMAIL_APP_PASSWORD", "EMAIL_PROVIDER",
		"EMAIL_IMAP_SERVER", "EMAIL_IMAP_PORT", "EMAIL_SMTP_SERVER", "EMAIL_SMTP_PORT",
		"AI_BASE_URL", "AI_MODEL", "AI_TEMPERATURE", "AI_MAX_TOKENS",
		"PROCESSING_ALLOWED_SENDERS", "PROCESSING_BLOCKED_SENDERS",
		"PROCESSING_QUIET_HOURS_START", "PROCESSING_QUIET_HOURS_END",
		"PROCESSING_DELETE_PROCESSED", "PROCESSING_MAX_BATCH",
		"AGENT_CONFIG_FILE",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearAgentEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Gmail auto-configuration is the default provider
	if cfg.IMAPServer != "imap.gmail.com" {
		t.Errorf("Expected imap.gmail.com, got %s", cfg.IMAPServer)
	}
	if cfg.IMAPPort != 993 {
		t.Errorf("Expected port 993, got %d", cfg.IMAPPort)
	}
	if cfg.SMTPServer != "smtp.gmail.com" {
		t.Errorf("Expected smtp.gmail.com, got %s", cfg.SMTPServer)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("Expected port 587, got %d", cfg.SMTPPort)
	}

	// Processing defaults
	if cfg.MaxEmailsPerBatch != 10 {
		t.Errorf("Expected batch size 10, got %d", cfg.MaxEmailsPerBatch)
	}
	if cfg.CheckIntervalMinutes != 5 {
		t.Errorf("Expected interval 5, got %d", cfg.CheckIntervalMinutes)
	}
	if cfg.QuietHoursStart != "22:00" || cfg.QuietHoursEnd != "08:00" {
		t.Errorf("Unexpected quiet hours: %s-%s", cfg.QuietHoursStart, cfg.QuietHoursEnd)
	}
	if cfg.RateLimitMaxSends != 5 || cfg.RateLimitWindowSeconds != 300 {
		t.Errorf("Unexpected rate limit defaults: %d/%ds", cfg.RateLimitMaxSends, cfg.RateLimitWindowSeconds)
	}
	if cfg.AIModel != "llama3.2:1b" {
		t.Errorf("Unexpected model default: %s", cfg.AIModel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearAgentEnv(t)

	t.Setenv("EMAIL_PROVIDER", "custom")
	t.Setenv("EMAIL_IMAP_SERVER", "imap.example.com")
	t.Setenv("EMAIL_IMAP_PORT", "143")
	t.Setenv("EMAIL_SMTP_SERVER", "smtp.example.com")
	t.Setenv("EMAIL_SMTP_PORT", "25")
	t.Setenv("PROCESSING_ALLOWED_SENDERS", "a@example.com, b@example.com")
	t.Setenv("PROCESSING_DELETE_PROCESSED", "false")
	t.Setenv("AI_TEMPERATURE", "0.2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.IMAPServer != "imap.example.com" || cfg.IMAPPort != 143 {
		t.Errorf("IMAP override not applied: %s:%d", cfg.IMAPServer, cfg.IMAPPort)
	}
	if len(cfg.AllowedSenders) != 2 || cfg.AllowedSenders[1] != "b@example.com" {
		t.Errorf("Allowed senders not parsed: %v", cfg.AllowedSenders)
	}
	if cfg.DeleteProcessed {
		t.Error("Expected DeleteProcessed=false")
	}
	if cfg.AITemperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %f", cfg.AITemperature)
	}
}

func TestLoadConfigOverlayFile(t *testing.T) {
	clearAgentEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	content := []byte(`
allowed_senders:
  - boss@example.com
blocked_senders:
  - noise@example.com
quiet_hours:
  start: "23:00"
  end: "06:30"
rate_limit:
  window_seconds: 600
  max_per_window: 3
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENT_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.AllowedSenders) != 1 || cfg.AllowedSenders[0] != "boss@example.com" {
		t.Errorf("Overlay allowed senders not applied: %v", cfg.AllowedSenders)
	}
	if len(cfg.BlockedSenders) != 1 || cfg.BlockedSenders[0] != "noise@example.com" {
		t.Errorf("Overlay blocked senders not applied: %v", cfg.BlockedSenders)
	}
	if cfg.QuietHoursStart != "23:00" || cfg.QuietHoursEnd != "06:30" {
		t.Errorf("Overlay quiet hours not applied: %s-%s", cfg.QuietHoursStart, cfg.QuietHoursEnd)
	}
	if cfg.RateLimitWindowSeconds != 600 || cfg.RateLimitMaxSends != 3 {
		t.Errorf("Overlay rate limit not applied: %d/%ds", cfg.RateLimitMaxSends, cfg.RateLimitWindowSeconds)
	}
}

func TestConfigValidate(t *testing.T) {
	clearAgentEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Valid config failed validation: %v", err)
	}

	cfg.MaxEmailsPerBatch = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero batch size")
	}
	cfg.MaxEmailsPerBatch = 10

	cfg.CheckIntervalMinutes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero check interval")
	}
	cfg.CheckIntervalMinutes = 5

	cfg.QuietHoursStart = "25:99"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for bad quiet hours")
	}
}

func TestValidateForOperation(t *testing.T) {
	cfg := &Config{
		IMAPServer: "imap.example.com",
		IMAPPort:   993,
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
	}

	if err := cfg.ValidateForOperation(); err == nil {
		t.Error("Expected error for missing credentials")
	}

	cfg.EmailAddress = "test@example.com"
	cfg.EmailPassword = "password"
	if err := cfg.ValidateForOperation(); err != nil {
		t.Errorf("Valid operation config failed: %v", err)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		minutes int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:00", 480, false},
		{"22:00", 1320, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"8am", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.minutes {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.minutes)
		}
	}
}
