package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobtrack.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JOBTRACK_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "jobtrack.db" {
		t.Errorf("port/db = %q/%q", cfg.Port, cfg.DBPath)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Reminders.Schedule != "0 9 * * *" || cfg.Reminders.Location != time.UTC {
		t.Errorf("reminders = %+v", cfg.Reminders)
	}
	want := QueueConfig{Workers: 4, Size: 256, MaxRetries: 3, RetryDelay: 5 * time.Minute, Timeout: 30 * time.Second}
	if cfg.Queue != want {
		t.Errorf("queue = %+v, want %+v", cfg.Queue, want)
	}
	if cfg.TrustProxyHeaders {
		t.Error("proxy headers should not be trusted by default")
	}
	if cfg.Email.RatePerSec != 10 || cfg.Email.PostmarkToken != "" {
		t.Errorf("email = %+v", cfg.Email)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
log_format: json
trust_proxy_headers: true
email:
  postmark_token: file-token
  rate_per_sec: 2.5
reminders:
  schedule: "30 7 * * *"
  timezone: America/New_York
queue:
  workers: 8
  max_retries: 0
  retry_delay: 90s
`)
	t.Setenv("JOBTRACK_CONFIG", path)
	t.Setenv("JOBTRACK_POSTMARK_TOKEN", "env-token")
	t.Setenv("JOBTRACK_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.LogFormat != "json" {
		t.Errorf("port/format = %q/%q", cfg.Port, cfg.LogFormat)
	}
	if !cfg.TrustProxyHeaders {
		t.Error("trust_proxy_headers from file not applied")
	}
	if cfg.Email.PostmarkToken != "env-token" {
		t.Errorf("env should override file, token = %q", cfg.Email.PostmarkToken)
	}
	if cfg.Email.RatePerSec != 2.5 {
		t.Errorf("rate = %v", cfg.Email.RatePerSec)
	}
	if cfg.Reminders.Location.String() != "America/New_York" {
		t.Errorf("location = %v", cfg.Reminders.Location)
	}
	if cfg.Queue.Workers != 2 || cfg.Queue.MaxRetries != 0 || cfg.Queue.RetryDelay != 90*time.Second {
		t.Errorf("queue = %+v", cfg.Queue)
	}
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	t.Setenv("JOBTRACK_CONFIG", writeConfig(t, "prot: 9000\n"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("JOBTRACK_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad timezone", "JOBTRACK_TIMEZONE", "Mars/Olympus", "timezone"},
		{"zero workers", "JOBTRACK_WORKERS", "0", "workers"},
		{"negative retries", "JOBTRACK_MAX_RETRIES", "-1", "max retries"},
		{"bad integer", "JOBTRACK_QUEUE_SIZE", "lots", "JOBTRACK_QUEUE_SIZE"},
		{"bad duration", "JOBTRACK_RETRY_DELAY", "soon", "JOBTRACK_RETRY_DELAY"},
		{"negative duration", "JOBTRACK_SEND_TIMEOUT", "-5s", "JOBTRACK_SEND_TIMEOUT"},
		{"bad rate", "JOBTRACK_EMAIL_RATE", "fast", "JOBTRACK_EMAIL_RATE"},
		{"bad proxy flag", "JOBTRACK_TRUST_PROXY_HEADERS", "maybe", "JOBTRACK_TRUST_PROXY_HEADERS"},
		{"bad log format", "JOBTRACK_LOG_FORMAT", "xml", "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JOBTRACK_CONFIG", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
