package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	BaseURL        string
	AdminTokenHash string
	// TrustProxyHeaders keys per-client limits on CF-Connecting-IP and
	// X-Forwarded-For. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
	Email             EmailConfig
	Reminders         ReminderConfig
	Queue             QueueConfig
}

type EmailConfig struct {
	PostmarkToken string
	From          string
	RatePerSec    float64
}

type ReminderConfig struct {
	Schedule string
	Timezone string
	Location *time.Location
}

type QueueConfig struct {
	Workers    int
	Size       int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// fileConfig mirrors the YAML layout. Pointers distinguish unset from zero.
type fileConfig struct {
	Port              string `yaml:"port"`
	DBPath            string `yaml:"db_path"`
	LogLevel          string `yaml:"log_level"`
	LogFormat         string `yaml:"log_format"`
	BaseURL           string `yaml:"base_url"`
	AdminTokenHash    string `yaml:"admin_token_hash"`
	TrustProxyHeaders *bool  `yaml:"trust_proxy_headers"`
	Email             struct {
		PostmarkToken string   `yaml:"postmark_token"`
		From          string   `yaml:"from"`
		RatePerSec    *float64 `yaml:"rate_per_sec"`
	} `yaml:"email"`
	Reminders struct {
		Schedule string `yaml:"schedule"`
		Timezone string `yaml:"timezone"`
	} `yaml:"reminders"`
	Queue struct {
		Workers    *int   `yaml:"workers"`
		Size       *int   `yaml:"size"`
		MaxRetries *int   `yaml:"max_retries"`
		RetryDelay string `yaml:"retry_delay"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"queue"`
}

func defaults() *Config {
	return &Config{
		Port:      "8080",
		DBPath:    "jobtrack.db",
		LogLevel:  "info",
		LogFormat: "text",
		Email: EmailConfig{
			From:       "noreply@jobtrack.local",
			RatePerSec: 10,
		},
		Reminders: ReminderConfig{
			Schedule: "0 9 * * *",
			Timezone: "UTC",
		},
		Queue: QueueConfig{
			Workers:    4,
			Size:       256,
			MaxRetries: 3,
			RetryDelay: 5 * time.Minute,
			Timeout:    30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// JOBTRACK_CONFIG if set, then JOBTRACK_* environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("JOBTRACK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	var f fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml unmarshal: %w", err)
	}

	setString(&c.Port, f.Port)
	setString(&c.DBPath, f.DBPath)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	setString(&c.BaseURL, f.BaseURL)
	setString(&c.AdminTokenHash, f.AdminTokenHash)
	if f.TrustProxyHeaders != nil {
		c.TrustProxyHeaders = *f.TrustProxyHeaders
	}
	setString(&c.Email.PostmarkToken, f.Email.PostmarkToken)
	setString(&c.Email.From, f.Email.From)
	if f.Email.RatePerSec != nil {
		c.Email.RatePerSec = *f.Email.RatePerSec
	}
	setString(&c.Reminders.Schedule, f.Reminders.Schedule)
	setString(&c.Reminders.Timezone, f.Reminders.Timezone)
	if f.Queue.Workers != nil {
		c.Queue.Workers = *f.Queue.Workers
	}
	if f.Queue.Size != nil {
		c.Queue.Size = *f.Queue.Size
	}
	if f.Queue.MaxRetries != nil {
		c.Queue.MaxRetries = *f.Queue.MaxRetries
	}

	var err error
	if c.Queue.RetryDelay, err = parseDuration("queue.retry_delay", f.Queue.RetryDelay, c.Queue.RetryDelay); err != nil {
		return err
	}
	if c.Queue.Timeout, err = parseDuration("queue.timeout", f.Queue.Timeout, c.Queue.Timeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, os.Getenv("JOBTRACK_PORT"))
	setString(&c.DBPath, os.Getenv("JOBTRACK_DB_PATH"))
	setString(&c.LogLevel, os.Getenv("JOBTRACK_LOG_LEVEL"))
	setString(&c.LogFormat, os.Getenv("JOBTRACK_LOG_FORMAT"))
	setString(&c.BaseURL, os.Getenv("JOBTRACK_BASE_URL"))
	setString(&c.AdminTokenHash, os.Getenv("JOBTRACK_ADMIN_TOKEN_HASH"))
	setString(&c.Email.PostmarkToken, os.Getenv("JOBTRACK_POSTMARK_TOKEN"))
	setString(&c.Email.From, os.Getenv("JOBTRACK_FROM_EMAIL"))
	setString(&c.Reminders.Schedule, os.Getenv("JOBTRACK_SCAN_SCHEDULE"))
	setString(&c.Reminders.Timezone, os.Getenv("JOBTRACK_TIMEZONE"))

	if v := os.Getenv("JOBTRACK_TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("JOBTRACK_TRUST_PROXY_HEADERS: invalid boolean %q", v)
		}
		c.TrustProxyHeaders = b
	}

	if v := os.Getenv("JOBTRACK_EMAIL_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("JOBTRACK_EMAIL_RATE: invalid number %q", v)
		}
		c.Email.RatePerSec = f
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"JOBTRACK_WORKERS", &c.Queue.Workers},
		{"JOBTRACK_QUEUE_SIZE", &c.Queue.Size},
		{"JOBTRACK_MAX_RETRIES", &c.Queue.MaxRetries},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", e.key, v)
		}
		*e.dst = n
	}

	var err error
	if c.Queue.RetryDelay, err = parseDuration("JOBTRACK_RETRY_DELAY", os.Getenv("JOBTRACK_RETRY_DELAY"), c.Queue.RetryDelay); err != nil {
		return err
	}
	if c.Queue.Timeout, err = parseDuration("JOBTRACK_SEND_TIMEOUT", os.Getenv("JOBTRACK_SEND_TIMEOUT"), c.Queue.Timeout); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error

	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Reminders.Timezone, err))
	}
	c.Reminders.Location = loc

	if c.Queue.Workers <= 0 {
		errs = append(errs, fmt.Errorf("queue workers must be > 0, got %d", c.Queue.Workers))
	}
	if c.Queue.Size <= 0 {
		errs = append(errs, fmt.Errorf("queue size must be > 0, got %d", c.Queue.Size))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", c.Queue.MaxRetries))
	}
	if c.Email.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("email rate must be >= 0, got %v", c.Email.RatePerSec))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// parseDuration returns def for an empty value and rejects negative durations.
func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", field)
	}
	return d, nil
}
