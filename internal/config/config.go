// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr        string
	DBPath            string
	GitHubTimeout     time.Duration
	StaleWindow       time.Duration
	SchedulerInterval time.Duration
	ReportHour        int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// HasSMTP returns true when an SMTP host and sender address are configured.
// Used by the composition root to decide whether to start the report
// scheduler or log reports as undeliverable.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. SMTP settings are optional; if absent, the app starts but scheduled
// report delivery is inactive. Optional variables with defaults:
// REPOPULSE_LISTEN_ADDR (127.0.0.1:8080), REPOPULSE_DB_PATH (repopulse.db),
// REPOPULSE_GITHUB_TIMEOUT (30s), REPOPULSE_STALE_WINDOW (1h),
// REPOPULSE_SCHEDULER_INTERVAL (1h), REPOPULSE_REPORT_HOUR (8),
// REPOPULSE_SMTP_PORT (587).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("REPOPULSE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "repopulse.db"
	if v, ok := os.LookupEnv("REPOPULSE_DB_PATH"); ok {
		dbPath = v
	}

	githubTimeout, err := durationEnv("REPOPULSE_GITHUB_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	staleWindow, err := durationEnv("REPOPULSE_STALE_WINDOW", time.Hour)
	if err != nil {
		return nil, err
	}

	schedulerInterval, err := durationEnv("REPOPULSE_SCHEDULER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	reportHour := 8
	if v, ok := os.LookupEnv("REPOPULSE_REPORT_HOUR"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 23 {
			return nil, fmt.Errorf("REPOPULSE_REPORT_HOUR must be an hour between 0 and 23, got %q", v)
		}
		reportHour = parsed
	}

	smtpPort := 587
	if v, ok := os.LookupEnv("REPOPULSE_SMTP_PORT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 65535 {
			return nil, fmt.Errorf("REPOPULSE_SMTP_PORT has invalid port %q", v)
		}
		smtpPort = parsed
	}

	return &Config{
		ListenAddr:        listenAddr,
		DBPath:            dbPath,
		GitHubTimeout:     githubTimeout,
		StaleWindow:       staleWindow,
		SchedulerInterval: schedulerInterval,
		ReportHour:        reportHour,
		SMTPHost:          os.Getenv("REPOPULSE_SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUsername:      os.Getenv("REPOPULSE_SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("REPOPULSE_SMTP_PASSWORD"),
		SMTPFrom:          os.Getenv("REPOPULSE_SMTP_FROM"),
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, v)
	}
	return parsed, nil
}
