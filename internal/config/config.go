/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/taskslot/internal/slotengine"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string
	CacheEnabled          bool          // Cache user preferences in Redis
	PreferenceCacheTTL    time.Duration // TASKSLOT_PREFERENCE_CACHE_TTL_SECONDS

	// NATS event forwarding; empty disables it
	NATSURL     string
	NATSSubject string

	// Planning defaults
	DefaultPreferences  slotengine.Preferences
	Location            *time.Location
	PlanningHorizonDays int
	FallbackPolicy      slotengine.FallbackPolicy
	AllocationRule      slotengine.AllocationRule

	// Reminders
	ReminderLead     time.Duration // How long before a session its reminder fires
	ReminderSchedule string        // Cron spec for the reminder dispatcher
	SnoozeDuration   time.Duration

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"TASKSLOT_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"TASKSLOT_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"TASKSLOT_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"TASKSLOT_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"TASKSLOT_DB_DSN"}, ""),
		JWTSigningKey: getEnvAny([]string{"TASKSLOT_JWT_SIGNING_KEY"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"TASKSLOT_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"TASKSLOT_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"TASKSLOT_TRACING_SAMPLE_RATE"}, 1.0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"TASKSLOT_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"TASKSLOT_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"TASKSLOT_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"TASKSLOT_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"TASKSLOT_INSTANCE_ID", "HOSTNAME"}, ""),
		CacheEnabled:          getEnvBoolAny([]string{"TASKSLOT_CACHE_ENABLED"}, false),
		PreferenceCacheTTL:    time.Duration(getEnvIntAny([]string{"TASKSLOT_PREFERENCE_CACHE_TTL_SECONDS"}, 300)) * time.Second,

		NATSURL:     getEnvAny([]string{"TASKSLOT_NATS_URL"}, ""),
		NATSSubject: getEnvAny([]string{"TASKSLOT_NATS_SUBJECT"}, "taskslot.events"),

		PlanningHorizonDays: getEnvIntAny([]string{"TASKSLOT_PLANNING_HORIZON_DAYS"}, 60),

		ReminderLead:     time.Duration(getEnvIntAny([]string{"TASKSLOT_REMINDER_LEAD_MINUTES"}, 15)) * time.Minute,
		ReminderSchedule: getEnvAny([]string{"TASKSLOT_REMINDER_SCHEDULE"}, "@every 1m"),
		SnoozeDuration:   time.Duration(getEnvIntAny([]string{"TASKSLOT_SNOOZE_MINUTES"}, 120)) * time.Minute,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("TASKSLOT_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("TASKSLOT_JWT_SIGNING_KEY must be provided")
	}

	prefs, err := loadPreferences()
	if err != nil {
		return nil, err
	}
	cfg.DefaultPreferences = prefs

	tz := getEnvAny([]string{"TASKSLOT_TIMEZONE"}, "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TASKSLOT_TIMEZONE: %w", err)
	}

	if cfg.FallbackPolicy, err = slotengine.ParseFallbackPolicy(getEnvAny([]string{"TASKSLOT_FALLBACK_POLICY"}, "chunk")); err != nil {
		return nil, fmt.Errorf("TASKSLOT_FALLBACK_POLICY: %w", err)
	}
	if cfg.AllocationRule, err = slotengine.ParseAllocationRule(getEnvAny([]string{"TASKSLOT_ALLOCATION_RULE"}, "either_endpoint")); err != nil {
		return nil, fmt.Errorf("TASKSLOT_ALLOCATION_RULE: %w", err)
	}

	if cfg.PlanningHorizonDays < 0 {
		return nil, fmt.Errorf("TASKSLOT_PLANNING_HORIZON_DAYS must not be negative")
	}
	if cfg.ReminderLead < 0 {
		return nil, fmt.Errorf("TASKSLOT_REMINDER_LEAD_MINUTES must not be negative")
	}
	if cfg.SnoozeDuration <= 0 {
		return nil, fmt.Errorf("TASKSLOT_SNOOZE_MINUTES must be positive")
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func loadPreferences() (slotengine.Preferences, error) {
	start, err := slotengine.ParseClock(getEnvAny([]string{"TASKSLOT_DEFAULT_WORK_START"}, "09:00"))
	if err != nil {
		return slotengine.Preferences{}, fmt.Errorf("TASKSLOT_DEFAULT_WORK_START: %w", err)
	}
	end, err := slotengine.ParseClock(getEnvAny([]string{"TASKSLOT_DEFAULT_WORK_END"}, "17:00"))
	if err != nil {
		return slotengine.Preferences{}, fmt.Errorf("TASKSLOT_DEFAULT_WORK_END: %w", err)
	}
	prefs := slotengine.NewPreferences(
		slotengine.WithDailyLimit(getEnvIntAny([]string{"TASKSLOT_DEFAULT_DAILY_LIMIT_MINUTES"}, slotengine.DefaultDailyLimitMinutes)),
		slotengine.WithWorkHours(start, end),
	)
	if err := prefs.Validate(); err != nil {
		return slotengine.Preferences{}, fmt.Errorf("default preferences: %w", err)
	}
	return prefs, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DATABASE_URL":    "use TASKSLOT_DB_DSN",
		"JWT_SECRET":      "use TASKSLOT_JWT_SIGNING_KEY",
		"REDIS_URL":       "use TASKSLOT_REDIS_ADDR",
		"TRACING_ENABLED": "use TASKSLOT_TRACING_ENABLED",
		"OTLP_ENDPOINT":   "use TASKSLOT_OTLP_ENDPOINT",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
