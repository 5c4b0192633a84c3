/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/friendsincode/taskslot/internal/slotengine"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TASKSLOT_DB_DSN", "file::memory:")
	t.Setenv("TASKSLOT_DB_BACKEND", "sqlite")
	t.Setenv("TASKSLOT_JWT_SIGNING_KEY", "supersecret")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("TASKSLOT_ENV", "development")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr())
	}
}

func TestLoadAppliesPlanningDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DefaultPreferences != slotengine.NewPreferences() {
		t.Fatalf("unexpected default preferences: %+v", cfg.DefaultPreferences)
	}
	if cfg.ReminderLead != 15*time.Minute || cfg.SnoozeDuration != 120*time.Minute {
		t.Fatalf("unexpected reminder defaults: lead=%s snooze=%s", cfg.ReminderLead, cfg.SnoozeDuration)
	}
	if cfg.ReminderSchedule != "@every 1m" {
		t.Fatalf("unexpected reminder schedule: %q", cfg.ReminderSchedule)
	}
	if cfg.FallbackPolicy != slotengine.FallbackChunk || cfg.AllocationRule != slotengine.AllocationEitherEndpoint {
		t.Fatalf("unexpected engine policy: %s %s", cfg.FallbackPolicy, cfg.AllocationRule)
	}
	if cfg.PlanningHorizonDays != 60 {
		t.Fatalf("unexpected horizon: %d", cfg.PlanningHorizonDays)
	}
}

func TestLoadPlanningOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TASKSLOT_DEFAULT_WORK_START", "08:30")
	t.Setenv("TASKSLOT_DEFAULT_WORK_END", "20:00")
	t.Setenv("TASKSLOT_DEFAULT_DAILY_LIMIT_MINUTES", "300")
	t.Setenv("TASKSLOT_FALLBACK_POLICY", "strict")
	t.Setenv("TASKSLOT_ALLOCATION_RULE", "overlap")
	t.Setenv("TASKSLOT_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	p := cfg.DefaultPreferences
	if p.WorkStart != slotengine.Clock(8, 30) || p.WorkEnd != slotengine.Clock(20, 0) || p.DailyLimitMinutes != 300 {
		t.Fatalf("unexpected preferences: %+v", p)
	}
	if cfg.FallbackPolicy != slotengine.FallbackStrict || cfg.AllocationRule != slotengine.AllocationOverlap {
		t.Fatalf("unexpected engine policy: %s %s", cfg.FallbackPolicy, cfg.AllocationRule)
	}
	if cfg.Location.String() != "Europe/Berlin" {
		t.Fatalf("unexpected location: %s", cfg.Location)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"backend", "TASKSLOT_DB_BACKEND", "oracle"},
		{"work hours", "TASKSLOT_DEFAULT_WORK_START", "18:00"},
		{"clock", "TASKSLOT_DEFAULT_WORK_END", "five"},
		{"fallback", "TASKSLOT_FALLBACK_POLICY", "maybe"},
		{"rule", "TASKSLOT_ALLOCATION_RULE", "sometimes"},
		{"timezone", "TASKSLOT_TIMEZONE", "Mars/Olympus"},
		{"snooze", "TASKSLOT_SNOOZE_MINUTES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestLoadRequiresSigningKey(t *testing.T) {
	t.Setenv("TASKSLOT_DB_DSN", "file::memory:")
	t.Setenv("TASKSLOT_JWT_SIGNING_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected missing signing key to fail")
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) < 2 {
		t.Fatalf("expected legacy env warnings, got %v", cfg.LegacyEnvWarnings)
	}
}
