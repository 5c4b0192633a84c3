/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FallbackPolicy decides what happens when a one-go task cannot be placed in a single session.
type FallbackPolicy int

const (
	// FallbackChunk splits the task across days anyway.
	FallbackChunk FallbackPolicy = iota
	// FallbackStrict returns an empty result instead of splitting.
	FallbackStrict
)

func (p FallbackPolicy) String() string {
	if p == FallbackStrict {
		return "strict"
	}
	return "chunk"
}

// ParseFallbackPolicy accepts "chunk" or "strict".
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chunk":
		return FallbackChunk, nil
	case "strict":
		return FallbackStrict, nil
	}
	return 0, fmt.Errorf("unknown fallback policy %q", s)
}

// Engine places tasks into free time. It holds no mutable state and may be
// shared between goroutines.
type Engine struct {
	loc            *time.Location
	now            func() time.Time
	fallback       FallbackPolicy
	rule           AllocationRule
	maxHorizonDays int
	step           time.Duration
	defaults       Preferences
	logger         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the civil calendar used for days and work hours.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the source of the implicit search start.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(e *Engine) { e.fallback = p }
}

func WithAllocationRule(r AllocationRule) Option {
	return func(e *Engine) { e.rule = r }
}

// WithMaxHorizonDays caps how many days are scanned. Zero means up to the due date.
func WithMaxHorizonDays(days int) Option {
	return func(e *Engine) {
		if days >= 0 {
			e.maxHorizonDays = days
		}
	}
}

// WithGranularity sets the candidate step. Non-positive values are ignored.
func WithGranularity(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.step = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With().Str("component", "slotengine").Logger() }
}

// WithDefaultPreferences sets the preferences used when a call passes the zero
// Preferences and the base for absent fields of a Request.
func WithDefaultPreferences(p Preferences) Option {
	return func(e *Engine) {
		if p != (Preferences{}) {
			e.defaults = p
		}
	}
}

// New creates an engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		loc:      time.Local,
		now:      time.Now,
		step:     DefaultGranularity,
		defaults: NewPreferences(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the engine's civil calendar.
func (e *Engine) Location() *time.Location { return e.loc }

// Schedule places task starting from the engine's current time.
func (e *Engine) Schedule(task TaskRequest, busy []BusyInterval, prefs Preferences) (Result, error) {
	return e.ScheduleFrom(e.now(), task, busy, prefs)
}

// ScheduleFrom places task no earlier than searchStart. Infeasible and
// partially feasible requests are not errors; inspect the Result.
// The zero Preferences selects the engine defaults; any other value is
// validated as given.
func (e *Engine) ScheduleFrom(searchStart time.Time, task TaskRequest, busy []BusyInterval, prefs Preferences) (Result, error) {
	if prefs == (Preferences{}) {
		prefs = e.defaults
	}
	if err := Validate(searchStart, task, prefs); err != nil {
		return Result{}, err
	}
	searchStart = searchStart.In(e.loc)
	due := task.DueDate.In(e.loc)

	res := Result{RequestedMinutes: task.DurationMinutes, Strategy: StrategyNone}
	log := e.logger.With().
		Int("minutes", task.DurationMinutes).
		Time("due", due).
		Bool("allow_split", task.AllowSplit).
		Logger()

	if !task.AllowSplit {
		if task.DurationMinutes <= prefs.DailyLimitMinutes {
			if slot, ok := e.findContinuous(searchStart, due, task.DurationMinutes, busy, prefs); ok {
				res.Slots = []ScheduledSlot{slot}
				res.Strategy = StrategyContinuous
				log.Debug().Time("start", slot.Start).Msg("placed continuous session")
				return res, nil
			}
		}
		if e.fallback == FallbackStrict {
			log.Debug().Msg("no continuous session and strict fallback")
			return res, nil
		}
	}

	res.Slots = e.findChunked(searchStart, due, task.DurationMinutes, busy, prefs)
	if len(res.Slots) > 0 {
		res.Strategy = StrategyChunked
	}
	log.Debug().
		Int("chunks", len(res.Slots)).
		Int("remaining", res.RemainingMinutes()).
		Msg("chunked search finished")
	return res, nil
}

// Schedule runs a default engine in the local time zone.
func Schedule(task TaskRequest, busy []BusyInterval, prefs Preferences) (Result, error) {
	return New().Schedule(task, busy, prefs)
}

// Validate reports the input errors ScheduleFrom would return for these
// arguments, without searching.
func Validate(searchStart time.Time, task TaskRequest, prefs Preferences) error {
	if task.DurationMinutes <= 0 {
		return invalid("duration_minutes", "must be positive")
	}
	if task.DueDate.IsZero() {
		return invalid("due_date", "is required")
	}
	if task.DueDate.Before(searchStart) {
		return invalid("due_date", "is before the search start")
	}
	return prefs.Validate()
}

// eachDay calls fn for local midnight of every civil date from searchStart to
// due inclusive until fn returns false or the horizon cap is hit.
func (e *Engine) eachDay(searchStart, due time.Time, fn func(day time.Time) bool) {
	last := startOfDay(due.In(e.loc))
	day := startOfDay(searchStart.In(e.loc))
	for i := 0; !day.After(last); i++ {
		if e.maxHorizonDays > 0 && i >= e.maxHorizonDays {
			e.logger.Debug().Int("days", i).Msg("planning horizon reached")
			return
		}
		if !fn(day) {
			return
		}
		day = nextDay(day)
	}
}
