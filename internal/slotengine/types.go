/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IntervalKind distinguishes calendar commitments from task work already placed.
type IntervalKind string

const (
	KindEvent IntervalKind = "event"
	KindTask  IntervalKind = "task"
)

// BusyInterval is a half-open [Start, End) commitment that new work must not overlap.
// The zero Kind is treated as a calendar event.
type BusyInterval struct {
	Start time.Time    `json:"start" yaml:"start"`
	End   time.Time    `json:"end" yaml:"end"`
	Kind  IntervalKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Label string       `json:"label,omitempty" yaml:"label,omitempty"`
}

// Minutes returns the interval length in whole minutes.
func (b BusyInterval) Minutes() int {
	if !b.Start.Before(b.End) {
		return 0
	}
	return int(b.End.Sub(b.Start) / time.Minute)
}

// TaskRequest describes the work to place.
type TaskRequest struct {
	DurationMinutes int       `json:"duration_minutes" yaml:"duration_minutes"`
	DueDate         time.Time `json:"due_date" yaml:"due_date"`
	AllowSplit      bool      `json:"allow_split" yaml:"allow_split"`
}

// ClockTime is a wall-clock time of day stored as minutes after midnight.
type ClockTime int

// MinutesPerDay bounds ClockTime; 24:00 is accepted as an end of day marker.
const MinutesPerDay = 24 * 60

// Clock builds a ClockTime from hours and minutes.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("clock time %q: hour: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock time %q: minute: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return Clock(h, m), nil
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// On returns the instant at which the clock time occurs on day's civil date in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

// Date is a civil calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	t, err := time.Parse(time.DateOnly, string(b))
	if err != nil {
		return fmt.Errorf("date %q: %w", string(b), err)
	}
	*d = DateOf(t)
	return nil
}

// ScheduledSlot is one proposed work session.
type ScheduledSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Date            Date      `json:"date"`
}

// Busy returns the slot as a task interval so it can be fed into the next call.
func (s ScheduledSlot) Busy(label string) BusyInterval {
	return BusyInterval{Start: s.Start, End: s.End, Kind: KindTask, Label: label}
}

// Strategy records which search produced a result.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategyContinuous Strategy = "continuous"
	StrategyChunked    Strategy = "chunked"
)

// Result is the outcome of one scheduling call.
type Result struct {
	Slots            []ScheduledSlot `json:"slots"`
	RequestedMinutes int             `json:"requested_minutes"`
	Strategy         Strategy        `json:"strategy"`
}

// ScheduledMinutes sums the placed slot durations.
func (r Result) ScheduledMinutes() int {
	total := 0
	for _, s := range r.Slots {
		total += s.DurationMinutes
	}
	return total
}

// RemainingMinutes is the requested work that could not be placed.
func (r Result) RemainingMinutes() int {
	if rem := r.RequestedMinutes - r.ScheduledMinutes(); rem > 0 {
		return rem
	}
	return 0
}

func (r Result) Complete() bool { return len(r.Slots) > 0 && r.RemainingMinutes() == 0 }
func (r Result) Partial() bool  { return len(r.Slots) > 0 && r.RemainingMinutes() > 0 }
func (r Result) Empty() bool    { return len(r.Slots) == 0 }
