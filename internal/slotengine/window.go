/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import (
	"fmt"
	"strings"
	"time"
)

// AllocationRule decides which task intervals count toward a day's cap.
type AllocationRule int

const (
	// AllocationEitherEndpoint counts the full length of task intervals that
	// start or end inside the day. Intervals spanning the whole day are not counted.
	AllocationEitherEndpoint AllocationRule = iota
	// AllocationOverlap counts only the minutes of each task interval that fall inside the day.
	AllocationOverlap
)

func (r AllocationRule) String() string {
	if r == AllocationOverlap {
		return "overlap"
	}
	return "either_endpoint"
}

// ParseAllocationRule accepts "either_endpoint" or "overlap".
func ParseAllocationRule(s string) (AllocationRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "either_endpoint", "endpoint":
		return AllocationEitherEndpoint, nil
	case "overlap":
		return AllocationOverlap, nil
	}
	return 0, fmt.Errorf("unknown allocation rule %q", s)
}

// Window is a day's usable work period.
type Window struct {
	Start             time.Time
	End               time.Time
	RemainingCapacity int
}

// DayWindow combines day's civil date in its own location with the work hours
// and subtracts allocated minutes from the daily limit.
func DayWindow(day time.Time, prefs Preferences, allocatedMinutes int) Window {
	loc := day.Location()
	capacity := prefs.DailyLimitMinutes - allocatedMinutes
	if capacity < 0 {
		capacity = 0
	}
	return Window{
		Start:             prefs.WorkStart.On(day, loc),
		End:               prefs.WorkEnd.On(day, loc),
		RemainingCapacity: capacity,
	}
}

// AllocatedMinutes sums task intervals attributed to day's civil date in its own location.
// Calendar events never count.
func AllocatedMinutes(day time.Time, busy []BusyInterval, rule AllocationRule) int {
	dayStart := startOfDay(day)
	dayEnd := nextDay(dayStart)
	inDay := func(t time.Time) bool {
		return !t.Before(dayStart) && t.Before(dayEnd)
	}

	total := 0
	for _, b := range busy {
		if b.Kind != KindTask {
			continue
		}
		switch rule {
		case AllocationOverlap:
			if overlaps(dayStart, dayEnd, b.Start, b.End) {
				total += int(minTime(dayEnd, b.End).Sub(maxTime(dayStart, b.Start)) / time.Minute)
			}
		default:
			if inDay(b.Start) || inDay(b.End) {
				total += b.Minutes()
			}
		}
	}
	return total
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
