/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import "time"

// Conflicts reports whether [start, end) overlaps any busy interval.
// An empty candidate never conflicts.
func Conflicts(start, end time.Time, busy []BusyInterval) bool {
	if !start.Before(end) {
		return false
	}
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// within keeps the intervals that touch [start, end).
func within(busy []BusyInterval, start, end time.Time) []BusyInterval {
	out := make([]BusyInterval, 0, len(busy))
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			out = append(out, b)
		}
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
