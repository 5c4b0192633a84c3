/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import "time"

// DefaultGranularity is the step between candidate start times.
const DefaultGranularity = 30 * time.Minute

// FindSlotInWindow returns the earliest conflict-free slot of the given length
// whose start lies on the 30 minute grid anchored at windowStart.
func FindSlotInWindow(windowStart, windowEnd time.Time, minutes int, busy []BusyInterval) (ScheduledSlot, bool) {
	return findSlot(windowStart, windowStart, windowEnd, minutes, DefaultGranularity, busy)
}

// findSlot scans the grid anchored at anchor, starting from the first grid
// point at or after from, and never lets a slot end after end.
func findSlot(anchor, from, end time.Time, minutes int, step time.Duration, busy []BusyInterval) (ScheduledSlot, bool) {
	if minutes <= 0 || step <= 0 {
		return ScheduledSlot{}, false
	}
	length := time.Duration(minutes) * time.Minute

	cursor := anchor
	if from.After(anchor) {
		steps := (from.Sub(anchor) + step - 1) / step
		cursor = anchor.Add(steps * step)
	}

	for !cursor.Add(length).After(end) {
		if !Conflicts(cursor, cursor.Add(length), busy) {
			return ScheduledSlot{
				Start:           cursor,
				End:             cursor.Add(length),
				DurationMinutes: minutes,
				Date:            DateOf(anchor),
			}, true
		}
		cursor = cursor.Add(step)
	}
	return ScheduledSlot{}, false
}
