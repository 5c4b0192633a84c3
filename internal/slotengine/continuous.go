/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import "time"

// findContinuous looks for a single session covering the whole task.
// Daily capacity is not consulted; only the day's own busy intervals are scanned.
func (e *Engine) findContinuous(searchStart, due time.Time, minutes int, busy []BusyInterval, prefs Preferences) (ScheduledSlot, bool) {
	if minutes > prefs.DailyLimitMinutes {
		return ScheduledSlot{}, false
	}

	var (
		slot  ScheduledSlot
		found bool
	)
	e.eachDay(searchStart, due, func(day time.Time) bool {
		w := DayWindow(day, prefs, 0)
		end := minTime(w.End, due)
		if !w.Start.Before(end) {
			return true
		}
		slot, found = findSlot(w.Start, searchStart, end, minutes, e.step, within(busy, w.Start, w.End))
		return !found
	})
	return slot, found
}
