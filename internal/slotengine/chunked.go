/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import "time"

// findChunked spreads total minutes across days, at most one chunk per day,
// each chunk bounded by what is left of that day's cap. A day with no room
// for its chunk is skipped and the same remainder is tried on the next day.
func (e *Engine) findChunked(searchStart, due time.Time, total int, busy []BusyInterval, prefs Preferences) []ScheduledSlot {
	remaining := total
	var slots []ScheduledSlot

	e.eachDay(searchStart, due, func(day time.Time) bool {
		allocated := AllocatedMinutes(day, busy, e.rule)
		w := DayWindow(day, prefs, allocated)
		if w.RemainingCapacity <= 0 {
			e.logger.Debug().Str("date", DateOf(day).String()).Int("allocated", allocated).Msg("daily cap reached")
			return true
		}

		chunk := min(remaining, w.RemainingCapacity)
		end := minTime(w.End, due)
		if slot, ok := findSlot(w.Start, searchStart, end, chunk, e.step, busy); ok {
			slots = append(slots, slot)
			remaining -= chunk
		}
		return remaining > 0
	})
	return slots
}
