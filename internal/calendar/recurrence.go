/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/friendsincode/taskslot/internal/models"
)

// ValidateRRule reports whether rule is a recurrence rule the store can expand.
func ValidateRRule(rule string) error {
	if rule == "" {
		return nil
	}
	if _, err := rrule.StrToRRule(rule); err != nil {
		return fmt.Errorf("%w: rrule: %v", ErrInvalidEvent, err)
	}
	return nil
}

// occurrences expands a recurring event into the concrete instances that
// overlap [from, to). Wall-clock times are kept in loc across DST changes.
func occurrences(ev models.Event, loc *time.Location, from, to time.Time) ([]models.Event, error) {
	rr, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	length := ev.EndsAt.Sub(ev.StartsAt)
	rr.DTStart(ev.StartsAt.In(loc))

	starts := rr.Between(from.Add(-length), to, false)
	out := make([]models.Event, 0, len(starts))
	for _, start := range starts {
		occ := ev
		occ.StartsAt = start.UTC()
		occ.EndsAt = start.Add(length).UTC()
		out = append(out, occ)
	}
	return out, nil
}
