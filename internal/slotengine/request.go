/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import "time"

// Request is a self-contained scheduling question, as read from a file or
// an HTTP body.
type Request struct {
	Task        TaskRequest     `json:"task" yaml:"task"`
	Busy        []BusyInterval  `json:"busy,omitempty" yaml:"busy,omitempty"`
	Preferences PreferenceInput `json:"preferences" yaml:"preferences"`

	// SearchStart defaults to the engine clock.
	SearchStart *time.Time `json:"search_start,omitempty" yaml:"search_start,omitempty"`
	Timezone    string     `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Fallback    string     `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Allocation  string     `json:"allocation,omitempty" yaml:"allocation,omitempty"`
	HorizonDays int        `json:"horizon_days,omitempty" yaml:"horizon_days,omitempty"`
}

// Engine builds an engine for the request's timezone and policies. opts are
// applied first, so request fields override them when set.
func (r Request) Engine(opts ...Option) (*Engine, error) {
	extra := append([]Option(nil), opts...)
	if r.Timezone != "" {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return nil, invalid("timezone", "unknown time zone "+r.Timezone)
		}
		extra = append(extra, WithLocation(loc))
	}
	if r.Fallback != "" {
		p, err := ParseFallbackPolicy(r.Fallback)
		if err != nil {
			return nil, invalid("fallback", err.Error())
		}
		extra = append(extra, WithFallbackPolicy(p))
	}
	if r.Allocation != "" {
		rule, err := ParseAllocationRule(r.Allocation)
		if err != nil {
			return nil, invalid("allocation", err.Error())
		}
		extra = append(extra, WithAllocationRule(rule))
	}
	if r.HorizonDays < 0 {
		return nil, invalid("horizon_days", "must not be negative")
	}
	if r.HorizonDays > 0 {
		extra = append(extra, WithMaxHorizonDays(r.HorizonDays))
	}
	return New(extra...), nil
}

// Run answers the request. Absent preference fields come from the engine
// defaults (see WithDefaultPreferences).
func (r Request) Run(opts ...Option) (Result, error) {
	e, err := r.Engine(opts...)
	if err != nil {
		return Result{}, err
	}
	prefs := r.Preferences.Apply(e.defaults)
	if err := prefs.Validate(); err != nil {
		return Result{}, err
	}
	if r.SearchStart != nil {
		return e.ScheduleFrom(*r.SearchStart, r.Task, r.Busy, prefs)
	}
	return e.Schedule(r.Task, r.Busy, prefs)
}
