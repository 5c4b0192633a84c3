/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

// Default preference values applied to absent fields.
const (
	DefaultDailyLimitMinutes = 240
	DefaultWorkStart         = ClockTime(9 * 60)
	DefaultWorkEnd           = ClockTime(17 * 60)
)

// Preferences is a user's work-style configuration.
type Preferences struct {
	DailyLimitMinutes int       `json:"daily_limit_minutes" yaml:"daily_limit_minutes"`
	WorkStart         ClockTime `json:"work_start" yaml:"work_start"`
	WorkEnd           ClockTime `json:"work_end" yaml:"work_end"`
}

// PreferenceOption mutates preferences under construction.
type PreferenceOption func(*Preferences)

func WithDailyLimit(minutes int) PreferenceOption {
	return func(p *Preferences) { p.DailyLimitMinutes = minutes }
}

func WithWorkHours(start, end ClockTime) PreferenceOption {
	return func(p *Preferences) {
		p.WorkStart = start
		p.WorkEnd = end
	}
}

// NewPreferences returns defaults with opts applied.
func NewPreferences(opts ...PreferenceOption) Preferences {
	p := Preferences{
		DailyLimitMinutes: DefaultDailyLimitMinutes,
		WorkStart:         DefaultWorkStart,
		WorkEnd:           DefaultWorkEnd,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// PreferenceInput is a partially specified Preferences as read from a request.
// Nil fields are absent and take the caller's defaults; present fields are
// kept as given, zero included, so Validate can reject them.
type PreferenceInput struct {
	DailyLimitMinutes *int       `json:"daily_limit_minutes,omitempty" yaml:"daily_limit_minutes,omitempty"`
	WorkStart         *ClockTime `json:"work_start,omitempty" yaml:"work_start,omitempty"`
	WorkEnd           *ClockTime `json:"work_end,omitempty" yaml:"work_end,omitempty"`
}

// Apply fills each absent field from defaults independently.
func (in PreferenceInput) Apply(defaults Preferences) Preferences {
	p := defaults
	if in.DailyLimitMinutes != nil {
		p.DailyLimitMinutes = *in.DailyLimitMinutes
	}
	if in.WorkStart != nil {
		p.WorkStart = *in.WorkStart
	}
	if in.WorkEnd != nil {
		p.WorkEnd = *in.WorkEnd
	}
	return p
}

// Validate reports malformed preferences as *InputError.
func (p Preferences) Validate() error {
	switch {
	case p.DailyLimitMinutes <= 0:
		return invalid("daily_limit_minutes", "must be positive")
	case p.WorkStart < 0 || p.WorkStart > MinutesPerDay:
		return invalid("work_start", "outside the day")
	case p.WorkEnd < 0 || p.WorkEnd > MinutesPerDay:
		return invalid("work_end", "outside the day")
	case p.WorkStart >= p.WorkEnd:
		return invalid("work_start", "must be before work_end")
	}
	return nil
}

// WorkdayMinutes is the length of the configured work window.
func (p Preferences) WorkdayMinutes() int {
	return int(p.WorkEnd - p.WorkStart)
}
