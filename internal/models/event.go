/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// EventType classifies calendar entries.
type EventType string

const (
	EventTypeClass    EventType = "class"
	EventTypePersonal EventType = "personal"
	EventTypeDeadline EventType = "deadline"
	EventTypeStudy    EventType = "study" // work session created by the planner
)

// Event is a calendar commitment. Study events carry the task they belong to.
type Event struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index:idx_events_user_range;not null" json:"user_id"`
	TaskID    *string   `gorm:"type:uuid;index" json:"task_id,omitempty"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Location  string    `gorm:"type:varchar(255)" json:"location,omitempty"`
	EventType EventType `gorm:"type:varchar(16);not null;default:'personal'" json:"event_type"`
	StartsAt  time.Time `gorm:"index:idx_events_user_range;not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	// RRule repeats the event (RFC 5545, e.g. "FREQ=WEEKLY;BYDAY=MO,WE").
	// StartsAt/EndsAt describe the first occurrence.
	RRule     string    `gorm:"column:rrule;type:varchar(255)" json:"rrule,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "events"
}

// IsTaskSession reports whether the event is planned work for a task.
func (e Event) IsTaskSession() bool {
	return e.EventType == EventTypeStudy && e.TaskID != nil
}

func (e Event) IsRecurring() bool {
	return e.RRule != ""
}
