/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ReminderStatus defines the reminder lifecycle.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusTriggered ReminderStatus = "triggered"
	ReminderStatusSnoozed   ReminderStatus = "snoozed"
	ReminderStatusDismissed ReminderStatus = "dismissed"
)

// Reminder fires ahead of a planned work session.
type Reminder struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string         `gorm:"type:uuid;index;not null" json:"user_id"`
	TaskID       string         `gorm:"type:uuid;index;not null" json:"task_id"`
	EventID      *string        `gorm:"type:uuid" json:"event_id,omitempty"`
	RemindAt     time.Time      `gorm:"index:idx_reminders_status_due;not null" json:"remind_at"`
	Status       ReminderStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_reminders_status_due" json:"status"`
	SnoozedUntil *time.Time     `json:"snoozed_until,omitempty"`
	TriggeredAt  *time.Time     `json:"triggered_at,omitempty"`

	Task *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Reminder) TableName() string {
	return "reminders"
}
