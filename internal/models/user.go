/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// TaskStyle is the user's preferred way of working through a task.
type TaskStyle string

const (
	TaskStyleChunks TaskStyle = "chunks"
	TaskStyleOneGo  TaskStyle = "one-go"
)

// User is the owner of tasks and calendar events. Work-style fields are
// optional; empty values fall back to configured defaults.
type User struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Name              string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	Timezone          string    `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	TaskStyle         TaskStyle `gorm:"type:varchar(16)" json:"task_style,omitempty"`
	DailyLimitMinutes int       `json:"daily_limit_minutes,omitempty"`
	PreferredStart    string    `gorm:"type:varchar(5)" json:"preferred_start,omitempty"` // HH:MM
	PreferredEnd      string    `gorm:"type:varchar(5)" json:"preferred_end,omitempty"`   // HH:MM
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}

// AllowsSplit reports whether tasks may be spread across several sessions.
func (u User) AllowsSplit() bool {
	return u.TaskStyle != TaskStyleOneGo
}
