/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// TaskStatus tracks completion.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// ScheduleState records the outcome of the last planning attempt.
type ScheduleState string

const (
	ScheduleStateUnscheduled ScheduleState = "unscheduled" // never planned or no room found
	ScheduleStateScheduled   ScheduleState = "scheduled"
	ScheduleStatePartial     ScheduleState = "partial" // some minutes could not be placed
)

// TaskPriority orders tasks that share a due date.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Rank returns a sort key where higher priorities come first.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityHigh:
		return 0
	case TaskPriorityLow:
		return 2
	default:
		return 1
	}
}

// Task is a unit of work with an estimated duration and a deadline.
type Task struct {
	ID               string        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string        `gorm:"type:uuid;index:idx_tasks_user_due;not null" json:"user_id"`
	Title            string        `gorm:"type:varchar(255);not null" json:"title"`
	Description      string        `gorm:"type:text" json:"description,omitempty"`
	CourseCode       string        `gorm:"type:varchar(32)" json:"course_code,omitempty"`
	DueDate          time.Time     `gorm:"index:idx_tasks_user_due;not null" json:"due_date"`
	EstimatedMinutes int           `gorm:"not null" json:"estimated_minutes"`
	Priority         TaskPriority  `gorm:"type:varchar(16);default:'medium'" json:"priority"`
	Status           TaskStatus    `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	ScheduleState    ScheduleState `gorm:"type:varchar(16);default:'unscheduled'" json:"schedule_state"`
	ScheduledStart   *time.Time    `json:"scheduled_start,omitempty"`
	ScheduledEnd     *time.Time    `json:"scheduled_end,omitempty"`
	ScheduledMinutes int           `json:"scheduled_minutes"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Task) TableName() string {
	return "tasks"
}
