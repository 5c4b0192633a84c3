/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Status  models.TaskStatus
	DueFrom time.Time
	DueTo   time.Time
}

// ListTasks returns the user's tasks ordered by due date.
func (s *Service) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.DueFrom.IsZero() {
		q = q.Where("due_date >= ?", f.DueFrom.UTC())
	}
	if !f.DueTo.IsZero() {
		q = q.Where("due_date <= ?", f.DueTo.UTC())
	}

	var tasks []models.Task
	if err := q.Order("due_date ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns one of the user's tasks with its sessions.
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*models.Task, []models.Event, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ? AND user_id = ?", taskID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load task: %w", err)
	}

	var sessions []models.Event
	if err := s.db.WithContext(ctx).
		Where("task_id = ? AND event_type = ?", taskID, models.EventTypeStudy).
		Order("starts_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, nil, fmt.Errorf("load sessions: %w", err)
	}
	return &task, sessions, nil
}

// CreateTask stores a new pending task and, when schedule is set, plans it.
func (s *Service) CreateTask(ctx context.Context, task *models.Task, schedule bool) (*Outcome, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	task.Status = models.TaskStatusPending
	task.ScheduleState = models.ScheduleStateUnscheduled
	task.DueDate = task.DueDate.UTC()

	// Reject unplannable input before anything is stored.
	if schedule {
		profile, err := s.store.Profile(ctx, task.UserID)
		if err != nil {
			return nil, err
		}
		if err := slotengine.Validate(s.now(), taskRequest(*task, profile), profile.Preferences); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if !schedule {
		return &Outcome{Task: *task}, nil
	}
	return s.ScheduleTask(ctx, task.UserID, task.ID)
}

// TaskUpdate carries optional task changes. Nil fields are left alone.
type TaskUpdate struct {
	Title            *string
	Description      *string
	CourseCode       *string
	DueDate          *time.Time
	EstimatedMinutes *int
	Priority         *models.TaskPriority
}

// UpdateTask applies upd and, when replan is set, plans the task again
// against its new due date and estimate. Completed tasks can be edited but
// not replanned.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, upd TaskUpdate, replan bool) (*Outcome, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ? AND user_id = ?", taskID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if replan && task.Status == models.TaskStatusCompleted {
		return nil, ErrTaskCompleted
	}

	changes := map[string]any{}
	if upd.Title != nil {
		if *upd.Title == "" {
			return nil, &slotengine.InputError{Field: "title", Reason: "must not be empty"}
		}
		task.Title = *upd.Title
		changes["title"] = task.Title
	}
	if upd.Description != nil {
		task.Description = *upd.Description
		changes["description"] = task.Description
	}
	if upd.CourseCode != nil {
		task.CourseCode = *upd.CourseCode
		changes["course_code"] = task.CourseCode
	}
	if upd.DueDate != nil {
		task.DueDate = upd.DueDate.UTC()
		changes["due_date"] = task.DueDate
	}
	if upd.EstimatedMinutes != nil {
		if *upd.EstimatedMinutes <= 0 {
			return nil, &slotengine.InputError{Field: "estimated_minutes", Reason: "must be positive"}
		}
		task.EstimatedMinutes = *upd.EstimatedMinutes
		changes["estimated_minutes"] = task.EstimatedMinutes
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
		changes["priority"] = task.Priority
	}

	if replan {
		profile, err := s.store.Profile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := slotengine.Validate(s.now(), taskRequest(task, profile), profile.Preferences); err != nil {
			return nil, err
		}
	}

	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
		if s.bus != nil {
			s.bus.Publish(events.EventTaskUpdated, events.Payload{"user_id": userID, "task_id": taskID})
		}
	}
	if !replan {
		if err := s.db.WithContext(ctx).First(&task, "id = ?", task.ID).Error; err != nil {
			return nil, fmt.Errorf("reload task: %w", err)
		}
		return &Outcome{Task: task}, nil
	}
	return s.ScheduleTask(ctx, userID, taskID)
}

// CompleteTask marks the task done, drops its future sessions and closes its reminders.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND event_type = ? AND starts_at > ?", task.ID, models.EventTypeStudy, now).
			Delete(&models.Event{}).Error; err != nil {
			return fmt.Errorf("delete future sessions: %w", err)
		}
		if err := tx.Model(&models.Reminder{}).
			Where("task_id = ? AND status IN ?", task.ID,
				[]models.ReminderStatus{models.ReminderStatusPending, models.ReminderStatusSnoozed}).
			Update("status", models.ReminderStatusDismissed).Error; err != nil {
			return fmt.Errorf("dismiss reminders: %w", err)
		}
		return tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]any{
			"status":       models.TaskStatusCompleted,
			"completed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	if s.bus != nil {
		s.bus.Publish(events.EventTaskCompleted, events.Payload{"user_id": userID, "task_id": taskID})
	}
	return &task, nil
}

// DeleteTask removes the task with all its sessions and reminders.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", taskID, userID).Delete(&models.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Event{}).Error; err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(events.EventTaskDeleted, events.Payload{"user_id": userID, "task_id": taskID})
	}
	return nil
}
