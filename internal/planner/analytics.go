/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/taskslot/internal/models"
)

// Summary is a snapshot of the user's workload.
type Summary struct {
	Pending           int64 `json:"pending"`
	Completed         int64 `json:"completed"`
	Overdue           int64 `json:"overdue"`
	CompletedThisWeek int64 `json:"completed_this_week"`
	// ScheduledMinutes is what the last plans placed for pending tasks.
	ScheduledMinutes int `json:"scheduled_minutes"`
	// UnplacedMinutes is estimated work no session covers yet.
	UnplacedMinutes  int `json:"unplaced_minutes"`
	UpcomingSessions int `json:"upcoming_sessions"`
	UpcomingMinutes  int `json:"upcoming_minutes"`
}

// Summary counts the user's tasks and the study time booked for the next
// seven days.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	now := s.now().UTC()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	weekAhead := now.Add(7 * 24 * time.Hour)

	var out Summary
	var pending []models.Task
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.TaskStatusPending).
		Find(&pending).Error; err != nil {
		return out, fmt.Errorf("load pending tasks: %w", err)
	}
	out.Pending = int64(len(pending))
	for _, t := range pending {
		if t.DueDate.Before(now) {
			out.Overdue++
		}
		out.ScheduledMinutes += t.ScheduledMinutes
		if rest := t.EstimatedMinutes - t.ScheduledMinutes; rest > 0 {
			out.UnplacedMinutes += rest
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("user_id = ? AND status = ?", userID, models.TaskStatusCompleted).
		Count(&out.Completed).Error; err != nil {
		return out, fmt.Errorf("count completed tasks: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, models.TaskStatusCompleted, weekAgo).
		Count(&out.CompletedThisWeek).Error; err != nil {
		return out, fmt.Errorf("count recent completions: %w", err)
	}

	var sessions []models.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_type = ? AND ends_at > ? AND starts_at < ?",
			userID, models.EventTypeStudy, now, weekAhead).
		Find(&sessions).Error; err != nil {
		return out, fmt.Errorf("load sessions: %w", err)
	}
	for _, ev := range sessions {
		start := ev.StartsAt
		if start.Before(now) {
			start = now
		}
		end := ev.EndsAt
		if end.After(weekAhead) {
			end = weekAhead
		}
		out.UpcomingSessions++
		out.UpcomingMinutes += int(end.Sub(start) / time.Minute)
	}
	return out, nil
}
