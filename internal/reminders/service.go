/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/telemetry"
)

var (
	ErrReminderNotFound = errors.New("reminder not found")
	ErrReminderClosed   = errors.New("reminder already dismissed")
)

const (
	DefaultSchedule = "@every 1m"
	DefaultSnooze   = 120 * time.Minute
)

// Config controls the dispatcher.
type Config struct {
	Schedule       string // cron spec, descriptors like "@every 1m" allowed
	SnoozeDuration time.Duration
	Location       *time.Location
}

// LeaderChecker gates dispatch in multi-instance deployments.
type LeaderChecker interface {
	IsLeader() bool
}

// Service moves reminders through pending, triggered, snoozed and dismissed.
type Service struct {
	db     *gorm.DB
	bus    events.Publisher
	cfg    Config
	leader LeaderChecker
	now    func() time.Time
	logger zerolog.Logger
}

// New creates the reminder service. bus may be nil.
func New(db *gorm.DB, bus events.Publisher, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.SnoozeDuration <= 0 {
		cfg.SnoozeDuration = DefaultSnooze
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		db:     db,
		bus:    bus,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "reminders").Logger(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetLeader makes Run skip ticks while this instance is not the leader.
func (s *Service) SetLeader(l LeaderChecker) {
	s.leader = l
}

// Run dispatches due reminders on the configured cron schedule until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.Location))
	if _, err := c.AddFunc(s.cfg.Schedule, func() { s.dispatch(ctx) }); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", s.cfg.Schedule, err)
	}

	s.logger.Info().Str("schedule", s.cfg.Schedule).Msg("reminder dispatcher started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("reminder dispatcher stopped")
	return nil
}

func (s *Service) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.leader != nil && !s.leader.IsLeader() {
		return
	}
	if _, err := s.Tick(ctx); err != nil {
		telemetry.ReminderTickErrorsTotal.Inc()
		s.logger.Error().Err(err).Msg("reminder tick failed")
	}
}

// Tick triggers every pending reminder that is due and every snoozed reminder
// whose snooze has run out. It returns how many reminders fired.
func (s *Service) Tick(ctx context.Context) (int, error) {
	now := s.now().UTC()

	var due []models.Reminder
	err := s.db.WithContext(ctx).
		Preload("Task").
		Where("(status = ? AND remind_at <= ?) OR (status = ? AND snoozed_until <= ?)",
			models.ReminderStatusPending, now, models.ReminderStatusSnoozed, now).
		Order("remind_at ASC").
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}

	fired := 0
	for i := range due {
		r := &due[i]
		res := s.db.WithContext(ctx).Model(&models.Reminder{}).
			Where("id = ? AND status = ?", r.ID, r.Status).
			Updates(map[string]any{
				"status":        models.ReminderStatusTriggered,
				"triggered_at":  now,
				"snoozed_until": nil,
			})
		if res.Error != nil {
			return fired, fmt.Errorf("trigger reminder %s: %w", r.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Changed by a user request since it was loaded.
			continue
		}

		r.Status = models.ReminderStatusTriggered
		r.TriggeredAt = &now
		r.SnoozedUntil = nil
		fired++
		telemetry.RemindersTriggeredTotal.Inc()
		s.publish(events.EventReminderDue, r)
	}

	if fired > 0 {
		s.logger.Debug().Int("count", fired).Msg("reminders triggered")
	}
	return fired, nil
}

// Active returns the user's triggered reminders, oldest first.
func (s *Service) Active(ctx context.Context, userID string) ([]models.Reminder, error) {
	var out []models.Reminder
	if err := s.db.WithContext(ctx).
		Preload("Task").
		Where("user_id = ? AND status = ?", userID, models.ReminderStatusTriggered).
		Order("remind_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

// Snooze hides the reminder for d, or the configured default when d is zero.
func (s *Service) Snooze(ctx context.Context, userID, reminderID string, d time.Duration) (*models.Reminder, error) {
	if d <= 0 {
		d = s.cfg.SnoozeDuration
	}
	r, err := s.load(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReminderStatusDismissed {
		return nil, ErrReminderClosed
	}

	until := s.now().UTC().Add(d)
	if err := s.db.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", r.ID).Updates(map[string]any{
		"status":        models.ReminderStatusSnoozed,
		"snoozed_until": until,
	}).Error; err != nil {
		return nil, fmt.Errorf("snooze reminder: %w", err)
	}

	r.Status = models.ReminderStatusSnoozed
	r.SnoozedUntil = &until
	telemetry.RemindersSnoozedTotal.Inc()
	s.publish(events.EventReminderSnoozed, r)
	return r, nil
}

// Dismiss closes the reminder. Dismissing twice is not an error.
func (s *Service) Dismiss(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	r, err := s.load(ctx, userID, reminderID)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReminderStatusDismissed {
		return r, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Reminder{}).Where("id = ?", r.ID).Updates(map[string]any{
		"status":        models.ReminderStatusDismissed,
		"snoozed_until": nil,
	}).Error; err != nil {
		return nil, fmt.Errorf("dismiss reminder: %w", err)
	}
	r.Status = models.ReminderStatusDismissed
	r.SnoozedUntil = nil
	s.publish(events.EventReminderDismissed, r)
	return r, nil
}

func (s *Service) load(ctx context.Context, userID, reminderID string) (*models.Reminder, error) {
	var r models.Reminder
	err := s.db.WithContext(ctx).Preload("Task").First(&r, "id = ? AND user_id = ?", reminderID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reminder: %w", err)
	}
	return &r, nil
}

func (s *Service) publish(t events.EventType, r *models.Reminder) {
	if s.bus == nil {
		return
	}
	p := events.Payload{
		"user_id":     r.UserID,
		"reminder_id": r.ID,
		"task_id":     r.TaskID,
		"remind_at":   r.RemindAt,
	}
	if r.Task != nil {
		p["task_title"] = r.Task.Title
		p["due_date"] = r.Task.DueDate
	}
	if r.SnoozedUntil != nil {
		p["snoozed_until"] = *r.SnoozedUntil
	}
	s.bus.Publish(t, p)
}
