/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/calendar"
	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/reminders"
	"github.com/friendsincode/taskslot/internal/slotengine"
	"github.com/friendsincode/taskslot/internal/telemetry"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskCompleted    = errors.New("task already completed")
	ErrReminderNotFound = reminders.ErrReminderNotFound
	ErrNoAvailableSlots = errors.New("no available slots before the due date")
)

// Config tunes how plans are computed and stored.
type Config struct {
	ReminderLead        time.Duration
	PlanningHorizonDays int
	FallbackPolicy      slotengine.FallbackPolicy
	AllocationRule      slotengine.AllocationRule
}

// Outcome is the stored result of planning one task.
type Outcome struct {
	Task      models.Task       `json:"task"`
	Result    slotengine.Result `json:"result"`
	Sessions  []models.Event    `json:"sessions,omitempty"`
	Reminders []models.Reminder `json:"reminders,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Service turns tasks into study sessions and reminders.
type Service struct {
	db     *gorm.DB
	store  *calendar.Store
	bus    events.Publisher
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs the planner service. bus may be nil.
func New(db *gorm.DB, store *calendar.Store, bus events.Publisher, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		bus:    bus,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) engine(loc *time.Location) *slotengine.Engine {
	return slotengine.New(
		slotengine.WithLocation(loc),
		slotengine.WithClock(s.now),
		slotengine.WithFallbackPolicy(s.cfg.FallbackPolicy),
		slotengine.WithAllocationRule(s.cfg.AllocationRule),
		slotengine.WithMaxHorizonDays(s.cfg.PlanningHorizonDays),
		slotengine.WithLogger(s.logger),
	)
}

// run executes the engine and records metrics.
func (s *Service) run(profile calendar.Profile, task slotengine.TaskRequest, busy []slotengine.BusyInterval) (slotengine.Result, error) {
	started := time.Now()
	res, err := s.engine(profile.Location).ScheduleFrom(s.now(), task, busy, profile.Preferences)
	if err != nil {
		telemetry.PlanningOutcomesTotal.WithLabelValues("invalid").Inc()
		return res, err
	}
	telemetry.EngineDuration.WithLabelValues(string(res.Strategy)).Observe(time.Since(started).Seconds())
	telemetry.SlotsPerPlan.Observe(float64(len(res.Slots)))
	telemetry.PlanningOutcomesTotal.WithLabelValues(string(stateOf(res))).Inc()
	return res, nil
}

// ProposeRequest describes an ad hoc task to place without storing anything.
type ProposeRequest struct {
	DurationMinutes int
	DueDate         time.Time
	AllowSplit      *bool // nil uses the user's task style
}

// Propose computes slots for a hypothetical task against the user's calendar.
func (s *Service) Propose(ctx context.Context, userID string, req ProposeRequest) (slotengine.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "planner.Propose", attribute.String("user_id", userID))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return slotengine.Result{}, err
	}
	allowSplit := profile.AllowSplit
	if req.AllowSplit != nil {
		allowSplit = *req.AllowSplit
	}

	busy, err := s.store.BusyIntervals(ctx, userID, s.now(), req.DueDate)
	if err != nil {
		return slotengine.Result{}, err
	}
	res, err := s.run(profile, slotengine.TaskRequest{
		DurationMinutes: req.DurationMinutes,
		DueDate:         req.DueDate,
		AllowSplit:      allowSplit,
	}, busy)
	return res, err
}

// ScheduleTask plans a stored task and replaces its sessions and reminders.
// When nothing fits, existing sessions are kept and ErrNoAvailableSlots is
// not returned; callers inspect Outcome.Result.
func (s *Service) ScheduleTask(ctx context.Context, userID, taskID string) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "planner.ScheduleTask",
		attribute.String("user_id", userID),
		attribute.String("task_id", taskID),
	)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	task, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	busy, err := s.store.BusyIntervals(ctx, userID, s.now(), task.DueDate, task.ID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.planAndStore(ctx, task, profile, busy)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("strategy", string(outcome.Result.Strategy)),
		attribute.Int("slots", len(outcome.Result.Slots)),
	)
	return outcome, nil
}

// PlanBatch plans several tasks in one pass, earliest due first. Each placed
// session is added to the busy set before the next task is planned, so tasks
// in the same batch never overlap. With no ids, every pending task that is
// not fully scheduled and not yet due is planned.
func (s *Service) PlanBatch(ctx context.Context, userID string, taskIDs []string) ([]Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "planner.PlanBatch",
		attribute.String("user_id", userID),
		attribute.Int("requested", len(taskIDs)),
	)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	tasks, err := s.batchTasks(ctx, userID, taskIDs)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return []Outcome{}, nil
	}

	profile, err := s.store.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tasks))
	horizon := tasks[0].DueDate
	for _, t := range tasks {
		ids = append(ids, t.ID)
		if t.DueDate.After(horizon) {
			horizon = t.DueDate
		}
	}
	busy, err := s.store.BusyIntervals(ctx, userID, s.now(), horizon, ids...)
	if err != nil {
		return nil, err
	}

	// A task whose plan is not replaced keeps its previous sessions, which
	// the busy set above left out.
	keep := func(task models.Task) error {
		kept, err := s.store.TaskIntervals(ctx, userID, task.ID, s.now(), horizon)
		if err != nil {
			return err
		}
		busy = append(busy, kept...)
		return nil
	}

	outcomes := make([]Outcome, 0, len(tasks))
	for _, task := range tasks {
		outcome, planErr := s.planAndStore(ctx, task, profile, busy)
		if planErr != nil {
			if !errors.Is(planErr, slotengine.ErrInvalidInput) {
				err = planErr
				return nil, err
			}
			if err = keep(task); err != nil {
				return nil, err
			}
			outcomes = append(outcomes, Outcome{Task: task, Error: planErr.Error()})
			continue
		}
		if outcome.Result.Empty() {
			if err = keep(task); err != nil {
				return nil, err
			}
		}
		for _, slot := range outcome.Result.Slots {
			busy = append(busy, slot.Busy(task.Title))
		}
		outcomes = append(outcomes, *outcome)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("tasks", len(tasks)).
		Msg("batch planned")
	return outcomes, nil
}

func (s *Service) batchTasks(ctx context.Context, userID string, taskIDs []string) ([]models.Task, error) {
	var tasks []models.Task
	q := s.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, models.TaskStatusPending)
	if len(taskIDs) > 0 {
		q = q.Where("id IN ?", taskIDs)
	} else {
		q = q.Where("schedule_state <> ? AND due_date > ?", models.ScheduleStateScheduled, s.now().UTC())
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if len(taskIDs) > 0 && len(tasks) != len(uniq(taskIDs)) {
		return nil, ErrTaskNotFound
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
	return tasks, nil
}

// RescheduleFromReminder re-plans the reminder's task from now on and
// dismisses the reminder. It fails with ErrNoAvailableSlots when nothing fits.
func (s *Service) RescheduleFromReminder(ctx context.Context, userID, reminderID string) (*Outcome, error) {
	var reminder models.Reminder
	err := s.db.WithContext(ctx).First(&reminder, "id = ? AND user_id = ?", reminderID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reminder: %w", err)
	}

	outcome, err := s.ScheduleTask(ctx, userID, reminder.TaskID)
	if err != nil {
		return nil, err
	}
	if outcome.Result.Empty() {
		return outcome, ErrNoAvailableSlots
	}

	if err := s.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ?", reminderID).
		Update("status", models.ReminderStatusDismissed).Error; err != nil {
		return nil, fmt.Errorf("dismiss reminder: %w", err)
	}
	return outcome, nil
}

func (s *Service) loadTask(ctx context.Context, userID, taskID string) (models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ? AND user_id = ?", taskID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrTaskNotFound
	}
	if err != nil {
		return task, fmt.Errorf("load task: %w", err)
	}
	if task.Status == models.TaskStatusCompleted {
		return task, ErrTaskCompleted
	}
	return task, nil
}

func taskRequest(task models.Task, profile calendar.Profile) slotengine.TaskRequest {
	return slotengine.TaskRequest{
		DurationMinutes: task.EstimatedMinutes,
		DueDate:         task.DueDate,
		AllowSplit:      profile.AllowSplit,
	}
}

func (s *Service) planAndStore(ctx context.Context, task models.Task, profile calendar.Profile, busy []slotengine.BusyInterval) (*Outcome, error) {
	res, err := s.run(profile, taskRequest(task, profile), busy)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Task: task, Result: res}
	if res.Empty() {
		s.logger.Info().Str("task_id", task.ID).Time("due", task.DueDate).Msg("no free time before due date")
		s.publish(events.EventTaskUnschedulable, task, res)
		return outcome, nil
	}

	if err := s.replaceSessions(ctx, outcome); err != nil {
		return nil, err
	}

	evt := events.EventTaskScheduled
	if res.Partial() {
		evt = events.EventTaskPartiallyScheduled
	}
	s.publish(evt, outcome.Task, res)
	return outcome, nil
}

// replaceSessions swaps the task's study events and open reminders for the
// new plan in one transaction and updates the task's window.
func (s *Service) replaceSessions(ctx context.Context, outcome *Outcome) error {
	task := &outcome.Task
	res := outcome.Result
	now := s.now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND event_type = ?", task.ID, models.EventTypeStudy).
			Delete(&models.Event{}).Error; err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if err := tx.Where("task_id = ? AND status IN ?", task.ID,
			[]models.ReminderStatus{models.ReminderStatusPending, models.ReminderStatusSnoozed}).
			Delete(&models.Reminder{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}

		outcome.Sessions = make([]models.Event, 0, len(res.Slots))
		outcome.Reminders = make([]models.Reminder, 0, len(res.Slots))
		for i, slot := range res.Slots {
			taskID := task.ID
			session := models.Event{
				ID:        uuid.NewString(),
				UserID:    task.UserID,
				TaskID:    &taskID,
				Title:     sessionTitle(task.Title, i, len(res.Slots)),
				EventType: models.EventTypeStudy,
				StartsAt:  slot.Start.UTC(),
				EndsAt:    slot.End.UTC(),
			}
			if err := tx.Create(&session).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			remindAt := session.StartsAt.Add(-s.cfg.ReminderLead)
			if remindAt.Before(now) {
				remindAt = now
			}
			eventID := session.ID
			reminder := models.Reminder{
				ID:       uuid.NewString(),
				UserID:   task.UserID,
				TaskID:   task.ID,
				EventID:  &eventID,
				RemindAt: remindAt,
				Status:   models.ReminderStatusPending,
			}
			if err := tx.Create(&reminder).Error; err != nil {
				return fmt.Errorf("create reminder: %w", err)
			}
			outcome.Sessions = append(outcome.Sessions, session)
			outcome.Reminders = append(outcome.Reminders, reminder)
		}

		first, last := res.Slots[0].Start.UTC(), res.Slots[len(res.Slots)-1].End.UTC()
		task.ScheduledStart = &first
		task.ScheduledEnd = &last
		task.ScheduledMinutes = res.ScheduledMinutes()
		task.ScheduleState = stateOf(res)
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]any{
			"scheduled_start":   first,
			"scheduled_end":     last,
			"scheduled_minutes": task.ScheduledMinutes,
			"schedule_state":    task.ScheduleState,
		}).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}

func (s *Service) publish(t events.EventType, task models.Task, res slotengine.Result) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(t, events.Payload{
		"user_id":           task.UserID,
		"task_id":           task.ID,
		"strategy":          string(res.Strategy),
		"slots":             len(res.Slots),
		"scheduled_minutes": res.ScheduledMinutes(),
		"remaining_minutes": res.RemainingMinutes(),
	})
}

func stateOf(res slotengine.Result) models.ScheduleState {
	switch {
	case res.Complete():
		return models.ScheduleStateScheduled
	case res.Partial():
		return models.ScheduleStatePartial
	default:
		return models.ScheduleStateUnscheduled
	}
}

func sessionTitle(title string, i, n int) string {
	if n == 1 {
		return "Study: " + title
	}
	return fmt.Sprintf("Study: %s (%d/%d)", title, i+1, n)
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
