/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package calendar reads and writes the commitments and work-style settings
// that feed the slot engine.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/cache"
	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("invalid event")
)

// Profile is a user's resolved planning settings.
type Profile struct {
	Preferences slotengine.Preferences
	AllowSplit  bool
	Location    *time.Location
}

// Store is the persistence collaborator of the planner.
type Store struct {
	db       *gorm.DB
	cache    *cache.Cache
	bus      events.Publisher
	defaults slotengine.Preferences
	loc      *time.Location
	logger   zerolog.Logger
}

// NewStore creates a store. cache and bus may be nil.
func NewStore(db *gorm.DB, c *cache.Cache, bus events.Publisher, defaults slotengine.Preferences, loc *time.Location, logger zerolog.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	if defaults == (slotengine.Preferences{}) {
		defaults = slotengine.NewPreferences()
	}
	return &Store{
		db:       db,
		cache:    c,
		bus:      bus,
		defaults: defaults,
		loc:      loc,
		logger:   logger.With().Str("component", "calendar").Logger(),
	}
}

// BusyIntervals merges calendar events and planned task work overlapping
// [from, to). Sessions and windows of the excluded tasks are left out so a
// task can be re-planned over its own previous placement.
func (s *Store) BusyIntervals(ctx context.Context, userID string, from, to time.Time, excludeTaskIDs ...string) ([]slotengine.BusyInterval, error) {
	excluded := make(map[string]bool, len(excludeTaskIDs))
	for _, id := range excludeTaskIDs {
		excluded[id] = true
	}

	evs, err := s.eventsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	busy := make([]slotengine.BusyInterval, 0, len(evs))
	withSessions := map[string]bool{}
	for _, ev := range evs {
		kind := slotengine.KindEvent
		if ev.IsTaskSession() {
			if excluded[*ev.TaskID] {
				continue
			}
			withSessions[*ev.TaskID] = true
			kind = slotengine.KindTask
		}
		busy = append(busy, slotengine.BusyInterval{
			Start: ev.StartsAt,
			End:   ev.EndsAt,
			Kind:  kind,
			Label: ev.Title,
		})
	}

	// Tasks that carry a window but no sessions, e.g. placed by hand.
	var tasks []models.Task
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL", userID, models.TaskStatusPending).
		Where("scheduled_start < ? AND scheduled_end > ?", to.UTC(), from.UTC())
	if len(excludeTaskIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeTaskIDs)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("load scheduled tasks: %w", err)
	}
	for _, t := range tasks {
		if withSessions[t.ID] {
			continue
		}
		var sessions int64
		if err := s.db.WithContext(ctx).Model(&models.Event{}).
			Where("task_id = ? AND event_type = ?", t.ID, models.EventTypeStudy).
			Count(&sessions).Error; err != nil {
			return nil, fmt.Errorf("count sessions: %w", err)
		}
		if sessions > 0 {
			continue
		}
		busy = append(busy, slotengine.BusyInterval{
			Start: *t.ScheduledStart,
			End:   *t.ScheduledEnd,
			Kind:  slotengine.KindTask,
			Label: t.Title,
		})
	}

	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})
	return busy, nil
}

// TaskIntervals returns one task's planned work overlapping [from, to): its
// sessions, or its scheduled window when it has none.
func (s *Store) TaskIntervals(ctx context.Context, userID, taskID string, from, to time.Time) ([]slotengine.BusyInterval, error) {
	var sessions []models.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND event_type = ?", userID, taskID, models.EventTypeStudy).
		Where("starts_at < ? AND ends_at > ?", to.UTC(), from.UTC()).
		Order("starts_at ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	busy := make([]slotengine.BusyInterval, 0, len(sessions))
	for _, ev := range sessions {
		busy = append(busy, slotengine.BusyInterval{Start: ev.StartsAt, End: ev.EndsAt, Kind: slotengine.KindTask, Label: ev.Title})
	}
	if len(busy) > 0 {
		return busy, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("task_id = ? AND event_type = ?", taskID, models.EventTypeStudy).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if count > 0 {
		return busy, nil
	}
	var task models.Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND scheduled_start IS NOT NULL AND scheduled_end IS NOT NULL", taskID, userID).
		Where("scheduled_start < ? AND scheduled_end > ?", to.UTC(), from.UTC()).
		Limit(1).Find(&task).Error
	if err != nil {
		return nil, fmt.Errorf("load task window: %w", err)
	}
	if task.ID != "" {
		busy = append(busy, slotengine.BusyInterval{Start: *task.ScheduledStart, End: *task.ScheduledEnd, Kind: slotengine.KindTask, Label: task.Title})
	}
	return busy, nil
}

// Profile resolves userID's planning settings, applying configured defaults
// for every absent field. Unknown users get the defaults.
func (s *Store) Profile(ctx context.Context, userID string) (Profile, error) {
	if cached, ok := s.cache.GetProfile(ctx, userID); ok {
		return Profile{
			Preferences: cached.Preferences,
			AllowSplit:  cached.AllowSplit,
			Location:    s.location(cached.Timezone),
		}, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{Preferences: s.defaults, AllowSplit: true, Location: s.loc}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load user: %w", err)
	}

	p := Profile{
		Preferences: s.preferencesOf(user),
		AllowSplit:  user.AllowsSplit(),
		Location:    s.location(user.Timezone),
	}
	if err := s.cache.SetProfile(ctx, userID, cache.Profile{
		Preferences: p.Preferences,
		AllowSplit:  p.AllowSplit,
		Timezone:    user.Timezone,
	}); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("cache profile")
	}
	return p, nil
}

// Preferences returns only the work-style part of Profile.
func (s *Store) Preferences(ctx context.Context, userID string) (slotengine.Preferences, error) {
	p, err := s.Profile(ctx, userID)
	return p.Preferences, err
}

func (s *Store) preferencesOf(u models.User) slotengine.Preferences {
	p := s.defaults
	if u.DailyLimitMinutes > 0 {
		p.DailyLimitMinutes = u.DailyLimitMinutes
	}
	start, end := p.WorkStart, p.WorkEnd
	if u.PreferredStart != "" {
		if c, err := slotengine.ParseClock(u.PreferredStart); err == nil {
			start = c
		} else {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("ignoring preferred start")
		}
	}
	if u.PreferredEnd != "" {
		if c, err := slotengine.ParseClock(u.PreferredEnd); err == nil {
			end = c
		} else {
			s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("ignoring preferred end")
		}
	}
	if start < end {
		p.WorkStart, p.WorkEnd = start, end
	} else {
		s.logger.Warn().Str("user_id", u.ID).Msg("preferred hours inverted, using defaults")
	}
	return p
}

func (s *Store) location(name string) *time.Location {
	if name == "" {
		return s.loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Warn().Err(err).Str("timezone", name).Msg("unknown timezone, using default")
		return s.loc
	}
	return loc
}

// PreferencesUpdate carries optional profile changes.
type PreferencesUpdate struct {
	DailyLimitMinutes *int
	PreferredStart    *string
	PreferredEnd      *string
	TaskStyle         *models.TaskStyle
	Timezone          *string
}

// UpdatePreferences upserts the user's work-style settings.
func (s *Store) UpdatePreferences(ctx context.Context, userID string, upd PreferencesUpdate) (*models.User, error) {
	var user models.User
	exists := true
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{ID: userID, Email: userID + "@users.invalid"}
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if upd.DailyLimitMinutes != nil {
		user.DailyLimitMinutes = *upd.DailyLimitMinutes
	}
	if upd.PreferredStart != nil {
		user.PreferredStart = *upd.PreferredStart
	}
	if upd.PreferredEnd != nil {
		user.PreferredEnd = *upd.PreferredEnd
	}
	if upd.TaskStyle != nil {
		user.TaskStyle = *upd.TaskStyle
	}
	if upd.Timezone != nil {
		user.Timezone = *upd.Timezone
	}

	write := s.db.WithContext(ctx).Save
	if !exists {
		write = s.db.WithContext(ctx).Create
	}
	if err := write(&user).Error; err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("invalidate profile")
	}
	s.publish(events.EventPreferencesUpdated, events.Payload{"user_id": userID})
	return &user, nil
}

// ListEvents returns the user's events overlapping [from, to), earliest first.
// Recurring events appear once per occurrence, sharing the series ID.
func (s *Store) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]models.Event, error) {
	evs, err := s.eventsBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].StartsAt.Before(evs[j].StartsAt)
	})
	return evs, nil
}

// eventsBetween loads single events overlapping [from, to) and expands
// recurring series in the user's timezone.
func (s *Store) eventsBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Event, error) {
	var evs []models.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND (rrule IS NULL OR rrule = '') AND starts_at < ? AND ends_at > ?", userID, to.UTC(), from.UTC()).
		Order("starts_at ASC").
		Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	var series []models.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND rrule <> '' AND starts_at < ?", userID, to.UTC()).
		Find(&series).Error; err != nil {
		return nil, fmt.Errorf("load recurring events: %w", err)
	}
	if len(series) == 0 {
		return evs, nil
	}

	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, ev := range series {
		occ, err := occurrences(ev, profile.Location, from, to)
		if err != nil {
			s.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("skipping unreadable recurrence")
			continue
		}
		evs = append(evs, occ...)
	}
	return evs, nil
}

// CreateEvent stores a calendar commitment.
func (s *Store) CreateEvent(ctx context.Context, ev *models.Event) error {
	if !ev.StartsAt.Before(ev.EndsAt) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidEvent)
	}
	if err := ValidateRRule(ev.RRule); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.EventType == "" {
		ev.EventType = models.EventTypePersonal
	}
	ev.StartsAt = ev.StartsAt.UTC()
	ev.EndsAt = ev.EndsAt.UTC()
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// DeleteEvent removes one of the user's events.
func (s *Store) DeleteEvent(ctx context.Context, userID, eventID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", eventID, userID).Delete(&models.Event{})
	if res.Error != nil {
		return fmt.Errorf("delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *Store) publish(t events.EventType, p events.Payload) {
	if s.bus != nil {
		s.bus.Publish(t, p)
	}
}
