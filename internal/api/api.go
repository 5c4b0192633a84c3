/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/taskslot/internal/auth"
	"github.com/friendsincode/taskslot/internal/calendar"
	"github.com/friendsincode/taskslot/internal/planner"
	"github.com/friendsincode/taskslot/internal/reminders"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

// EngineDefaults configures stateless proposals that carry no policy of their own.
type EngineDefaults struct {
	Location       *time.Location
	FallbackPolicy slotengine.FallbackPolicy
	AllocationRule slotengine.AllocationRule
	HorizonDays    int
	// Preferences fill fields a request leaves out.
	Preferences slotengine.Preferences
}

// API exposes HTTP handlers.
type API struct {
	jwtSecret []byte
	store     *calendar.Store
	planner   *planner.Service
	reminders *reminders.Service
	defaults  EngineDefaults
	validate  *validatorSvc
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(jwtSecret []byte, store *calendar.Store, plannerSvc *planner.Service, reminderSvc *reminders.Service, defaults EngineDefaults, logger zerolog.Logger) *API {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	if defaults.Preferences == (slotengine.Preferences{}) {
		defaults.Preferences = slotengine.NewPreferences()
	}
	return &API{
		jwtSecret: jwtSecret,
		store:     store,
		planner:   plannerSvc,
		reminders: reminderSvc,
		defaults:  defaults,
		validate:  newValidator(),
		now:       time.Now,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the versioned API on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(a.jwtSecret))

		r.Post("/slots/propose", a.handleSlotsPropose)
		r.Get("/busy", a.handleBusy)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", a.handleTasksList)
			r.Post("/", a.handleTasksCreate)
			r.Post("/propose", a.handleTasksPropose)
			r.Post("/plan", a.handleTasksPlan)
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", a.handleTasksGet)
				r.Put("/", a.handleTasksUpdate)
				r.Delete("/", a.handleTasksDelete)
				r.Post("/schedule", a.handleTasksSchedule)
				r.Post("/complete", a.handleTasksComplete)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", a.handleEventsList)
			r.Post("/", a.handleEventsCreate)
			r.Delete("/{eventID}", a.handleEventsDelete)
		})

		r.Route("/me/preferences", func(r chi.Router) {
			r.Get("/", a.handlePreferencesGet)
			r.Put("/", a.handlePreferencesUpdate)
		})

		r.Get("/analytics/summary", a.handleAnalyticsSummary)

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", a.handleRemindersList)
			r.Post("/{reminderID}/snooze", a.handleRemindersSnooze)
			r.Post("/{reminderID}/dismiss", a.handleRemindersDismiss)
			r.Post("/{reminderID}/reschedule", a.handleRemindersReschedule)
		})
	})
}

func userID(r *http.Request) string {
	return auth.UserID(r.Context())
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as a storage failure.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *slotengine.InputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid_input",
			"field":  inputErr.Field,
			"detail": inputErr.Reason,
		})
	case errors.Is(err, slotengine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, planner.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found")
	case errors.Is(err, planner.ErrTaskCompleted):
		writeError(w, http.StatusConflict, "task_completed")
	case errors.Is(err, reminders.ErrReminderNotFound):
		writeError(w, http.StatusNotFound, "reminder_not_found")
	case errors.Is(err, reminders.ErrReminderClosed):
		writeError(w, http.StatusConflict, "reminder_dismissed")
	case errors.Is(err, planner.ErrNoAvailableSlots):
		writeError(w, http.StatusConflict, "no_available_slots")
	case errors.Is(err, calendar.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event_not_found")
	case errors.Is(err, calendar.ErrInvalidEvent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_event", "detail": err.Error()})
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

// timeRange reads RFC 3339 from/to query parameters, defaulting to the next week.
func (a *API) timeRange(r *http.Request) (time.Time, time.Time, bool) {
	from := a.now()
	to := from.Add(7 * 24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, false
		}
		from = t
		if r.URL.Query().Get("to") == "" {
			to = from.Add(7 * 24 * time.Hour)
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return from, to, false
		}
		to = t
	}
	return from, to, to.After(from)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
