/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/taskslot/internal/calendar"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

type eventCreateRequest struct {
	Title     string    `json:"title" validate:"required,max=255"`
	Location  string    `json:"location" validate:"max=255"`
	EventType string    `json:"event_type" validate:"omitempty,oneof=class personal deadline"`
	StartsAt  time.Time `json:"starts_at" validate:"required"`
	EndsAt    time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	RRule     string    `json:"rrule" validate:"max=255"`
}

type preferencesRequest struct {
	DailyLimitMinutes *int    `json:"daily_limit_minutes" validate:"omitempty,min=1,max=1440"`
	PreferredStart    *string `json:"preferred_start" validate:"omitempty,clock"`
	PreferredEnd      *string `json:"preferred_end" validate:"omitempty,clock"`
	TaskStyle         *string `json:"task_style" validate:"omitempty,oneof=chunks one-go"`
	Timezone          *string `json:"timezone" validate:"omitempty,timezone"`
}

type preferencesResponse struct {
	DailyLimitMinutes int                  `json:"daily_limit_minutes"`
	WorkStart         slotengine.ClockTime `json:"work_start"`
	WorkEnd           slotengine.ClockTime `json:"work_end"`
	AllowSplit        bool                 `json:"allow_split"`
	Timezone          string               `json:"timezone"`
}

func (a *API) handleEventsList(w http.ResponseWriter, r *http.Request) {
	from, to, ok := a.timeRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}
	evs, err := a.store.ListEvents(r.Context(), userID(r), from, to)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (a *API) handleEventsCreate(w http.ResponseWriter, r *http.Request) {
	var req eventCreateRequest
	if !a.bindJSON(w, r, &req, false) {
		return
	}
	ev := models.Event{
		UserID:    userID(r),
		Title:     req.Title,
		Location:  req.Location,
		EventType: models.EventType(req.EventType),
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		RRule:     req.RRule,
	}
	if err := a.store.CreateEvent(r.Context(), &ev); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (a *API) handleEventsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteEvent(r.Context(), userID(r), chi.URLParam(r, "eventID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePreferencesGet(w http.ResponseWriter, r *http.Request) {
	a.writePreferences(w, r)
}

func (a *API) handlePreferencesUpdate(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !a.bindJSON(w, r, &req, false) {
		return
	}
	if req.PreferredStart != nil && req.PreferredEnd != nil {
		start, _ := slotengine.ParseClock(*req.PreferredStart)
		end, _ := slotengine.ParseClock(*req.PreferredEnd)
		if start >= end {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":  "invalid_input",
				"field":  "preferred_end",
				"detail": "must be after preferred_start",
			})
			return
		}
	}

	upd := calendar.PreferencesUpdate{
		DailyLimitMinutes: req.DailyLimitMinutes,
		PreferredStart:    req.PreferredStart,
		PreferredEnd:      req.PreferredEnd,
		Timezone:          req.Timezone,
	}
	if req.TaskStyle != nil {
		style := models.TaskStyle(*req.TaskStyle)
		upd.TaskStyle = &style
	}
	if _, err := a.store.UpdatePreferences(r.Context(), userID(r), upd); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writePreferences(w, r)
}

func (a *API) writePreferences(w http.ResponseWriter, r *http.Request) {
	p, err := a.store.Profile(r.Context(), userID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{
		DailyLimitMinutes: p.Preferences.DailyLimitMinutes,
		WorkStart:         p.Preferences.WorkStart,
		WorkEnd:           p.Preferences.WorkEnd,
		AllowSplit:        p.AllowSplit,
		Timezone:          p.Location.String(),
	})
}
