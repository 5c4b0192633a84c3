/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type snoozeRequest struct {
	Minutes int `json:"minutes" validate:"omitempty,min=1,max=10080"`
}

func (a *API) handleRemindersList(w http.ResponseWriter, r *http.Request) {
	active, err := a.reminders.Active(r.Context(), userID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (a *API) handleRemindersSnooze(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if !a.bindJSON(w, r, &req, true) {
		return
	}
	reminder, err := a.reminders.Snooze(r.Context(), userID(r), chi.URLParam(r, "reminderID"), time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

func (a *API) handleRemindersDismiss(w http.ResponseWriter, r *http.Request) {
	reminder, err := a.reminders.Dismiss(r.Context(), userID(r), chi.URLParam(r, "reminderID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// handleRemindersReschedule moves the reminder's task to the next free time.
func (a *API) handleRemindersReschedule(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.planner.RescheduleFromReminder(r.Context(), userID(r), chi.URLParam(r, "reminderID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
