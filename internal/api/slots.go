/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/friendsincode/taskslot/internal/auth"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

// handleSlotsPropose answers a self-contained request without touching storage.
// Without an explicit timezone the token's zone claim applies, then the server default.
func (a *API) handleSlotsPropose(w http.ResponseWriter, r *http.Request) {
	var req slotengine.Request
	if !a.bindJSON(w, r, &req, false) {
		return
	}
	if req.Timezone == "" {
		req.Timezone = auth.Timezone(r.Context())
	}

	res, err := req.Run(
		slotengine.WithLocation(a.defaults.Location),
		slotengine.WithClock(a.now),
		slotengine.WithFallbackPolicy(a.defaults.FallbackPolicy),
		slotengine.WithAllocationRule(a.defaults.AllocationRule),
		slotengine.WithMaxHorizonDays(a.defaults.HorizonDays),
		slotengine.WithDefaultPreferences(a.defaults.Preferences),
		slotengine.WithLogger(a.logger),
	)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleBusy(w http.ResponseWriter, r *http.Request) {
	from, to, ok := a.timeRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}
	busy, err := a.store.BusyIntervals(r.Context(), userID(r), from, to)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from": from,
		"to":   to,
		"busy": busy,
	})
}
