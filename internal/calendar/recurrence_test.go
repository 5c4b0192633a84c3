/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/taskslot/internal/models"
)

func TestRecurringEventKeepsLocalTimeAcrossDST(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	if err := db.Create(&models.User{ID: "u1", Email: "u1@example.com", Timezone: "Europe/Berlin"}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	first := time.Date(2026, time.March, 2, 9, 0, 0, 0, berlin)
	err = store.CreateEvent(ctx, &models.Event{
		UserID:    "u1",
		Title:     "Seminar",
		EventType: models.EventTypeClass,
		StartsAt:  first,
		EndsAt:    first.Add(90 * time.Minute),
		RRule:     "FREQ=WEEKLY;BYDAY=MO",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	busy, err := store.BusyIntervals(ctx, "u1", utc(23, 0), time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("busy: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected 2 occurrences, got %d: %+v", len(busy), busy)
	}
	want := []time.Time{
		time.Date(2026, time.March, 23, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 30, 7, 0, 0, 0, time.UTC),
	}
	for i, b := range busy {
		if !b.Start.Equal(want[i]) || b.Minutes() != 90 {
			t.Errorf("occurrence %d = %s (%d min), want %s", i, b.Start, b.Minutes(), want[i])
		}
	}
}

func TestRecurringEventOverlappingRangeStart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	err := store.CreateEvent(ctx, &models.Event{
		UserID:   "u1",
		Title:    "Shift",
		StartsAt: utc(2, 8),
		EndsAt:   utc(2, 12),
		RRule:    "FREQ=DAILY;COUNT=3",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	evs, err := store.ListEvents(ctx, "u1", utc(3, 10), utc(9, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 2 || !evs[0].StartsAt.Equal(utc(3, 8)) || !evs[1].StartsAt.Equal(utc(4, 8)) {
		t.Fatalf("unexpected occurrences %+v", evs)
	}
}

func TestCreateEventRejectsBadRRule(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.CreateEvent(context.Background(), &models.Event{
		UserID:   "u1",
		Title:    "Broken",
		StartsAt: utc(2, 8),
		EndsAt:   utc(2, 9),
		RRule:    "FREQ=SOMETIMES",
	})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := ValidateRRule(""); err != nil {
		t.Fatalf("empty rule must be valid: %v", err)
	}
}
