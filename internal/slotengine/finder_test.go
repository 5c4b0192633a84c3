/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slotengine

import (
	"testing"
	"time"
)

func TestFindSlotInWindow(t *testing.T) {
	start, end := at(2, 9, 0), at(2, 17, 0)

	tests := []struct {
		name      string
		minutes   int
		busy      []BusyInterval
		wantOK    bool
		wantStart time.Time
	}{
		{"free window", 60, nil, true, at(2, 9, 0)},
		{"skips to next grid point", 60, []BusyInterval{{Start: at(2, 9, 0), End: at(2, 9, 45)}}, true, at(2, 10, 0)},
		{"gap too short", 90, []BusyInterval{
			{Start: at(2, 9, 0), End: at(2, 10, 0)},
			{Start: at(2, 11, 0), End: at(2, 17, 0)},
		}, false, time.Time{}},
		{"fills to window end", 120, []BusyInterval{{Start: at(2, 9, 0), End: at(2, 15, 0)}}, true, at(2, 15, 0)},
		{"longer than window", 9 * 60, nil, false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := FindSlotInWindow(start, end, tt.minutes, tt.busy)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !slot.Start.Equal(tt.wantStart) {
				t.Fatalf("start = %s, want %s", slot.Start, tt.wantStart)
			}
			if got := slot.End.Sub(slot.Start); got != time.Duration(tt.minutes)*time.Minute {
				t.Fatalf("length = %s", got)
			}
			if slot.Date.String() != "2026-03-02" {
				t.Fatalf("date = %s", slot.Date)
			}
		})
	}
}

func TestFindSlotStartsOnGridAfterFrom(t *testing.T) {
	slot, ok := findSlot(at(2, 9, 0), at(2, 10, 10), at(2, 17, 0), 30, DefaultGranularity, nil)
	if !ok {
		t.Fatal("expected slot")
	}
	if !slot.Start.Equal(at(2, 10, 30)) {
		t.Fatalf("start = %s, want 10:30", slot.Start)
	}
}
