/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTaskScheduled)
	other := bus.Subscribe(EventReminderDue)

	bus.Publish(EventTaskScheduled, Payload{"task_id": "t1"})

	select {
	case p := <-sub:
		if p["task_id"] != "t1" {
			t.Fatalf("unexpected payload: %v", p)
		}
	default:
		t.Fatal("expected payload")
	}
	select {
	case p := <-other:
		t.Fatalf("unexpected delivery to other type: %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventReminderDue)
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventReminderDue, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected full buffer, got %d", len(sub))
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventTaskCompleted)
	bus.Unsubscribe(EventTaskCompleted, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(EventTaskCompleted, Payload{})
	bus.Unsubscribe(EventTaskCompleted, sub)
}
