/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/taskslot/internal/calendar"
	"github.com/friendsincode/taskslot/internal/events"
	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/slotengine"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	svc *Service
	db  *gorm.DB
	bus *events.Bus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Task{}, &models.Event{}, &models.Reminder{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	store := calendar.NewStore(db, nil, bus, slotengine.NewPreferences(), time.UTC, zerolog.Nop())
	svc := New(db, store, bus, Config{ReminderLead: 15 * time.Minute, PlanningHorizonDays: 60}, zerolog.Nop())
	svc.SetClock(func() time.Time { return at(2, 8, 0) })
	return fixture{svc: svc, db: db, bus: bus}
}

func (f fixture) task(t *testing.T, id string, minutes int, due time.Time) models.Task {
	t.Helper()
	task := models.Task{ID: id, UserID: "u1", Title: id, DueDate: due, EstimatedMinutes: minutes}
	if _, err := f.svc.CreateTask(context.Background(), &task, false); err != nil {
		t.Fatalf("create task %s: %v", id, err)
	}
	return task
}

func (f fixture) sessions(t *testing.T, taskID string) []models.Event {
	t.Helper()
	var evs []models.Event
	if err := f.db.Where("task_id = ? AND event_type = ?", taskID, models.EventTypeStudy).Order("starts_at").Find(&evs).Error; err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	return evs
}

func TestScheduleTaskStoresSessionsAndReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 300, at(5, 17, 0))
	sub := f.bus.Subscribe(events.EventTaskScheduled)

	out, err := f.svc.ScheduleTask(ctx, "u1", "essay")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(out.Sessions) != 2 || len(out.Reminders) != 2 {
		t.Fatalf("expected 2 sessions and reminders, got %d/%d", len(out.Sessions), len(out.Reminders))
	}
	if !out.Reminders[0].RemindAt.Equal(at(2, 8, 45)) || !out.Reminders[1].RemindAt.Equal(at(3, 8, 45)) {
		t.Fatalf("unexpected reminder times: %s, %s", out.Reminders[0].RemindAt, out.Reminders[1].RemindAt)
	}
	if out.Sessions[0].Title != "Study: essay (1/2)" {
		t.Fatalf("unexpected session title %q", out.Sessions[0].Title)
	}

	var stored models.Task
	if err := f.db.First(&stored, "id = ?", "essay").Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if stored.ScheduleState != models.ScheduleStateScheduled || stored.ScheduledMinutes != 300 {
		t.Fatalf("unexpected task state %q (%d min)", stored.ScheduleState, stored.ScheduledMinutes)
	}
	if stored.ScheduledStart == nil || !stored.ScheduledStart.Equal(at(2, 9, 0)) || !stored.ScheduledEnd.Equal(at(3, 10, 0)) {
		t.Fatalf("unexpected task window %v..%v", stored.ScheduledStart, stored.ScheduledEnd)
	}

	select {
	case p := <-sub:
		if p["task_id"] != "essay" || p["slots"] != 2 {
			t.Fatalf("unexpected event payload %v", p)
		}
	default:
		t.Fatal("expected task.scheduled event")
	}
}

func TestScheduleTaskReplacesPreviousPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "lab", 120, at(4, 17, 0))

	first, err := f.svc.ScheduleTask(ctx, "u1", "lab")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	second, err := f.svc.ScheduleTask(ctx, "u1", "lab")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	if got := f.sessions(t, "lab"); len(got) != 1 {
		t.Fatalf("expected old sessions replaced, got %d", len(got))
	}
	if !first.Result.Slots[0].Start.Equal(second.Result.Slots[0].Start) {
		t.Fatalf("re-planning should not be blocked by its own sessions: %s vs %s",
			first.Result.Slots[0].Start, second.Result.Slots[0].Start)
	}
	var reminders int64
	f.db.Model(&models.Reminder{}).Where("task_id = ?", "lab").Count(&reminders)
	if reminders != 1 {
		t.Fatalf("expected 1 reminder, got %d", reminders)
	}
}

func TestScheduleTaskAvoidsCalendarEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.db.Create(&models.Event{ID: "class", UserID: "u1", Title: "Lecture", EventType: models.EventTypeClass, StartsAt: at(2, 9, 0), EndsAt: at(2, 10, 0)}).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	f.task(t, "reading", 60, at(3, 17, 0))

	out, err := f.svc.ScheduleTask(ctx, "u1", "reading")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !out.Result.Slots[0].Start.Equal(at(2, 10, 0)) {
		t.Fatalf("expected 10:00 after lecture, got %s", out.Result.Slots[0].Start)
	}
}

func TestScheduleTaskPartialAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partialSub := f.bus.Subscribe(events.EventTaskPartiallyScheduled)
	emptySub := f.bus.Subscribe(events.EventTaskUnschedulable)

	f.task(t, "thesis", 600, at(3, 17, 0))
	out, err := f.svc.ScheduleTask(ctx, "u1", "thesis")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !out.Result.Partial() || out.Task.ScheduleState != models.ScheduleStatePartial || out.Result.RemainingMinutes() != 120 {
		t.Fatalf("expected partial plan, got %+v", out.Result)
	}
	if len(partialSub) != 1 {
		t.Fatal("expected partial event")
	}

	if err := f.db.Create(&models.Event{ID: "trip", UserID: "u1", Title: "Trip", StartsAt: at(2, 0, 0), EndsAt: at(3, 0, 0)}).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	f.task(t, "quiz", 30, at(2, 17, 0))
	out, err = f.svc.ScheduleTask(ctx, "u1", "quiz")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !out.Result.Empty() || len(f.sessions(t, "quiz")) != 0 {
		t.Fatalf("expected nothing placed, got %+v", out.Result)
	}
	if len(emptySub) != 1 {
		t.Fatal("expected unschedulable event")
	}
}

func TestScheduleTaskErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ScheduleTask(ctx, "u1", "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	f.task(t, "late", 60, at(1, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "late"); !errors.Is(err, slotengine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past due date, got %v", err)
	}

	f.task(t, "done", 60, at(4, 17, 0))
	if _, err := f.svc.CompleteTask(ctx, "u1", "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.svc.ScheduleTask(ctx, "u1", "done"); !errors.Is(err, ErrTaskCompleted) {
		t.Fatalf("expected ErrTaskCompleted, got %v", err)
	}

	f.task(t, "other", 60, at(4, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u2", "other"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("tasks of other users must be invisible, got %v", err)
	}
}

func TestPlanBatchDoesNotSelfOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "later", 120, at(3, 17, 0))
	f.task(t, "sooner", 120, at(2, 17, 0))
	f.task(t, "expired", 60, at(1, 17, 0))

	outs, err := f.svc.PlanBatch(ctx, "u1", []string{"later", "sooner", "expired"})
	if err != nil {
		t.Fatalf("plan batch: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outs))
	}
	if outs[0].Task.ID != "expired" || outs[0].Error == "" {
		t.Fatalf("expected expired task first with an error, got %+v", outs[0])
	}
	if outs[1].Task.ID != "sooner" || !outs[1].Result.Slots[0].Start.Equal(at(2, 9, 0)) {
		t.Fatalf("unexpected first placement %+v", outs[1].Result)
	}
	later := outs[2].Result.Slots
	if len(later) != 1 || !later[0].Start.Equal(at(2, 11, 0)) {
		t.Fatalf("expected later task after sooner one, got %+v", later)
	}
}

func TestPlanBatchKeepsSessionsOfUnplacedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.db.Create(&models.Event{ID: "fair", UserID: "u1", Title: "Career fair", EventType: models.EventTypePersonal, StartsAt: at(2, 9, 0), EndsAt: at(2, 17, 0)}).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	f.task(t, "draft", 120, at(3, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "draft"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got := f.sessions(t, "draft"); len(got) != 1 || !got[0].StartsAt.Equal(at(3, 9, 0)) {
		t.Fatalf("expected draft on day 3 at 09:00, got %+v", got)
	}

	// Pull the deadline into the blocked morning so the re-plan finds nothing.
	if err := f.db.Model(&models.Task{}).Where("id = ?", "draft").Update("due_date", at(2, 10, 0)).Error; err != nil {
		t.Fatalf("move due date: %v", err)
	}
	f.task(t, "slides", 120, at(3, 17, 0))

	outs, err := f.svc.PlanBatch(ctx, "u1", []string{"draft", "slides"})
	if err != nil {
		t.Fatalf("plan batch: %v", err)
	}
	if outs[0].Task.ID != "draft" || !outs[0].Result.Empty() {
		t.Fatalf("expected empty re-plan for draft, got %+v", outs[0])
	}
	if got := f.sessions(t, "draft"); len(got) != 1 {
		t.Fatalf("draft sessions should be kept, got %d", len(got))
	}
	slides := outs[1].Result.Slots
	if len(slides) != 1 || !slides[0].Start.Equal(at(3, 11, 0)) {
		t.Fatalf("expected slides after kept draft session, got %+v", slides)
	}
}

func TestCreateTaskWithScheduleValidatesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late := models.Task{ID: "late", UserID: "u1", Title: "late", DueDate: at(1, 12, 0), EstimatedMinutes: 60}
	if _, err := f.svc.CreateTask(ctx, &late, true); !errors.Is(err, slotengine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	zero := models.Task{ID: "zero", UserID: "u1", Title: "zero", DueDate: at(4, 12, 0)}
	if _, err := f.svc.CreateTask(ctx, &zero, true); !errors.Is(err, slotengine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero estimate, got %v", err)
	}
	var stored int64
	f.db.Model(&models.Task{}).Count(&stored)
	if stored != 0 {
		t.Fatalf("rejected tasks must not be stored, found %d", stored)
	}

	ok := models.Task{ID: "ok", UserID: "u1", Title: "ok", DueDate: at(4, 12, 0), EstimatedMinutes: 60}
	out, err := f.svc.CreateTask(ctx, &ok, true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(out.Sessions))
	}
}

func TestPlanBatchDefaultsToOpenTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "a", 60, at(3, 17, 0))
	f.task(t, "b", 60, at(4, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "a"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	outs, err := f.svc.PlanBatch(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("plan batch: %v", err)
	}
	if len(outs) != 1 || outs[0].Task.ID != "b" {
		t.Fatalf("expected only the unscheduled task, got %+v", outs)
	}
	if !outs[0].Result.Slots[0].Start.Equal(at(2, 10, 0)) {
		t.Fatalf("expected b after a, got %s", outs[0].Result.Slots[0].Start)
	}

	if _, err := f.svc.PlanBatch(ctx, "u1", []string{"a", "nope"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestProposeDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	split := true
	res, err := f.svc.Propose(context.Background(), "u1", ProposeRequest{DurationMinutes: 90, DueDate: at(3, 17, 0), AllowSplit: &split})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(res.Slots) != 1 || !res.Slots[0].Start.Equal(at(2, 9, 0)) {
		t.Fatalf("unexpected proposal %+v", res)
	}
	var count int64
	f.db.Model(&models.Event{}).Count(&count)
	if count != 0 {
		t.Fatalf("propose stored %d events", count)
	}
}

func TestRescheduleFromReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 60, at(4, 17, 0))
	out, err := f.svc.ScheduleTask(ctx, "u1", "essay")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	reminderID := out.Reminders[0].ID
	f.db.Model(&models.Reminder{}).Where("id = ?", reminderID).Update("status", models.ReminderStatusTriggered)

	if _, err := f.svc.RescheduleFromReminder(ctx, "u2", reminderID); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("expected ErrReminderNotFound for other user, got %v", err)
	}

	f.svc.SetClock(func() time.Time { return at(2, 12, 10) })
	moved, err := f.svc.RescheduleFromReminder(ctx, "u1", reminderID)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.Result.Slots[0].Start.Equal(at(2, 12, 30)) {
		t.Fatalf("expected next grid point after now, got %s", moved.Result.Slots[0].Start)
	}
	var old models.Reminder
	f.db.First(&old, "id = ?", reminderID)
	if old.Status != models.ReminderStatusDismissed {
		t.Fatalf("expected old reminder dismissed, got %s", old.Status)
	}
}

func TestCompleteAndDeleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 300, at(5, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "essay"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	done, err := f.svc.CompleteTask(ctx, "u1", "essay")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.TaskStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("unexpected completed task %+v", done)
	}
	if n := len(f.sessions(t, "essay")); n != 0 {
		t.Fatalf("expected future sessions removed, %d left", n)
	}
	var open int64
	f.db.Model(&models.Reminder{}).Where("task_id = ? AND status = ?", "essay", models.ReminderStatusPending).Count(&open)
	if open != 0 {
		t.Fatalf("expected reminders closed, %d pending", open)
	}

	if err := f.svc.DeleteTask(ctx, "u1", "essay"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteTask(ctx, "u1", "essay"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on second delete, got %v", err)
	}
}

func TestListTasksFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "b", 60, at(6, 17, 0))
	f.task(t, "a", 60, at(3, 17, 0))
	f.task(t, "c", 60, at(9, 17, 0))

	all, err := f.svc.ListTasks(ctx, "u1", TaskFilter{})
	if err != nil || len(all) != 3 || all[0].ID != "a" {
		t.Fatalf("list all = %v, %v", all, err)
	}
	some, err := f.svc.ListTasks(ctx, "u1", TaskFilter{DueTo: at(7, 0, 0), Status: models.TaskStatusPending})
	if err != nil || len(some) != 2 {
		t.Fatalf("list filtered = %v, %v", some, err)
	}
}

func TestUpdateTaskReplans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 60, at(4, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "essay"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	sub := f.bus.Subscribe(events.EventTaskUpdated)

	title := "essay draft"
	minutes := 120
	out, err := f.svc.UpdateTask(ctx, "u1", "essay", TaskUpdate{Title: &title, EstimatedMinutes: &minutes}, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Task.Title != title || out.Task.EstimatedMinutes != 120 {
		t.Fatalf("unexpected task %+v", out.Task)
	}
	got := f.sessions(t, "essay")
	if len(got) != 1 || !got[0].StartsAt.Equal(at(2, 9, 0)) || !got[0].EndsAt.Equal(at(2, 11, 0)) {
		t.Fatalf("expected one replanned session 09:00-11:00, got %+v", got)
	}
	select {
	case p := <-sub:
		if p["task_id"] != "essay" {
			t.Fatalf("unexpected event payload %v", p)
		}
	default:
		t.Fatal("expected task.updated event")
	}
}

func TestUpdateTaskWithoutReplanKeepsSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 60, at(4, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "essay"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due := at(6, 17, 0)
	prio := models.TaskPriorityHigh
	out, err := f.svc.UpdateTask(ctx, "u1", "essay", TaskUpdate{DueDate: &due, Priority: &prio}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !out.Task.DueDate.Equal(due) || out.Task.Priority != models.TaskPriorityHigh {
		t.Fatalf("unexpected task %+v", out.Task)
	}
	if out.Task.ScheduleState != models.ScheduleStateScheduled {
		t.Fatalf("expected schedule state kept, got %q", out.Task.ScheduleState)
	}
	if got := f.sessions(t, "essay"); len(got) != 1 || !got[0].StartsAt.Equal(at(2, 9, 0)) {
		t.Fatalf("expected the old session untouched, got %+v", got)
	}
}

func TestUpdateTaskErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "essay", 60, at(4, 17, 0))
	f.task(t, "done", 60, at(4, 17, 0))
	if _, err := f.svc.CompleteTask(ctx, "u1", "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	zero := 0
	empty := ""
	past := at(1, 12, 0)
	title := "renamed"
	tests := []struct {
		name   string
		taskID string
		upd    TaskUpdate
		replan bool
		want   error
	}{
		{"unknown task", "nope", TaskUpdate{Title: &title}, false, ErrTaskNotFound},
		{"zero estimate", "essay", TaskUpdate{EstimatedMinutes: &zero}, false, slotengine.ErrInvalidInput},
		{"empty title", "essay", TaskUpdate{Title: &empty}, false, slotengine.ErrInvalidInput},
		{"past due with replan", "essay", TaskUpdate{DueDate: &past}, true, slotengine.ErrInvalidInput},
		{"replan completed", "done", TaskUpdate{}, true, ErrTaskCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.UpdateTask(ctx, "u1", tt.taskID, tt.upd, tt.replan); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	var stored models.Task
	f.db.First(&stored, "id = ?", "essay")
	if !stored.DueDate.Equal(at(4, 17, 0)) || stored.EstimatedMinutes != 60 {
		t.Fatalf("rejected updates must not be stored, got %+v", stored)
	}

	out, err := f.svc.UpdateTask(ctx, "u1", "done", TaskUpdate{Title: &title}, false)
	if err != nil {
		t.Fatalf("edit completed task: %v", err)
	}
	if out.Task.Title != title || out.Task.Status != models.TaskStatusCompleted {
		t.Fatalf("unexpected completed task %+v", out.Task)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.task(t, "a", 60, at(4, 17, 0))
	f.task(t, "late", 120, at(1, 17, 0))
	f.task(t, "c", 60, at(5, 17, 0))
	if _, err := f.svc.ScheduleTask(ctx, "u1", "a"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := f.svc.CompleteTask(ctx, "u1", "c"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := f.svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := Summary{
		Pending:           2,
		Completed:         1,
		Overdue:           1,
		CompletedThisWeek: 1,
		ScheduledMinutes:  60,
		UnplacedMinutes:   120,
		UpcomingSessions:  1,
		UpcomingMinutes:   60,
	}
	if got != want {
		t.Fatalf("summary = %+v, want %+v", got, want)
	}

	other, err := f.svc.Summary(ctx, "u2")
	if err != nil || other != (Summary{}) {
		t.Fatalf("expected empty summary for another user, got %+v, %v", other, err)
	}
}
