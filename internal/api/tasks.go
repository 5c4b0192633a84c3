/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/taskslot/internal/models"
	"github.com/friendsincode/taskslot/internal/planner"
)

type taskCreateRequest struct {
	Title            string    `json:"title" validate:"required,max=255"`
	Description      string    `json:"description"`
	CourseCode       string    `json:"course_code" validate:"max=32"`
	DueDate          time.Time `json:"due_date" validate:"required"`
	EstimatedMinutes int       `json:"estimated_minutes" validate:"required,min=1,max=10080"`
	Priority         string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Schedule         bool      `json:"schedule"`
}

type taskUpdateRequest struct {
	Title            *string    `json:"title" validate:"omitnil,min=1,max=255"`
	Description      *string    `json:"description"`
	CourseCode       *string    `json:"course_code" validate:"omitnil,max=32"`
	DueDate          *time.Time `json:"due_date"`
	EstimatedMinutes *int       `json:"estimated_minutes" validate:"omitnil,min=1,max=10080"`
	Priority         *string    `json:"priority" validate:"omitnil,oneof=low medium high"`
	Replan           bool       `json:"replan"`
}

type taskProposeRequest struct {
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1"`
	DueDate         time.Time `json:"due_date" validate:"required"`
	AllowSplit      *bool     `json:"allow_split"`
}

type taskPlanRequest struct {
	TaskIDs []string `json:"task_ids" validate:"omitempty,dive,required"`
}

func (a *API) handleTasksList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := planner.TaskFilter{Status: models.TaskStatus(q.Get("status"))}
	for key, dst := range map[string]*time.Time{"due_from": &filter.DueFrom, "due_to": &filter.DueTo} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_"+key)
			return
		}
		*dst = t
	}

	tasks, err := a.planner.ListTasks(r.Context(), userID(r), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) handleTasksCreate(w http.ResponseWriter, r *http.Request) {
	var req taskCreateRequest
	if !a.bindJSON(w, r, &req, false) {
		return
	}

	task := models.Task{
		UserID:           userID(r),
		Title:            req.Title,
		Description:      req.Description,
		CourseCode:       req.CourseCode,
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
		Priority:         models.TaskPriority(req.Priority),
	}
	outcome, err := a.planner.CreateTask(r.Context(), &task, req.Schedule)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (a *API) handleTasksGet(w http.ResponseWriter, r *http.Request) {
	task, sessions, err := a.planner.GetTask(r.Context(), userID(r), chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":     task,
		"sessions": sessions,
	})
}

func (a *API) handleTasksUpdate(w http.ResponseWriter, r *http.Request) {
	var req taskUpdateRequest
	if !a.bindJSON(w, r, &req, false) {
		return
	}

	upd := planner.TaskUpdate{
		Title:            req.Title,
		Description:      req.Description,
		CourseCode:       req.CourseCode,
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
	}
	if req.Priority != nil {
		p := models.TaskPriority(*req.Priority)
		upd.Priority = &p
	}
	outcome, err := a.planner.UpdateTask(r.Context(), userID(r), chi.URLParam(r, "taskID"), upd, req.Replan)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) handleTasksDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.planner.DeleteTask(r.Context(), userID(r), chi.URLParam(r, "taskID")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTasksSchedule(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.planner.ScheduleTask(r.Context(), userID(r), chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) handleTasksComplete(w http.ResponseWriter, r *http.Request) {
	task, err := a.planner.CompleteTask(r.Context(), userID(r), chi.URLParam(r, "taskID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleTasksPropose(w http.ResponseWriter, r *http.Request) {
	var req taskProposeRequest
	if !a.bindJSON(w, r, &req, false) {
		return
	}
	res, err := a.planner.Propose(r.Context(), userID(r), planner.ProposeRequest{
		DurationMinutes: req.DurationMinutes,
		DueDate:         req.DueDate,
		AllowSplit:      req.AllowSplit,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTasksPlan(w http.ResponseWriter, r *http.Request) {
	var req taskPlanRequest
	if !a.bindJSON(w, r, &req, true) {
		return
	}
	outcomes, err := a.planner.PlanBatch(r.Context(), userID(r), req.TaskIDs)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (a *API) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.planner.Summary(r.Context(), userID(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
