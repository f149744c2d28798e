package api

import (
	"context"
	"time"

	"cadence/internal/schedule"
	"cadence/internal/storage"
)

// Schedules is the manager surface the handlers call.
type Schedules interface {
	List(ctx context.Context) ([]schedule.View, error)
	Get(ctx context.Context, id int64) (schedule.View, error)
	Create(ctx context.Context, in schedule.Input) (schedule.View, error)
	Update(ctx context.Context, id int64, p storage.Patch) (schedule.View, error)
	Delete(ctx context.Context, id int64) error
	RunNow(ctx context.Context, id int64) (schedule.RunReport, error)
	History(ctx context.Context, limit int) ([]storage.HistoryEntry, error)
}

// StatusFunc reports runtime state for GET /status.
type StatusFunc func() any

type Config struct {
	Addr         string
	BasePath     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RatePerSec limits mutating requests. 0 disables limiting.
	RatePerSec int
	Burst      int
}

// scheduleRequest is the body of POST and PUT. Pointers tell an omitted
// field from a zero value.
type scheduleRequest struct {
	Description     *string `json:"description"`
	IntervalMinutes *int    `json:"interval_minutes"`
	IsActive        *bool   `json:"is_active"`
	ExcelPath       *string `json:"excel_path"`
	GoogleFormURL   *string `json:"google_form_url"`
}

func (r scheduleRequest) input() schedule.Input {
	in := schedule.Input{IsActive: r.IsActive}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.IntervalMinutes != nil {
		in.IntervalMinutes = *r.IntervalMinutes
	}
	if r.ExcelPath != nil {
		in.ExcelPath = *r.ExcelPath
	}
	if r.GoogleFormURL != nil {
		in.GoogleFormURL = *r.GoogleFormURL
	}
	return in
}

func (r scheduleRequest) patch() storage.Patch {
	return storage.Patch{
		Description:     r.Description,
		IntervalMinutes: r.IntervalMinutes,
		IsActive:        r.IsActive,
		ExcelPath:       r.ExcelPath,
		GoogleFormURL:   r.GoogleFormURL,
	}
}

type scheduleResponse struct {
	ID              int64      `json:"id"`
	Description     string     `json:"description"`
	IntervalMinutes int        `json:"interval_minutes"`
	IsActive        bool       `json:"is_active"`
	ExcelPath       string     `json:"excel_path"`
	GoogleFormURL   string     `json:"google_form_url"`
	NextRunTime     *time.Time `json:"next_run_time"`
	LastRunTime     *time.Time `json:"last_run_time"`
}

func toScheduleResponse(v schedule.View) scheduleResponse {
	return scheduleResponse{
		ID:              v.ID,
		Description:     v.Description,
		IntervalMinutes: v.IntervalMinutes,
		IsActive:        v.IsActive,
		ExcelPath:       v.ExcelPath,
		GoogleFormURL:   v.GoogleFormURL,
		NextRunTime:     v.NextRunAt,
		LastRunTime:     v.LastRunAt,
	}
}

type historyResponse struct {
	ID          int64     `json:"id"`
	ScheduleID  int64     `json:"schedule_id"`
	Description string    `json:"description"`
	CompletedAt time.Time `json:"completed_at"`
	Source      string    `json:"source"`
}

type runNowResponse struct {
	Message    string                  `json:"message"`
	ScheduleID int64                   `json:"schedule_id"`
	Actions    []schedule.ActionResult `json:"actions"`
	HistoryID  *int64                  `json:"history_id"`
}

type errorResponse struct {
	Error     string          `json:"error"`
	RequestID string          `json:"request_id,omitempty"`
	Report    *runNowResponse `json:"report,omitempty"`
}
