package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cadence/internal/actions"
	"cadence/internal/storage"
)

// Kind is an action a schedule can trigger. Each kind of each schedule owns
// at most one timer.
type Kind string

const (
	KindSound Kind = "sound"
	KindForm  Kind = "form"
	KindFile  Kind = "file"
)

// Kinds lists every action kind in firing order.
var Kinds = []Kind{KindSound, KindForm, KindFile}

// TimerKey is the timer engine key for one action of one schedule.
func TimerKey(id int64, k Kind) string {
	return fmt.Sprintf("%d:%s", id, k)
}

// parseTimerKey is the inverse of TimerKey.
func parseTimerKey(key string) (int64, Kind, bool) {
	idPart, kind, ok := strings.Cut(key, ":")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	switch Kind(kind) {
	case KindSound, KindForm, KindFile:
		return id, Kind(kind), true
	}
	return 0, "", false
}

// Timers is the subset of the timer engine the manager drives.
type Timers interface {
	Register(key string, every time.Duration, job func(ctx context.Context) error) error
	Unregister(key string) (bool, error)
	Next(key string) (time.Time, bool)
	Keys() []string
}

// Actions runs the side effects of a schedule.
type Actions interface {
	PlayAlert(ctx context.Context, scheduleID int64) error
	OpenForm(ctx context.Context, scheduleID int64, url string) error
	OpenFile(ctx context.Context, scheduleID int64, path string) error
}

// Input is a new schedule. A nil IsActive means active.
type Input struct {
	Description     string
	IntervalMinutes int
	IsActive        *bool
	ExcelPath       string
	GoogleFormURL   string
}

func (in Input) validate() (storage.Schedule, error) {
	s := storage.Schedule{
		Description:     strings.TrimSpace(in.Description),
		IntervalMinutes: in.IntervalMinutes,
		IsActive:        true,
		ExcelPath:       strings.TrimSpace(in.ExcelPath),
		GoogleFormURL:   strings.TrimSpace(in.GoogleFormURL),
	}
	if in.IsActive != nil {
		s.IsActive = *in.IsActive
	}
	if s.Description == "" {
		return storage.Schedule{}, validationErr("description is required")
	}
	if s.IntervalMinutes <= 0 {
		return storage.Schedule{}, validationErr("interval_minutes must be a positive integer")
	}
	if s.GoogleFormURL != "" {
		if err := actions.ValidateFormURL(s.GoogleFormURL); err != nil {
			return storage.Schedule{}, validationErr("google_form_url: %v", err)
		}
	}
	return s, nil
}

// Validate reports whether Create would accept in.
func (in Input) Validate() error {
	_, err := in.validate()
	return err
}

// ValidatePatch reports whether Update would accept p.
func ValidatePatch(p storage.Patch) error {
	_, err := validatePatch(p)
	return err
}

// validatePatch checks and normalizes the set fields of p. Clearing
// excel_path or google_form_url with an empty string is allowed.
func validatePatch(p storage.Patch) (storage.Patch, error) {
	if p.Empty() {
		return p, validationErr("no fields to update")
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" {
			return p, validationErr("description must not be empty")
		}
		p.Description = &d
	}
	if p.IntervalMinutes != nil && *p.IntervalMinutes <= 0 {
		return p, validationErr("interval_minutes must be a positive integer")
	}
	if p.ExcelPath != nil {
		v := strings.TrimSpace(*p.ExcelPath)
		p.ExcelPath = &v
	}
	if p.GoogleFormURL != nil {
		v := strings.TrimSpace(*p.GoogleFormURL)
		if v != "" {
			if err := actions.ValidateFormURL(v); err != nil {
				return p, validationErr("google_form_url: %v", err)
			}
		}
		p.GoogleFormURL = &v
	}
	return p, nil
}

// View is a schedule with its live next fire time.
type View struct {
	storage.Schedule
	NextRunAt *time.Time
}

// ActionResult is the outcome of one action of a manual run.
type ActionResult struct {
	Kind  Kind   `json:"kind"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// RunReport describes a manual run. History is nil when no entry was written.
type RunReport struct {
	ScheduleID int64                 `json:"schedule_id"`
	Actions    []ActionResult        `json:"actions"`
	History    *storage.HistoryEntry `json:"-"`
}

// Event payloads published on the bus.
type (
	ReconciledEvent struct {
		ScheduleID int64
		Kinds      []Kind
	}
	RemovedEvent struct {
		ScheduleID int64
	}
	RanEvent struct {
		ScheduleID int64
		Source     string
		Failed     int
	}
)
