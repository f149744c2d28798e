package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Schedule is a persisted schedule definition.
type Schedule struct {
	ID              int64
	Description     string
	IntervalMinutes int
	IsActive        bool
	ExcelPath       string
	GoogleFormURL   string
	LastRunAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the repeat interval as a duration.
func (s Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Description     *string
	IntervalMinutes *int
	IsActive        *bool
	ExcelPath       *string
	GoogleFormURL   *string
}

// Apply returns a copy of s with the non-nil fields of p applied.
func (p Patch) Apply(s Schedule) Schedule {
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.IntervalMinutes != nil {
		s.IntervalMinutes = *p.IntervalMinutes
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.ExcelPath != nil {
		s.ExcelPath = *p.ExcelPath
	}
	if p.GoogleFormURL != nil {
		s.GoogleFormURL = *p.GoogleFormURL
	}
	return s
}

func (p Patch) Empty() bool {
	return p.Description == nil && p.IntervalMinutes == nil && p.IsActive == nil &&
		p.ExcelPath == nil && p.GoogleFormURL == nil
}

// History sources.
const (
	SourceTimer  = "timer"
	SourceRunNow = "run_now"
)

// HistoryEntry records one completed cycle. Description is joined from the
// schedule and is empty once the schedule is deleted. Appending for a
// schedule that no longer exists fails with ErrNotFound.
type HistoryEntry struct {
	ID          int64
	ScheduleID  int64
	Description string
	CompletedAt time.Time
	Source      string
}
