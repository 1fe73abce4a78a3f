// Package scheduler handles future task scheduling and execution,
// most importantly the per-tenant daily report runs.
package scheduler

import (
	"fmt"
	"time"
)

// Task is the definition of a scheduled action.
type Task struct {
	ID        string    `json:"id"`        // UUIDv7
	TenantID  string    `json:"tenant_id"` // Owning tenant
	Name      string    `json:"name"`      // Human-readable label
	Schedule  Schedule  `json:"schedule"`  // When to run
	Payload   Payload   `json:"payload"`   // What to do
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"` // "api", "agent", or a session key
	UpdatedAt time.Time `json:"updated_at"`
}

// Schedule defines when a task should run.
type Schedule struct {
	Kind ScheduleKind `json:"kind"`

	// At is the run time for one-shot "at" schedules.
	At *time.Time `json:"at,omitempty"`

	// Every is the interval for recurring "every" schedules.
	Every *Duration `json:"every,omitempty"`

	// TimeOfDay is the "HH:MM" run time for "daily" schedules.
	TimeOfDay string `json:"time_of_day,omitempty"`

	// Timezone is the IANA zone for "daily" schedules. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
}

// ScheduleKind identifies the schedule type.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"    // One-shot at specific time
	ScheduleEvery ScheduleKind = "every" // Recurring interval
	ScheduleDaily ScheduleKind = "daily" // Every day at a fixed local time
)

// Duration wraps time.Duration for JSON serialization.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Payload defines what action to take when a task fires.
type Payload struct {
	Kind PayloadKind    `json:"kind"`
	Data map[string]any `json:"data,omitempty"` // Kind-specific data
}

// PayloadKind identifies the payload type.
type PayloadKind string

const (
	// PayloadReport generates a report for the owning tenant.
	// Data: "report_type" (daily, weekly, alert).
	PayloadReport PayloadKind = "report"

	// PayloadWake runs the agent with a message in the tenant's context.
	// Data: "message".
	PayloadWake PayloadKind = "wake"
)

// Execution represents a single run of a task.
type Execution struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Result      string          `json:"result,omitempty"` // Output or error
}

// ExecutionStatus indicates the state of an execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped" // Missed window, chose not to catch up
)

// NextRun calculates the next execution time for a task.
func (t *Task) NextRun(after time.Time) (time.Time, bool) {
	switch t.Schedule.Kind {
	case ScheduleAt:
		if t.Schedule.At != nil && t.Schedule.At.After(after) {
			return *t.Schedule.At, true
		}
		return time.Time{}, false // One-shot already passed

	case ScheduleEvery:
		if t.Schedule.Every == nil || t.Schedule.Every.Duration <= 0 {
			return time.Time{}, false
		}
		interval := t.Schedule.Every.Duration
		base := t.CreatedAt
		if base.IsZero() {
			base = after
		}
		elapsed := after.Sub(base)
		if elapsed < 0 {
			return base, true
		}
		intervals := int64(elapsed/interval) + 1
		return base.Add(time.Duration(intervals) * interval), true

	case ScheduleDaily:
		hour, min, err := parseTimeOfDay(t.Schedule.TimeOfDay)
		if err != nil {
			return time.Time{}, false
		}
		loc := time.UTC
		if t.Schedule.Timezone != "" {
			if l, err := time.LoadLocation(t.Schedule.Timezone); err == nil {
				loc = l
			}
		}
		local := after.In(loc)
		next := time.Date(local.Year(), local.Month(), local.Day(), hour, min, 0, 0, loc)
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true

	default:
		return time.Time{}, false
	}
}

// parseTimeOfDay parses "HH:MM" into hour and minute.
func parseTimeOfDay(s string) (int, int, error) {
	var hour, min int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &min); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	return hour, min, nil
}
