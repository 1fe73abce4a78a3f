package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openbrief/marketbrief/internal/scheduler"
)

// RegisterScheduleTools lets the agent manage the tenant's scheduled
// tasks. Every task created here is owned by the tenant; the agent
// cannot see or touch other tenants' schedules.
func RegisterScheduleTools(r *Registry, sched *scheduler.Scheduler, tenantID string) {
	if sched == nil {
		return
	}

	r.Register(&Tool{
		Name:        "schedule_task",
		Description: "Schedule a future wake-up for yourself. Use for reminders or recurring research tasks.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Human-readable name for the task",
				},
				"when": map[string]any{
					"type":        "string",
					"description": "When to run: RFC3339 timestamp, a duration like '30m' or '2h', or 'HH:MM' for daily",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "The instruction to process when the task fires",
				},
				"daily": map[string]any{
					"type":        "boolean",
					"description": "Repeat every day at the given HH:MM time",
				},
			},
			"required": []string{"name", "when", "message"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name := stringArg(args, "name")
			when := stringArg(args, "when")
			message := stringArg(args, "message")
			if name == "" || when == "" || message == "" {
				return "", fmt.Errorf("name, when, and message are required")
			}

			schedule, err := parseWhen(when, boolArg(args, "daily", false))
			if err != nil {
				return "", fmt.Errorf("invalid schedule: %w", err)
			}

			task := &scheduler.Task{
				TenantID: tenantID,
				Name:     name,
				Schedule: schedule,
				Payload: scheduler.Payload{
					Kind: scheduler.PayloadWake,
					Data: map[string]any{"message": message},
				},
				Enabled:   true,
				CreatedBy: "agent",
			}
			if err := sched.CreateTask(task); err != nil {
				return "", err
			}

			next, _ := task.NextRun(time.Now())
			return fmt.Sprintf("Task %q scheduled (ID: %s). Next run: %s", name, task.ID, next.Format(time.RFC3339)), nil
		},
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "List this tenant's scheduled tasks.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			tasks, err := sched.ListTenantTasks(tenantID)
			if err != nil {
				return "", err
			}
			if len(tasks) == 0 {
				return "No scheduled tasks.", nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d task(s):\n", len(tasks))
			for _, t := range tasks {
				status := "enabled"
				if !t.Enabled {
					status = "disabled"
				}
				fmt.Fprintf(&b, "- %s (%s): %s", t.Name, t.ID[:8], status)
				if next, ok := t.NextRun(time.Now()); ok {
					fmt.Fprintf(&b, ", next: %s", next.Format("2006-01-02 15:04"))
				}
				b.WriteString("\n")
			}
			return b.String(), nil
		},
	})

	r.Register(&Tool{
		Name:        "cancel_task",
		Description: "Cancel one of this tenant's scheduled tasks by ID or ID prefix.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The task ID (or unique prefix) to cancel",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			taskID := stringArg(args, "task_id")
			if taskID == "" {
				return "", fmt.Errorf("task_id is required")
			}

			// Only this tenant's tasks are candidates
			tasks, err := sched.ListTenantTasks(tenantID)
			if err != nil {
				return "", err
			}
			var found *scheduler.Task
			for _, t := range tasks {
				if t.ID == taskID || strings.HasPrefix(t.ID, taskID) {
					found = t
					break
				}
			}
			if found == nil {
				return "", fmt.Errorf("task not found: %s", taskID)
			}

			if err := sched.DeleteTask(found.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task %q cancelled.", found.Name), nil
		},
	})
}

// parseWhen converts a time specification into a Schedule.
func parseWhen(when string, daily bool) (scheduler.Schedule, error) {
	if daily {
		// Expect HH:MM
		var hour, min int
		if _, err := fmt.Sscanf(when, "%d:%d", &hour, &min); err != nil {
			return scheduler.Schedule{}, fmt.Errorf("daily tasks need an HH:MM time, got %q", when)
		}
		return scheduler.Schedule{Kind: scheduler.ScheduleDaily, TimeOfDay: when}, nil
	}

	if dur, err := time.ParseDuration(when); err == nil {
		at := time.Now().Add(dur)
		return scheduler.Schedule{Kind: scheduler.ScheduleAt, At: &at}, nil
	}

	if t, err := time.Parse(time.RFC3339, when); err == nil {
		return scheduler.Schedule{Kind: scheduler.ScheduleAt, At: &t}, nil
	}

	return scheduler.Schedule{}, fmt.Errorf("could not parse time: %s", when)
}
