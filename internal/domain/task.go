package domain

import (
	"strings"
	"time"
)

// TaskStatus describes a follow-up task's lifecycle state.
type TaskStatus string

// TaskStatusOpen and related constants define task states.
const (
	TaskStatusOpen      TaskStatus = "OPEN"
	TaskStatusDone      TaskStatus = "DONE"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// Task is a follow-up attached to a lead. Overdue is always derived, never stored.
type Task struct {
	ID        string
	LeadID    string
	Title     string
	DueAt     *time.Time
	Status    TaskStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TaskInput struct {
	ID     string
	LeadID string
	Title  string
	DueAt  *time.Time
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.LeadID = strings.TrimSpace(in.LeadID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" || in.LeadID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	ts := now.UTC()
	return Task{
		ID:        in.ID,
		LeadID:    in.LeadID,
		Title:     in.Title,
		DueAt:     normalizeDueAt(in.DueAt),
		Status:    TaskStatusOpen,
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch status := TaskStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case TaskStatusOpen, TaskStatusDone, TaskStatusCancelled:
		return status, nil
	default:
		return "", ErrInvalidTaskStatus
	}
}

func (t *Task) SetStatus(status TaskStatus, now time.Time) error {
	if _, err := ParseTaskStatus(string(status)); err != nil {
		return err
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return nil
}

// IsOverdue reports whether the task is open and past due at now.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusOpen && t.DueAt != nil && t.DueAt.Before(now)
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}
