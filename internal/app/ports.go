package app

import (
	"context"

	"github.com/evanschultz/pitchside/internal/domain"
)

// LeadFilter narrows lead listings. Search matches name, phone, or email case-insensitively.
type LeadFilter struct {
	Search  string
	OwnerID string
	Limit   int
}

// LeadChange is one atomic write against a lead and its timeline.
type LeadChange struct {
	Lead        *domain.Lead
	NewTasks    []domain.Task
	TaskUpdates []domain.Task
	Activities  []domain.Activity
}

// Repository represents the lead store used by the service.
type Repository interface {
	CreateLead(context.Context, domain.Lead) error
	GetLead(context.Context, string) (domain.Lead, error)
	ListLeads(context.Context, LeadFilter) ([]domain.Lead, error)
	ApplyLeadChange(context.Context, LeadChange) error

	GetTask(context.Context, string) (domain.Task, error)
	// ListTasks returns every task when the lead id is empty.
	ListTasks(context.Context, string) ([]domain.Task, error)

	// ListActivities returns every activity when the lead id is empty.
	ListActivities(context.Context, string) ([]domain.Activity, error)

	UpsertAgent(context.Context, domain.Agent) error
	ListAgents(context.Context) ([]domain.Agent, error)

	// GetSettings returns ErrNotFound until settings are saved.
	GetSettings(context.Context) (domain.Settings, error)
	SaveSettings(context.Context, domain.Settings) error
}
