// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/domain"
)

// ErrInvalidRequest reports malformed or invalid transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that are valid but clash with the pipeline configuration.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a transport wired without a backing service.
var ErrUnavailable = errors.New("service unavailable")

// PipelineService is the surface shared by the REST and MCP adapters.
type PipelineService interface {
	ListLeads(context.Context, ListLeadsRequest) ([]LeadView, error)
	GetLead(context.Context, string) (LeadView, error)
	CreateLead(context.Context, CreateLeadRequest) (LeadView, error)
	UpdateLead(context.Context, UpdateLeadRequest) (LeadView, error)
	MoveLead(context.Context, MoveLeadRequest) (LeadView, error)
	ListTasks(context.Context, string) ([]TaskView, error)
	CreateTask(context.Context, CreateTaskRequest) (TaskView, error)
	UpdateTask(context.Context, UpdateTaskRequest) (TaskView, error)
	ListActivities(context.Context, string) ([]ActivityView, error)
	CreateActivity(context.Context, CreateActivityRequest) (ActivityView, error)
	GetSettings(context.Context) (SettingsView, error)
	SaveSettings(context.Context, SettingsView) (SettingsView, error)
	ListUsers(context.Context) ([]AgentView, error)
	Analytics(context.Context, string) (AnalyticsView, error)
}

// ListLeadsRequest narrows a lead listing.
type ListLeadsRequest struct {
	Search  string `json:"search,omitempty"`
	OwnerID string `json:"owner_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// CreateLeadRequest is the intake payload for a new lead.
type CreateLeadRequest struct {
	ActorID     string   `json:"actor_id,omitempty"`
	SourceType  string   `json:"source_type,omitempty"`
	PrimaryName string   `json:"primary_name"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	OwnerID     string   `json:"owner_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateLeadRequest is a partial update. Nil fields are left unchanged.
type UpdateLeadRequest struct {
	ActorID  string    `json:"actor_id,omitempty"`
	LeadID   string    `json:"lead_id,omitempty"`
	Stage    *string   `json:"stage,omitempty"`
	OwnerID  *string   `json:"owner_id,omitempty"`
	Priority *int      `json:"priority,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// NextActionRequest carries the planned follow-up for a stage move.
type NextActionRequest struct {
	Type        string     `json:"type"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// MoveLeadRequest moves a lead between stages with an optional next action.
type MoveLeadRequest struct {
	ActorID    string             `json:"actor_id,omitempty"`
	LeadID     string             `json:"lead_id,omitempty"`
	Stage      string             `json:"stage"`
	NextAction *NextActionRequest `json:"next_action,omitempty"`
}

// CreateTaskRequest adds a follow-up task.
type CreateTaskRequest struct {
	ActorID string     `json:"actor_id,omitempty"`
	LeadID  string     `json:"lead_id,omitempty"`
	Title   string     `json:"title"`
	DueAt   *time.Time `json:"due_at,omitempty"`
}

// UpdateTaskRequest changes a task status.
type UpdateTaskRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Status  string `json:"status"`
}

// CreateActivityRequest records a note or call.
type CreateActivityRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	LeadID  string `json:"lead_id,omitempty"`
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
}

// LeadView is the wire shape of a lead.
type LeadView struct {
	ID               string     `json:"id"`
	SourceType       string     `json:"source_type"`
	PrimaryName      string     `json:"primary_name"`
	Phone            string     `json:"phone"`
	Email            string     `json:"email,omitempty"`
	Stage            string     `json:"stage"`
	Status           string     `json:"status"`
	Priority         int        `json:"priority"`
	OwnerID          string     `json:"owner_id,omitempty"`
	Tags             []string   `json:"tags"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StageChangedAt   *time.Time `json:"stage_changed_at,omitempty"`
	Hot              bool       `json:"hot"`
	OverdueFollowUp  bool       `json:"overdue_follow_up"`
	StageSLAExceeded bool       `json:"stage_sla_exceeded"`
}

// TaskView is the wire shape of a task.
type TaskView struct {
	ID        string     `json:"id"`
	LeadID    string     `json:"lead_id"`
	Title     string     `json:"title"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Status    string     `json:"status"`
	Overdue   bool       `json:"overdue"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ActivityView is the wire shape of a timeline entry.
type ActivityView struct {
	ID         string            `json:"id"`
	LeadID     string            `json:"lead_id"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AgentView is the wire shape of an agent.
type AgentView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// AssignmentRuleView maps an intake source to an owner.
type AssignmentRuleView struct {
	Source  string `json:"source"`
	OwnerID string `json:"owner_id"`
}

// SettingsView is the wire shape of pipeline settings.
type SettingsView struct {
	Stages          []string             `json:"stages"`
	SLAHoursByStage map[string]int       `json:"sla_hours_by_stage,omitempty"`
	AssignmentRules []AssignmentRuleView `json:"assignment_rules,omitempty"`
}

// AnalyticsView carries pipeline analytics, optionally scoped to one agent.
type AnalyticsView struct {
	app.PipelineAnalytics
	AgentID   string `json:"agent_id,omitempty"`
	OpenLeads *int   `json:"open_leads,omitempty"`
}

func leadView(lead domain.Lead, tasks []domain.Task, settings domain.Settings, now time.Time) LeadView {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}
	return LeadView{
		ID:               lead.ID,
		SourceType:       string(lead.SourceType),
		PrimaryName:      lead.PrimaryName,
		Phone:            lead.Phone,
		Email:            lead.Email,
		Stage:            string(lead.Stage),
		Status:           string(lead.Status),
		Priority:         lead.Priority,
		OwnerID:          lead.OwnerID,
		Tags:             tags,
		CreatedAt:        lead.CreatedAt,
		UpdatedAt:        lead.UpdatedAt,
		StageChangedAt:   lead.StageChangedAt,
		Hot:              domain.IsHot(lead),
		OverdueFollowUp:  domain.HasOverdueFollowUp(lead.ID, tasks, now),
		StageSLAExceeded: domain.StageSLAExceeded(lead, settings.SLAHoursByStage, now),
	}
}

func taskView(task domain.Task, now time.Time) TaskView {
	return TaskView{
		ID:        task.ID,
		LeadID:    task.LeadID,
		Title:     task.Title,
		DueAt:     task.DueAt,
		Status:    string(task.Status),
		Overdue:   task.IsOverdue(now),
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
}

func activityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:         a.ID,
		LeadID:     a.LeadID,
		Type:       string(a.Type),
		Title:      a.Title,
		Body:       a.Body,
		ActorID:    a.ActorID,
		OccurredAt: a.OccurredAt,
		Metadata:   a.Metadata,
	}
}

func agentView(a domain.Agent) AgentView {
	return AgentView{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role}
}

func settingsView(s domain.Settings) SettingsView {
	out := SettingsView{
		Stages:          make([]string, 0, len(s.Stages)),
		SLAHoursByStage: make(map[string]int, len(s.SLAHoursByStage)),
	}
	for _, stage := range s.Stages {
		out.Stages = append(out.Stages, string(stage))
	}
	for stage, hours := range s.SLAHoursByStage {
		out.SLAHoursByStage[string(stage)] = hours
	}
	for _, rule := range s.AssignmentRules {
		out.AssignmentRules = append(out.AssignmentRules, AssignmentRuleView{Source: string(rule.Source), OwnerID: rule.OwnerID})
	}
	return out
}

func settingsFromView(v SettingsView) domain.Settings {
	out := domain.Settings{SLAHoursByStage: make(map[domain.StageID]int, len(v.SLAHoursByStage))}
	for _, stage := range v.Stages {
		out.Stages = append(out.Stages, domain.StageID(stage))
	}
	for stage, hours := range v.SLAHoursByStage {
		out.SLAHoursByStage[domain.StageID(stage)] = hours
	}
	for _, rule := range v.AssignmentRules {
		out.AssignmentRules = append(out.AssignmentRules, domain.AssignmentRule{Source: domain.SourceType(rule.Source), OwnerID: rule.OwnerID})
	}
	return out
}
