package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/domain"
)

// AppServiceAdapter exposes app.Service through the transport contracts.
type AppServiceAdapter struct {
	service *app.Service
}

var _ PipelineService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter wraps one app service for HTTP and MCP use.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListLeads lists leads with urgency flags computed at the service clock.
func (a *AppServiceAdapter) ListLeads(ctx context.Context, req ListLeadsRequest) ([]LeadView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	leads, err := a.service.ListLeads(ctx, app.LeadFilter{Search: req.Search, OwnerID: req.OwnerID, Limit: req.Limit})
	if err != nil {
		return nil, mapAppError("list leads", err)
	}
	settings, tasks, err := a.urgencyInputs(ctx, "")
	if err != nil {
		return nil, err
	}
	now := a.service.Now()
	out := make([]LeadView, 0, len(leads))
	for _, lead := range leads {
		out = append(out, leadView(lead, tasks, settings, now))
	}
	return out, nil
}

// GetLead returns one lead.
func (a *AppServiceAdapter) GetLead(ctx context.Context, leadID string) (LeadView, error) {
	if err := a.ready(); err != nil {
		return LeadView{}, err
	}
	lead, err := a.service.GetLead(ctx, strings.TrimSpace(leadID))
	if err != nil {
		return LeadView{}, mapAppError("get lead", err)
	}
	return a.view(ctx, lead)
}

// CreateLead runs lead intake.
func (a *AppServiceAdapter) CreateLead(ctx context.Context, req CreateLeadRequest) (LeadView, error) {
	if err := a.ready(); err != nil {
		return LeadView{}, err
	}
	lead, err := a.service.CreateLead(withActor(ctx, req.ActorID), app.CreateLeadInput{
		SourceType:  domain.SourceType(req.SourceType),
		PrimaryName: req.PrimaryName,
		Phone:       req.Phone,
		Email:       req.Email,
		Stage:       domain.StageID(req.Stage),
		Priority:    req.Priority,
		OwnerID:     req.OwnerID,
		Tags:        req.Tags,
	})
	if err != nil {
		return LeadView{}, mapAppError("create lead", err)
	}
	return a.view(ctx, lead)
}

// UpdateLead applies a partial lead update.
func (a *AppServiceAdapter) UpdateLead(ctx context.Context, req UpdateLeadRequest) (LeadView, error) {
	if err := a.ready(); err != nil {
		return LeadView{}, err
	}
	if strings.TrimSpace(req.LeadID) == "" {
		return LeadView{}, fmt.Errorf("lead_id is required: %w", ErrInvalidRequest)
	}
	in := app.UpdateLeadInput{
		LeadID:   req.LeadID,
		OwnerID:  req.OwnerID,
		Priority: req.Priority,
		Tags:     req.Tags,
	}
	if req.Stage != nil {
		stage := domain.StageID(*req.Stage)
		in.Stage = &stage
	}
	lead, err := a.service.UpdateLead(withActor(ctx, req.ActorID), in)
	if err != nil {
		return LeadView{}, mapAppError("update lead", err)
	}
	return a.view(ctx, lead)
}

// MoveLead moves a lead to a stage with an optional next action.
func (a *AppServiceAdapter) MoveLead(ctx context.Context, req MoveLeadRequest) (LeadView, error) {
	if err := a.ready(); err != nil {
		return LeadView{}, err
	}
	if strings.TrimSpace(req.LeadID) == "" {
		return LeadView{}, fmt.Errorf("lead_id is required: %w", ErrInvalidRequest)
	}
	var next *domain.NextAction
	if req.NextAction != nil {
		next = &domain.NextAction{
			Type:        domain.NextActionType(req.NextAction.Type),
			ScheduledAt: req.NextAction.ScheduledAt,
			Notes:       req.NextAction.Notes,
		}
	}
	lead, err := a.service.MoveLead(withActor(ctx, req.ActorID), req.LeadID, domain.StageID(req.Stage), next)
	if err != nil {
		return LeadView{}, mapAppError("move lead", err)
	}
	return a.view(ctx, lead)
}

// ListTasks lists tasks for one lead, or all tasks for an empty id.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, leadID string) ([]TaskView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ListTasks(ctx, app.TaskFilter{LeadID: leadID})
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	now := a.service.Now()
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, taskView(task, now))
	}
	return out, nil
}

// CreateTask adds a follow-up task.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, req CreateTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	task, err := a.service.CreateTask(withActor(ctx, req.ActorID), req.LeadID, app.CreateTaskInput{Title: req.Title, DueAt: req.DueAt})
	if err != nil {
		return TaskView{}, mapAppError("create task", err)
	}
	return taskView(task, a.service.Now()), nil
}

// UpdateTask changes a task status.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, req UpdateTaskRequest) (TaskView, error) {
	if err := a.ready(); err != nil {
		return TaskView{}, err
	}
	status, err := domain.ParseTaskStatus(req.Status)
	if err != nil {
		return TaskView{}, mapAppError("update task", err)
	}
	task, err := a.service.UpdateTask(withActor(ctx, req.ActorID), req.TaskID, status)
	if err != nil {
		return TaskView{}, mapAppError("update task", err)
	}
	return taskView(task, a.service.Now()), nil
}

// ListActivities returns the newest-first timeline for one lead.
func (a *AppServiceAdapter) ListActivities(ctx context.Context, leadID string) ([]ActivityView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	activities, err := a.service.ListActivities(ctx, leadID)
	if err != nil {
		return nil, mapAppError("list activities", err)
	}
	out := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		out = append(out, activityView(activity))
	}
	return out, nil
}

// CreateActivity records a note or call.
func (a *AppServiceAdapter) CreateActivity(ctx context.Context, req CreateActivityRequest) (ActivityView, error) {
	if err := a.ready(); err != nil {
		return ActivityView{}, err
	}
	activity, err := a.service.CreateActivity(withActor(ctx, req.ActorID), req.LeadID, app.CreateActivityInput{
		Type:  domain.ActivityType(req.Type),
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		return ActivityView{}, mapAppError("create activity", err)
	}
	return activityView(activity), nil
}

// GetSettings returns the active pipeline settings.
func (a *AppServiceAdapter) GetSettings(ctx context.Context) (SettingsView, error) {
	if err := a.ready(); err != nil {
		return SettingsView{}, err
	}
	settings, err := a.service.GetSettings(ctx)
	if err != nil {
		return SettingsView{}, mapAppError("get settings", err)
	}
	return settingsView(settings), nil
}

// SaveSettings validates and stores pipeline settings.
func (a *AppServiceAdapter) SaveSettings(ctx context.Context, in SettingsView) (SettingsView, error) {
	if err := a.ready(); err != nil {
		return SettingsView{}, err
	}
	settings, err := a.service.SaveSettings(ctx, settingsFromView(in))
	if err != nil {
		return SettingsView{}, mapAppError("save settings", err)
	}
	return settingsView(settings), nil
}

// ListUsers lists agents sorted by name.
func (a *AppServiceAdapter) ListUsers(ctx context.Context) ([]AgentView, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	agents, err := a.service.ListUsers(ctx)
	if err != nil {
		return nil, mapAppError("list users", err)
	}
	out := make([]AgentView, 0, len(agents))
	for _, agent := range agents {
		out = append(out, agentView(agent))
	}
	return out, nil
}

// Analytics returns pipeline analytics, scoped to agentID when it is non-empty.
func (a *AppServiceAdapter) Analytics(ctx context.Context, agentID string) (AnalyticsView, error) {
	if err := a.ready(); err != nil {
		return AnalyticsView{}, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		stats, err := a.service.Analytics(ctx)
		if err != nil {
			return AnalyticsView{}, mapAppError("analytics", err)
		}
		return AnalyticsView{PipelineAnalytics: stats}, nil
	}
	stats, err := a.service.AgentAnalytics(ctx, agentID)
	if err != nil {
		return AnalyticsView{}, mapAppError("agent analytics", err)
	}
	open := stats.OpenLeads
	return AnalyticsView{PipelineAnalytics: stats.PipelineAnalytics, AgentID: stats.AgentID, OpenLeads: &open}, nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

func (a *AppServiceAdapter) view(ctx context.Context, lead domain.Lead) (LeadView, error) {
	settings, tasks, err := a.urgencyInputs(ctx, lead.ID)
	if err != nil {
		return LeadView{}, err
	}
	return leadView(lead, tasks, settings, a.service.Now()), nil
}

func (a *AppServiceAdapter) urgencyInputs(ctx context.Context, leadID string) (domain.Settings, []domain.Task, error) {
	settings, err := a.service.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, nil, mapAppError("get settings", err)
	}
	tasks, err := a.service.ListTasks(ctx, app.TaskFilter{LeadID: leadID})
	if err != nil {
		return domain.Settings{}, nil, mapAppError("list tasks", err)
	}
	return settings, tasks, nil
}

// withActor attributes mutations to the caller-supplied actor when one is given.
func withActor(ctx context.Context, actorID string) context.Context {
	if strings.TrimSpace(actorID) == "" {
		return ctx
	}
	return app.WithActor(ctx, actorID)
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrStageNotConfigured):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrActivityNotAuthored),
		errors.Is(err, app.ErrInvalidSnapshot),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrInvalidSourceType),
		errors.Is(err, domain.ErrInvalidLeadStatus),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidActivityType),
		errors.Is(err, domain.ErrInvalidNextActionType),
		errors.Is(err, domain.ErrNextActionTypeRequired),
		errors.Is(err, domain.ErrInvalidSLAHours):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
