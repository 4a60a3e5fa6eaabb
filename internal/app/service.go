package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// Settings are used until the store holds its own copy.
	Settings     domain.Settings
	DefaultActor string
	Location     *time.Location
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	defaults     domain.Settings
	defaultActor string
	location     *time.Location
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		defaults:     cfg.Settings.Normalize(),
		defaultActor: strings.TrimSpace(cfg.DefaultActor),
		location:     cfg.Location,
	}
}

// Now returns the service clock reading used for urgency predicates.
func (s *Service) Now() time.Time {
	return s.clock()
}

// GetSettings returns stored settings, or the configured defaults when none are stored.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return s.defaults.Clone(), nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return settings.Normalize(), nil
}

// EnsureSettings seeds the store with the configured defaults when it holds none.
func (s *Service) EnsureSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err == nil {
		return settings.Normalize(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Settings{}, err
	}
	seed := s.defaults.Clone()
	if err := s.repo.SaveSettings(ctx, seed); err != nil {
		return domain.Settings{}, err
	}
	return seed, nil
}

// SaveSettings validates and stores pipeline settings.
func (s *Service) SaveSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	settings = settings.Normalize()
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// EnsureAgents upserts the given agents.
func (s *Service) EnsureAgents(ctx context.Context, agents []domain.Agent) error {
	for _, raw := range agents {
		agent, err := domain.NewAgent(raw.ID, raw.Name, raw.Email, raw.Role)
		if err != nil {
			return fmt.Errorf("agent %q: %w", raw.ID, err)
		}
		if err := s.repo.UpsertAgent(ctx, agent); err != nil {
			return err
		}
	}
	return nil
}

// ListUsers returns every agent sorted by name.
func (s *Service) ListUsers(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(agents, func(a, b domain.Agent) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return agents, nil
}

// ListLeads lists leads matching filter.
func (s *Service) ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.OwnerID = strings.TrimSpace(filter.OwnerID)
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	return s.repo.ListLeads(ctx, filter)
}

// GetLead returns one lead.
func (s *Service) GetLead(ctx context.Context, leadID string) (domain.Lead, error) {
	return s.repo.GetLead(ctx, strings.TrimSpace(leadID))
}

// CreateLeadInput holds input values for create lead operations.
type CreateLeadInput struct {
	SourceType  domain.SourceType
	PrimaryName string
	Phone       string
	Email       string
	Stage       domain.StageID
	Priority    *int
	OwnerID     string
	Tags        []string
}

// CreateLead validates and stores a lead. Without an explicit owner the first matching assignment rule applies.
func (s *Service) CreateLead(ctx context.Context, in CreateLeadInput) (domain.Lead, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	stage := domain.NormalizeStageID(string(in.Stage))
	if stage == "" {
		stage = settings.Stages[0]
	}
	if !settings.HasStage(stage) {
		return domain.Lead{}, fmt.Errorf("%w: %s", ErrStageNotConfigured, stage)
	}

	now := s.clock()
	lead, err := domain.NewLead(domain.LeadInput{
		ID:          s.idGen(),
		SourceType:  in.SourceType,
		PrimaryName: in.PrimaryName,
		Phone:       in.Phone,
		Email:       in.Email,
		Stage:       stage,
		Priority:    in.Priority,
		OwnerID:     in.OwnerID,
		Tags:        in.Tags,
	}, now)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.OwnerID == "" {
		if owner, ok := settings.OwnerForSource(lead.SourceType); ok {
			lead.OwnerID = owner
		}
	}
	created, err := s.newActivity(ctx, lead.ID, domain.ActivityNote, "Lead created", "", nil, now)
	if err != nil {
		return domain.Lead{}, err
	}
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return domain.Lead{}, err
	}
	if err := s.repo.ApplyLeadChange(ctx, LeadChange{Activities: []domain.Activity{created}}); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// UpdateLeadInput holds a partial lead update. Nil fields are left unchanged.
type UpdateLeadInput struct {
	LeadID   string
	Stage    *domain.StageID
	OwnerID  *string
	Priority *int
	Tags     *[]string
}

// UpdateLead applies a partial update and records one activity per changed field.
func (s *Service) UpdateLead(ctx context.Context, in UpdateLeadInput) (domain.Lead, error) {
	lead, err := s.repo.GetLead(ctx, strings.TrimSpace(in.LeadID))
	if err != nil {
		return domain.Lead{}, err
	}
	now := s.clock()
	activities := make([]domain.Activity, 0, 4)

	if in.Stage != nil {
		settings, err := s.GetSettings(ctx)
		if err != nil {
			return domain.Lead{}, err
		}
		act, err := s.applyStageChange(ctx, &lead, *in.Stage, settings, now)
		if err != nil {
			return domain.Lead{}, err
		}
		if act != nil {
			activities = append(activities, *act)
		}
	}
	if in.OwnerID != nil {
		owner := strings.TrimSpace(*in.OwnerID)
		if owner != lead.OwnerID {
			if err := s.ensureAgentExists(ctx, owner); err != nil {
				return domain.Lead{}, err
			}
			from := lead.OwnerID
			lead.AssignOwner(owner, now)
			act, err := s.newActivity(ctx, lead.ID, domain.ActivityOwnerChanged, "Owner changed", "", map[string]string{
				domain.MetaFromOwner: from,
				domain.MetaToOwner:   owner,
			}, now)
			if err != nil {
				return domain.Lead{}, err
			}
			activities = append(activities, act)
		}
	}
	if in.Priority != nil && *in.Priority != lead.Priority {
		from := lead.Priority
		if err := lead.SetPriority(*in.Priority, now); err != nil {
			return domain.Lead{}, err
		}
		act, err := s.newActivity(ctx, lead.ID, domain.ActivityPriorityChanged, "Priority changed", "", map[string]string{
			domain.MetaFromPriority: strconv.Itoa(from),
			domain.MetaToPriority:   strconv.Itoa(lead.Priority),
		}, now)
		if err != nil {
			return domain.Lead{}, err
		}
		activities = append(activities, act)
	}
	if in.Tags != nil {
		tags := domain.NormalizeTags(*in.Tags)
		if !slices.Equal(tags, lead.Tags) {
			lead.SetTags(tags, now)
			act, err := s.newActivity(ctx, lead.ID, domain.ActivityTagsChanged, "Tags changed", strings.Join(tags, ", "), nil, now)
			if err != nil {
				return domain.Lead{}, err
			}
			activities = append(activities, act)
		}
	}

	if len(activities) == 0 {
		return lead, nil
	}
	if err := s.repo.ApplyLeadChange(ctx, LeadChange{Lead: &lead, Activities: activities}); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// MoveLead moves a lead to stage. A same-stage move is a no-op.
// A non-nil next action is validated and recorded as a timeline entry, plus an open follow-up
// task when it carries a schedule.
func (s *Service) MoveLead(ctx context.Context, leadID string, stage domain.StageID, next *domain.NextAction) (domain.Lead, error) {
	var action domain.NextAction
	if next != nil {
		action = next.Normalize()
		if err := action.Validate(); err != nil {
			return domain.Lead{}, err
		}
	}
	lead, err := s.repo.GetLead(ctx, strings.TrimSpace(leadID))
	if err != nil {
		return domain.Lead{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Lead{}, err
	}

	now := s.clock()
	moved, err := s.applyStageChange(ctx, &lead, stage, settings, now)
	if err != nil {
		return domain.Lead{}, err
	}
	if moved == nil {
		return lead, nil
	}

	change := LeadChange{Lead: &lead, Activities: []domain.Activity{*moved}}
	if next != nil {
		meta := map[string]string{domain.MetaNextActionType: string(action.Type)}
		if action.ScheduledAt != nil {
			task, err := domain.NewTask(domain.TaskInput{
				ID:     s.idGen(),
				LeadID: lead.ID,
				Title:  nextActionTaskTitle(action),
				DueAt:  action.ScheduledAt,
			}, now)
			if err != nil {
				return domain.Lead{}, err
			}
			change.NewTasks = append(change.NewTasks, task)
			meta[domain.MetaScheduledAt] = action.ScheduledAt.Format(time.RFC3339)
			meta[domain.MetaTaskID] = task.ID
		}
		act, err := s.newActivity(ctx, lead.ID, domain.ActivityNextAction, "Next action: "+action.Type.Label(), action.Notes, meta, now)
		if err != nil {
			return domain.Lead{}, err
		}
		change.Activities = append(change.Activities, act)
	}
	if err := s.repo.ApplyLeadChange(ctx, change); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// TaskFilter narrows task listings. An empty lead id lists every task.
type TaskFilter struct {
	LeadID string
}

// ListTasks lists tasks ordered by due time, undated last.
func (s *Service) ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, strings.TrimSpace(filter.LeadID))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		switch {
		case a.DueAt == nil && b.DueAt == nil:
			return 0
		case a.DueAt == nil:
			return 1
		case b.DueAt == nil:
			return -1
		default:
			return a.DueAt.Compare(*b.DueAt)
		}
	})
	return tasks, nil
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	Title string
	DueAt *time.Time
}

// CreateTask adds a follow-up task to a lead.
func (s *Service) CreateTask(ctx context.Context, leadID string, in CreateTaskInput) (domain.Task, error) {
	lead, err := s.repo.GetLead(ctx, strings.TrimSpace(leadID))
	if err != nil {
		return domain.Task{}, err
	}
	now := s.clock()
	task, err := domain.NewTask(domain.TaskInput{
		ID:     s.idGen(),
		LeadID: lead.ID,
		Title:  in.Title,
		DueAt:  in.DueAt,
	}, now)
	if err != nil {
		return domain.Task{}, err
	}
	act, err := s.newActivity(ctx, lead.ID, domain.ActivityTaskCreated, "Task created", task.Title, map[string]string{
		domain.MetaTaskID: task.ID,
	}, now)
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.ApplyLeadChange(ctx, LeadChange{NewTasks: []domain.Task{task}, Activities: []domain.Activity{act}}); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask changes a task's status.
func (s *Service) UpdateTask(ctx context.Context, taskID string, status domain.TaskStatus) (domain.Task, error) {
	status, err := domain.ParseTaskStatus(string(status))
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return domain.Task{}, err
	}
	if task.Status == status {
		return task, nil
	}
	now := s.clock()
	if err := task.SetStatus(status, now); err != nil {
		return domain.Task{}, err
	}
	act, err := s.newActivity(ctx, task.LeadID, domain.ActivityTaskUpdated, "Task "+strings.ToLower(string(status)), task.Title, map[string]string{
		domain.MetaTaskID:     task.ID,
		domain.MetaTaskStatus: string(status),
	}, now)
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.ApplyLeadChange(ctx, LeadChange{TaskUpdates: []domain.Task{task}, Activities: []domain.Activity{act}}); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// ListActivities returns a lead's timeline, newest first.
func (s *Service) ListActivities(ctx context.Context, leadID string) ([]domain.Activity, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, domain.ErrInvalidID
	}
	activities, err := s.repo.ListActivities(ctx, leadID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(activities, func(a, b domain.Activity) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return activities, nil
}

// CreateActivityInput holds input values for create activity operations.
type CreateActivityInput struct {
	Type  domain.ActivityType
	Title string
	Body  string
}

// CreateActivity records a user-authored timeline entry. System-generated types are rejected.
func (s *Service) CreateActivity(ctx context.Context, leadID string, in CreateActivityInput) (domain.Activity, error) {
	kind, err := domain.ParseActivityType(string(in.Type))
	if err != nil {
		return domain.Activity{}, err
	}
	if !kind.IsUserAuthored() {
		return domain.Activity{}, fmt.Errorf("%w: %s", ErrActivityNotAuthored, kind)
	}
	lead, err := s.repo.GetLead(ctx, strings.TrimSpace(leadID))
	if err != nil {
		return domain.Activity{}, err
	}
	act, err := s.newActivity(ctx, lead.ID, kind, in.Title, in.Body, nil, s.clock())
	if err != nil {
		return domain.Activity{}, err
	}
	if err := s.repo.ApplyLeadChange(ctx, LeadChange{Activities: []domain.Activity{act}}); err != nil {
		return domain.Activity{}, err
	}
	return act, nil
}

// applyStageChange moves lead to stage in place and returns the stage_changed activity, or nil for a same-stage move.
func (s *Service) applyStageChange(ctx context.Context, lead *domain.Lead, raw domain.StageID, settings domain.Settings, now time.Time) (*domain.Activity, error) {
	stage := domain.NormalizeStageID(string(raw))
	if stage == "" {
		return nil, domain.ErrInvalidStage
	}
	if !settings.HasStage(stage) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotConfigured, stage)
	}
	if lead.Stage == stage {
		return nil, nil
	}
	from := lead.Stage
	if err := lead.MoveTo(stage, now); err != nil {
		return nil, err
	}
	act, err := s.newActivity(ctx, lead.ID, domain.ActivityStageChanged, fmt.Sprintf("Moved from %s to %s", from.Label(), stage.Label()), "", map[string]string{
		domain.MetaFromStage: string(from),
		domain.MetaToStage:   string(stage),
	}, now)
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// ensureAgentExists accepts an empty id as unassignment.
func (s *Service) ensureAgentExists(ctx context.Context, agentID string) error {
	if agentID == "" {
		return nil
	}
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, agent := range agents {
		if agent.ID == agentID {
			return nil
		}
	}
	return fmt.Errorf("%w: agent %s", ErrNotFound, agentID)
}

func (s *Service) newActivity(ctx context.Context, leadID string, kind domain.ActivityType, title, body string, meta map[string]string, now time.Time) (domain.Activity, error) {
	return domain.NewActivity(domain.ActivityInput{
		ID:       s.idGen(),
		LeadID:   leadID,
		Type:     kind,
		Title:    title,
		Body:     body,
		ActorID:  s.actorFor(ctx),
		Metadata: meta,
	}, now)
}

func nextActionTaskTitle(action domain.NextAction) string {
	title := action.Type.Label()
	if action.Notes != "" {
		first, _, _ := strings.Cut(action.Notes, "\n")
		title += ": " + strings.TrimSpace(first)
	}
	return title
}
