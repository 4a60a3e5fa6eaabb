package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "pitchside.snapshot.v1"

// Snapshot is a portable JSON image of the whole pipeline.
type Snapshot struct {
	Version    string             `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Settings   SnapshotSettings   `json:"settings"`
	Agents     []SnapshotAgent    `json:"agents"`
	Leads      []SnapshotLead     `json:"leads"`
	Tasks      []SnapshotTask     `json:"tasks"`
	Activities []SnapshotActivity `json:"activities,omitempty"`
}

// SnapshotSettings represents snapshot settings data used by this package.
type SnapshotSettings struct {
	Stages          []string                 `json:"stages"`
	SLAHoursByStage map[string]int           `json:"sla_hours_by_stage,omitempty"`
	AssignmentRules []SnapshotAssignmentRule `json:"assignment_rules,omitempty"`
}

// SnapshotAssignmentRule represents snapshot assignment rule data used by this package.
type SnapshotAssignmentRule struct {
	Source  string `json:"source"`
	OwnerID string `json:"owner_id"`
}

// SnapshotAgent represents snapshot agent data used by this package.
type SnapshotAgent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SnapshotLead represents snapshot lead data used by this package.
type SnapshotLead struct {
	ID             string     `json:"id"`
	SourceType     string     `json:"source_type"`
	PrimaryName    string     `json:"primary_name"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email,omitempty"`
	Stage          string     `json:"stage"`
	Status         string     `json:"status"`
	Priority       int        `json:"priority"`
	OwnerID        string     `json:"owner_id,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StageChangedAt *time.Time `json:"stage_changed_at,omitempty"`
}

// SnapshotTask represents snapshot task data used by this package.
type SnapshotTask struct {
	ID        string     `json:"id"`
	LeadID    string     `json:"lead_id"`
	Title     string     `json:"title"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SnapshotActivity represents snapshot activity data used by this package.
type SnapshotActivity struct {
	ID         string            `json:"id"`
	LeadID     string            `json:"lead_id"`
	Type       string            `json:"type"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportSnapshot captures every agent, lead, task, and activity plus settings.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	leads, err := s.repo.ListLeads(ctx, LeadFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}
	activities, err := s.repo.ListActivities(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Settings:   snapshotSettingsFromDomain(settings),
		Agents:     make([]SnapshotAgent, 0, len(agents)),
		Leads:      make([]SnapshotLead, 0, len(leads)),
		Tasks:      make([]SnapshotTask, 0, len(tasks)),
		Activities: make([]SnapshotActivity, 0, len(activities)),
	}
	for _, agent := range agents {
		snap.Agents = append(snap.Agents, SnapshotAgent(agent))
	}
	for _, lead := range leads {
		snap.Leads = append(snap.Leads, snapshotLeadFromDomain(lead))
	}
	for _, task := range tasks {
		snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))
	}
	for _, act := range activities {
		snap.Activities = append(snap.Activities, snapshotActivityFromDomain(act))
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts a snapshot. Activities already present are skipped.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	if len(snap.Settings.Stages) > 0 {
		if _, err := s.SaveSettings(ctx, snap.Settings.toDomain()); err != nil {
			return err
		}
	}
	for _, agent := range snap.Agents {
		if err := s.repo.UpsertAgent(ctx, domain.Agent(agent)); err != nil {
			return err
		}
	}
	for _, raw := range snap.Leads {
		lead := raw.toDomain()
		if _, err := s.repo.GetLead(ctx, lead.ID); err == nil {
			if err := s.repo.ApplyLeadChange(ctx, LeadChange{Lead: &lead}); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.repo.CreateLead(ctx, lead); err != nil {
			return err
		}
	}

	change := LeadChange{}
	for _, raw := range snap.Tasks {
		task := raw.toDomain()
		if _, err := s.repo.GetTask(ctx, task.ID); err == nil {
			change.TaskUpdates = append(change.TaskUpdates, task)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		change.NewTasks = append(change.NewTasks, task)
	}

	existing, err := s.repo.ListActivities(ctx, "")
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, act := range existing {
		seen[act.ID] = struct{}{}
	}
	for _, raw := range snap.Activities {
		if _, ok := seen[raw.ID]; ok {
			continue
		}
		change.Activities = append(change.Activities, raw.toDomain())
	}
	return s.repo.ApplyLeadChange(ctx, change)
}

// Validate checks required fields and cross references.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	leadIDs := map[string]struct{}{}
	for i, l := range s.Leads {
		if strings.TrimSpace(l.ID) == "" {
			return fmt.Errorf("%w: leads[%d].id is required", ErrInvalidSnapshot, i)
		}
		if strings.TrimSpace(l.PrimaryName) == "" || strings.TrimSpace(l.Phone) == "" {
			return fmt.Errorf("%w: leads[%d] requires primary_name and phone", ErrInvalidSnapshot, i)
		}
		if !domain.ValidPriority(l.Priority) {
			return fmt.Errorf("%w: leads[%d].priority must be 0..3", ErrInvalidSnapshot, i)
		}
		if _, err := domain.ParseSourceType(l.SourceType); err != nil {
			return fmt.Errorf("%w: leads[%d].source_type %q", ErrInvalidSnapshot, i, l.SourceType)
		}
		if _, err := domain.ParseLeadStatus(l.Status); err != nil {
			return fmt.Errorf("%w: leads[%d].status %q", ErrInvalidSnapshot, i, l.Status)
		}
		if l.CreatedAt.IsZero() || l.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: leads[%d] timestamps are required", ErrInvalidSnapshot, i)
		}
		if _, exists := leadIDs[l.ID]; exists {
			return fmt.Errorf("%w: duplicate lead id %q", ErrInvalidSnapshot, l.ID)
		}
		leadIDs[l.ID] = struct{}{}
	}

	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: tasks[%d] requires id and title", ErrInvalidSnapshot, i)
		}
		if _, err := domain.ParseTaskStatus(t.Status); err != nil {
			return fmt.Errorf("%w: tasks[%d].status %q", ErrInvalidSnapshot, i, t.Status)
		}
		if _, ok := leadIDs[t.LeadID]; !ok {
			return fmt.Errorf("%w: tasks[%d] references unknown lead_id %q", ErrInvalidSnapshot, i, t.LeadID)
		}
	}

	for i, a := range s.Activities {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("%w: activities[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, err := domain.ParseActivityType(a.Type); err != nil {
			return fmt.Errorf("%w: activities[%d].type %q", ErrInvalidSnapshot, i, a.Type)
		}
		if _, ok := leadIDs[a.LeadID]; !ok {
			return fmt.Errorf("%w: activities[%d] references unknown lead_id %q", ErrInvalidSnapshot, i, a.LeadID)
		}
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Agents, func(i, j int) bool {
		return s.Agents[i].ID < s.Agents[j].ID
	})
	sort.Slice(s.Leads, func(i, j int) bool {
		return s.Leads[i].ID < s.Leads[j].ID
	})
	sort.Slice(s.Tasks, func(i, j int) bool {
		a := s.Tasks[i]
		b := s.Tasks[j]
		if a.LeadID == b.LeadID {
			return a.ID < b.ID
		}
		return a.LeadID < b.LeadID
	})
	sort.Slice(s.Activities, func(i, j int) bool {
		a := s.Activities[i]
		b := s.Activities[j]
		if a.OccurredAt.Equal(b.OccurredAt) {
			return a.ID < b.ID
		}
		return a.OccurredAt.Before(b.OccurredAt)
	})
}

func snapshotSettingsFromDomain(in domain.Settings) SnapshotSettings {
	out := SnapshotSettings{
		Stages:          make([]string, 0, len(in.Stages)),
		SLAHoursByStage: make(map[string]int, len(in.SLAHoursByStage)),
	}
	for _, stage := range in.Stages {
		out.Stages = append(out.Stages, string(stage))
	}
	for stage, hours := range in.SLAHoursByStage {
		out.SLAHoursByStage[string(stage)] = hours
	}
	for _, rule := range in.AssignmentRules {
		out.AssignmentRules = append(out.AssignmentRules, SnapshotAssignmentRule{Source: string(rule.Source), OwnerID: rule.OwnerID})
	}
	return out
}

func (s SnapshotSettings) toDomain() domain.Settings {
	out := domain.Settings{SLAHoursByStage: map[domain.StageID]int{}}
	for _, stage := range s.Stages {
		out.Stages = append(out.Stages, domain.StageID(stage))
	}
	for stage, hours := range s.SLAHoursByStage {
		out.SLAHoursByStage[domain.StageID(stage)] = hours
	}
	for _, rule := range s.AssignmentRules {
		out.AssignmentRules = append(out.AssignmentRules, domain.AssignmentRule{Source: domain.SourceType(rule.Source), OwnerID: rule.OwnerID})
	}
	return out
}

func snapshotLeadFromDomain(l domain.Lead) SnapshotLead {
	return SnapshotLead{
		ID:             l.ID,
		SourceType:     string(l.SourceType),
		PrimaryName:    l.PrimaryName,
		Phone:          l.Phone,
		Email:          l.Email,
		Stage:          string(l.Stage),
		Status:         string(l.Status),
		Priority:       l.Priority,
		OwnerID:        l.OwnerID,
		Tags:           append([]string(nil), l.Tags...),
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
		StageChangedAt: copyTimePtr(l.StageChangedAt),
	}
}

func (l SnapshotLead) toDomain() domain.Lead {
	source, _ := domain.ParseSourceType(l.SourceType)
	status, _ := domain.ParseLeadStatus(l.Status)
	return domain.Lead{
		ID:             strings.TrimSpace(l.ID),
		SourceType:     source,
		PrimaryName:    strings.TrimSpace(l.PrimaryName),
		Phone:          strings.TrimSpace(l.Phone),
		Email:          strings.TrimSpace(l.Email),
		Stage:          domain.NormalizeStageID(l.Stage),
		Status:         status,
		Priority:       l.Priority,
		OwnerID:        strings.TrimSpace(l.OwnerID),
		Tags:           domain.NormalizeTags(l.Tags),
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
		StageChangedAt: copyTimePtr(l.StageChangedAt),
	}
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:        t.ID,
		LeadID:    t.LeadID,
		Title:     t.Title,
		DueAt:     copyTimePtr(t.DueAt),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func (t SnapshotTask) toDomain() domain.Task {
	status, _ := domain.ParseTaskStatus(t.Status)
	return domain.Task{
		ID:        strings.TrimSpace(t.ID),
		LeadID:    strings.TrimSpace(t.LeadID),
		Title:     strings.TrimSpace(t.Title),
		DueAt:     copyTimePtr(t.DueAt),
		Status:    status,
		CreatedAt: t.CreatedAt.UTC(),
		UpdatedAt: t.UpdatedAt.UTC(),
	}
}

func snapshotActivityFromDomain(a domain.Activity) SnapshotActivity {
	return SnapshotActivity{
		ID:         a.ID,
		LeadID:     a.LeadID,
		Type:       string(a.Type),
		Title:      a.Title,
		Body:       a.Body,
		ActorID:    a.ActorID,
		OccurredAt: a.OccurredAt.UTC(),
		Metadata:   maps.Clone(a.Metadata),
	}
}

func (a SnapshotActivity) toDomain() domain.Activity {
	kind, _ := domain.ParseActivityType(a.Type)
	return domain.Activity{
		ID:         strings.TrimSpace(a.ID),
		LeadID:     strings.TrimSpace(a.LeadID),
		Type:       kind,
		Title:      a.Title,
		Body:       a.Body,
		ActorID:    a.ActorID,
		OccurredAt: a.OccurredAt.UTC(),
		Metadata:   maps.Clone(a.Metadata),
	}
}

// copyTimePtr copies time ptr.
func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := in.UTC().Truncate(time.Second)
	return &t
}
