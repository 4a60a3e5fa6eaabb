package app

import (
	"context"
	"strings"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

// PipelineAnalytics holds funnel metrics derived from one lead/task/activity snapshot.
type PipelineAnalytics struct {
	ConversionsToday int                    `json:"conversions_today"`
	ConversionsWeek  int                    `json:"conversions_week"`
	TouchesToday     int                    `json:"touches_today"`
	TouchesWeek      int                    `json:"touches_week"`
	MovesToday       int                    `json:"moves_today"`
	MovesWeek        int                    `json:"moves_week"`
	FollowUpsOverdue int                    `json:"follow_ups_overdue"`
	HotLeadsCount    int                    `json:"hot_leads_count"`
	Stages           []domain.StageID       `json:"stages"`
	OpenByStage      map[domain.StageID]int `json:"open_by_stage"`
}

// AgentAnalytics is PipelineAnalytics restricted to one owner's leads.
type AgentAnalytics struct {
	PipelineAnalytics
	AgentID   string `json:"agent_id"`
	OpenLeads int    `json:"open_leads"`
}

// AnalyticsInput is the snapshot analytics are derived from.
type AnalyticsInput struct {
	Leads      []domain.Lead
	Tasks      []domain.Task
	Activities []domain.Activity
	Stages     []domain.StageID
	Now        time.Time
	Location   *time.Location
}

// AnalyticsWindow is a half-open [Start, End) interval.
type AnalyticsWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w AnalyticsWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// AnalyticsWindows returns the today and week windows for now in loc.
// Today is the local calendar day. Week is the trailing 7x24h reaching back from now, closed at the end of today
// so that today is always contained in week.
func AnalyticsWindows(now time.Time, loc *time.Location) (today, week AnalyticsWindow) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	today = AnalyticsWindow{Start: dayStart, End: dayEnd}
	week = AnalyticsWindow{Start: now.Add(-7 * 24 * time.Hour), End: dayEnd}
	return today, week
}

// BuildAnalytics derives pipeline metrics. It is pure: the same input always yields the same output.
func BuildAnalytics(in AnalyticsInput) PipelineAnalytics {
	today, week := AnalyticsWindows(in.Now, in.Location)
	out := PipelineAnalytics{
		Stages:      append([]domain.StageID(nil), in.Stages...),
		OpenByStage: make(map[domain.StageID]int, len(in.Stages)),
	}
	for _, stage := range in.Stages {
		out.OpenByStage[stage] = 0
	}

	for _, lead := range in.Leads {
		if lead.Stage == domain.StageJoined {
			converted := lead.ConversionTime()
			if today.Contains(converted) {
				out.ConversionsToday++
			}
			if week.Contains(converted) {
				out.ConversionsWeek++
			}
		}
		if domain.HasOverdueFollowUp(lead.ID, in.Tasks, in.Now) {
			out.FollowUpsOverdue++
		}
		if domain.IsHot(lead) {
			out.HotLeadsCount++
		}
		if lead.Status == domain.LeadStatusOpen {
			if _, ok := out.OpenByStage[lead.Stage]; ok {
				out.OpenByStage[lead.Stage]++
			}
		}
	}

	for _, act := range in.Activities {
		inToday := today.Contains(act.OccurredAt)
		inWeek := week.Contains(act.OccurredAt)
		if inToday {
			out.TouchesToday++
		}
		if inWeek {
			out.TouchesWeek++
		}
		if act.Type != domain.ActivityStageChanged {
			continue
		}
		if inToday {
			out.MovesToday++
		}
		if inWeek {
			out.MovesWeek++
		}
	}
	return out
}

// BuildAgentAnalytics derives metrics over the leads owned by agentID and their tasks and activities.
func BuildAgentAnalytics(agentID string, in AnalyticsInput) AgentAnalytics {
	agentID = strings.TrimSpace(agentID)
	owned := map[string]struct{}{}
	scoped := in
	scoped.Leads = make([]domain.Lead, 0, len(in.Leads))
	openLeads := 0
	for _, lead := range in.Leads {
		if lead.OwnerID != agentID {
			continue
		}
		owned[lead.ID] = struct{}{}
		scoped.Leads = append(scoped.Leads, lead)
		if lead.Status == domain.LeadStatusOpen {
			openLeads++
		}
	}
	scoped.Tasks = make([]domain.Task, 0, len(in.Tasks))
	for _, task := range in.Tasks {
		if _, ok := owned[task.LeadID]; ok {
			scoped.Tasks = append(scoped.Tasks, task)
		}
	}
	scoped.Activities = make([]domain.Activity, 0, len(in.Activities))
	for _, act := range in.Activities {
		if _, ok := owned[act.LeadID]; ok {
			scoped.Activities = append(scoped.Activities, act)
		}
	}
	return AgentAnalytics{
		PipelineAnalytics: BuildAnalytics(scoped),
		AgentID:           agentID,
		OpenLeads:         openLeads,
	}
}

// Analytics loads the current snapshot and derives pipeline metrics.
func (s *Service) Analytics(ctx context.Context) (PipelineAnalytics, error) {
	in, err := s.analyticsInput(ctx)
	if err != nil {
		return PipelineAnalytics{}, err
	}
	return BuildAnalytics(in), nil
}

// AgentAnalytics loads the current snapshot and derives metrics for one owner.
func (s *Service) AgentAnalytics(ctx context.Context, agentID string) (AgentAnalytics, error) {
	in, err := s.analyticsInput(ctx)
	if err != nil {
		return AgentAnalytics{}, err
	}
	return BuildAgentAnalytics(agentID, in), nil
}

func (s *Service) analyticsInput(ctx context.Context) (AnalyticsInput, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return AnalyticsInput{}, err
	}
	leads, err := s.repo.ListLeads(ctx, LeadFilter{})
	if err != nil {
		return AnalyticsInput{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, "")
	if err != nil {
		return AnalyticsInput{}, err
	}
	activities, err := s.repo.ListActivities(ctx, "")
	if err != nil {
		return AnalyticsInput{}, err
	}
	return AnalyticsInput{
		Leads:      leads,
		Tasks:      tasks,
		Activities: activities,
		Stages:     settings.Stages,
		Now:        s.clock(),
		Location:   s.location,
	}, nil
}
