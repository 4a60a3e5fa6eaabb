package app

import (
	"context"
	"errors"
	"strings"

	"github.com/evanschultz/pitchside/internal/domain"
)

type fakeRepo struct {
	leads      map[string]domain.Lead
	tasks      map[string]domain.Task
	activities []domain.Activity
	agents     map[string]domain.Agent
	settings   *domain.Settings
	applyErr   error
	changes    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		leads:  map[string]domain.Lead{},
		tasks:  map[string]domain.Task{},
		agents: map[string]domain.Agent{},
	}
}

func (f *fakeRepo) CreateLead(_ context.Context, l domain.Lead) error {
	if _, ok := f.leads[l.ID]; ok {
		return errors.New("duplicate lead")
	}
	f.leads[l.ID] = l
	return nil
}

func (f *fakeRepo) GetLead(_ context.Context, id string) (domain.Lead, error) {
	l, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) ListLeads(_ context.Context, filter LeadFilter) ([]domain.Lead, error) {
	out := make([]domain.Lead, 0, len(f.leads))
	query := strings.ToLower(filter.Search)
	for _, l := range f.leads {
		if filter.OwnerID != "" && l.OwnerID != filter.OwnerID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(l.PrimaryName+" "+l.Phone+" "+l.Email), query) {
			continue
		}
		out = append(out, l)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeRepo) ApplyLeadChange(_ context.Context, change LeadChange) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.changes++
	if change.Lead != nil {
		if _, ok := f.leads[change.Lead.ID]; !ok {
			return ErrNotFound
		}
		f.leads[change.Lead.ID] = *change.Lead
	}
	for _, t := range change.NewTasks {
		f.tasks[t.ID] = t
	}
	for _, t := range change.TaskUpdates {
		if _, ok := f.tasks[t.ID]; !ok {
			return ErrNotFound
		}
		f.tasks[t.ID] = t
	}
	f.activities = append(f.activities, change.Activities...)
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, leadID string) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if leadID != "" && t.LeadID != leadID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) ListActivities(_ context.Context, leadID string) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(f.activities))
	for _, a := range f.activities {
		if leadID != "" && a.LeadID != leadID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) UpsertAgent(_ context.Context, a domain.Agent) error {
	f.agents[a.ID] = a
	return nil
}

func (f *fakeRepo) ListAgents(_ context.Context) ([]domain.Agent, error) {
	out := make([]domain.Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) GetSettings(_ context.Context) (domain.Settings, error) {
	if f.settings == nil {
		return domain.Settings{}, ErrNotFound
	}
	return f.settings.Clone(), nil
}

func (f *fakeRepo) SaveSettings(_ context.Context, s domain.Settings) error {
	clone := s.Clone()
	f.settings = &clone
	return nil
}

func (f *fakeRepo) activitiesOfType(kind domain.ActivityType) []domain.Activity {
	out := make([]domain.Activity, 0)
	for _, a := range f.activities {
		if a.Type == kind {
			out = append(out, a)
		}
	}
	return out
}
