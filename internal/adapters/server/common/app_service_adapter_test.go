package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/evanschultz/pitchside/internal/adapters/storage/sqlite"
	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/domain"
)

// newTestAdapter wires the adapter onto an in-memory sqlite repository.
func newTestAdapter(t *testing.T, now time.Time) *AppServiceAdapter {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	n := 0
	svc := app.NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return now }, app.ServiceConfig{
		Settings:     domain.DefaultSettings(),
		DefaultActor: "desk",
		Location:     time.UTC,
	})
	if err := svc.EnsureAgents(context.Background(), []domain.Agent{{ID: "u1", Name: "Ana"}}); err != nil {
		t.Fatalf("EnsureAgents() error = %v", err)
	}
	return NewAppServiceAdapter(svc)
}

func TestAppServiceAdapterLeadFlow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	adapter := newTestAdapter(t, now)

	lead, err := adapter.CreateLead(ctx, CreateLeadRequest{PrimaryName: "Maria", Phone: "555-0101", Tags: []string{"trial"}})
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	if lead.Stage != string(domain.StageNew) || lead.Hot {
		t.Fatalf("unexpected created lead %#v", lead)
	}

	past := now.Add(-time.Hour)
	if _, err := adapter.CreateTask(ctx, CreateTaskRequest{LeadID: lead.ID, Title: "Call back", DueAt: &past}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	leads, err := adapter.ListLeads(ctx, ListLeadsRequest{})
	if err != nil {
		t.Fatalf("ListLeads() error = %v", err)
	}
	if len(leads) != 1 || !leads[0].OverdueFollowUp {
		t.Fatalf("expected overdue lead, got %#v", leads)
	}

	priority := domain.PriorityHigh
	updated, err := adapter.UpdateLead(ctx, UpdateLeadRequest{LeadID: lead.ID, ActorID: "u1", Priority: &priority})
	if err != nil {
		t.Fatalf("UpdateLead() error = %v", err)
	}
	if !updated.Hot {
		t.Fatalf("expected hot lead after priority change, got %#v", updated)
	}

	moved, err := adapter.MoveLead(ctx, MoveLeadRequest{
		LeadID:     lead.ID,
		Stage:      string(domain.StageContacted),
		NextAction: &NextActionRequest{Type: string(domain.NextActionCall), Notes: "evening"},
	})
	if err != nil {
		t.Fatalf("MoveLead() error = %v", err)
	}
	if moved.Stage != string(domain.StageContacted) {
		t.Fatalf("unexpected stage %q", moved.Stage)
	}

	activities, err := adapter.ListActivities(ctx, lead.ID)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	var sawPriority bool
	for _, activity := range activities {
		if activity.Type == string(domain.ActivityPriorityChanged) {
			sawPriority = true
			if activity.ActorID != "u1" {
				t.Fatalf("expected actor attribution u1, got %q", activity.ActorID)
			}
		}
	}
	if !sawPriority {
		t.Fatalf("expected priority_changed activity, got %#v", activities)
	}
}

func TestAppServiceAdapterMapsErrors(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	lead, err := adapter.CreateLead(ctx, CreateLeadRequest{PrimaryName: "Dana", Phone: "1"})
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	if _, err := adapter.GetLead(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := adapter.MoveLead(ctx, MoveLeadRequest{LeadID: lead.ID, Stage: "LOST"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := adapter.MoveLead(ctx, MoveLeadRequest{LeadID: lead.ID, Stage: "JOINED", NextAction: &NextActionRequest{Type: "fax"}}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad next action, got %v", err)
	}
	if _, err := adapter.CreateActivity(ctx, CreateActivityRequest{LeadID: lead.ID, Type: string(domain.ActivityStageChanged)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for system activity, got %v", err)
	}
	if _, err := adapter.UpdateTask(ctx, UpdateTaskRequest{TaskID: "t1", Status: "maybe"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad status, got %v", err)
	}
	if _, err := (&AppServiceAdapter{}).ListUsers(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAppServiceAdapterAnalyticsScopes(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	if _, err := adapter.CreateLead(ctx, CreateLeadRequest{PrimaryName: "A", Phone: "1", OwnerID: "u1"}); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	if _, err := adapter.CreateLead(ctx, CreateLeadRequest{PrimaryName: "B", Phone: "2"}); err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}

	global, err := adapter.Analytics(ctx, "")
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if global.OpenLeads != nil || global.OpenByStage[domain.StageNew] != 2 {
		t.Fatalf("unexpected global analytics %#v", global)
	}
	scoped, err := adapter.Analytics(ctx, "u1")
	if err != nil {
		t.Fatalf("Analytics(u1) error = %v", err)
	}
	if scoped.OpenLeads == nil || *scoped.OpenLeads != 1 || scoped.AgentID != "u1" {
		t.Fatalf("unexpected agent analytics %#v", scoped)
	}
}
