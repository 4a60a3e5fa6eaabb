package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evanschultz/pitchside/internal/adapters/server/common"
	"github.com/evanschultz/pitchside/internal/app"
)

// stubPipeline records the last request per operation and returns fixtures.
type stubPipeline struct {
	err        error
	leads      []common.LeadView
	lead       common.LeadView
	task       common.TaskView
	activity   common.ActivityView
	settings   common.SettingsView
	users      []common.AgentView
	analytics  common.AnalyticsView
	lastList   common.ListLeadsRequest
	lastCreate common.CreateLeadRequest
	lastUpdate common.UpdateLeadRequest
	lastMove   common.MoveLeadRequest
	lastTask   common.UpdateTaskRequest
	lastAgent  string
	lastLeadID string
}

func (s *stubPipeline) ListLeads(_ context.Context, req common.ListLeadsRequest) ([]common.LeadView, error) {
	s.lastList = req
	return s.leads, s.err
}

func (s *stubPipeline) GetLead(_ context.Context, leadID string) (common.LeadView, error) {
	s.lastLeadID = leadID
	return s.lead, s.err
}

func (s *stubPipeline) CreateLead(_ context.Context, req common.CreateLeadRequest) (common.LeadView, error) {
	s.lastCreate = req
	return s.lead, s.err
}

func (s *stubPipeline) UpdateLead(_ context.Context, req common.UpdateLeadRequest) (common.LeadView, error) {
	s.lastUpdate = req
	return s.lead, s.err
}

func (s *stubPipeline) MoveLead(_ context.Context, req common.MoveLeadRequest) (common.LeadView, error) {
	s.lastMove = req
	return s.lead, s.err
}

func (s *stubPipeline) ListTasks(_ context.Context, leadID string) ([]common.TaskView, error) {
	s.lastLeadID = leadID
	return []common.TaskView{s.task}, s.err
}

func (s *stubPipeline) CreateTask(_ context.Context, req common.CreateTaskRequest) (common.TaskView, error) {
	s.lastLeadID = req.LeadID
	return s.task, s.err
}

func (s *stubPipeline) UpdateTask(_ context.Context, req common.UpdateTaskRequest) (common.TaskView, error) {
	s.lastTask = req
	return s.task, s.err
}

func (s *stubPipeline) ListActivities(_ context.Context, leadID string) ([]common.ActivityView, error) {
	s.lastLeadID = leadID
	return []common.ActivityView{s.activity}, s.err
}

func (s *stubPipeline) CreateActivity(_ context.Context, req common.CreateActivityRequest) (common.ActivityView, error) {
	s.lastLeadID = req.LeadID
	return s.activity, s.err
}

func (s *stubPipeline) GetSettings(context.Context) (common.SettingsView, error) {
	return s.settings, s.err
}

func (s *stubPipeline) SaveSettings(_ context.Context, in common.SettingsView) (common.SettingsView, error) {
	s.settings = in
	return in, s.err
}

func (s *stubPipeline) ListUsers(context.Context) ([]common.AgentView, error) {
	return s.users, s.err
}

func (s *stubPipeline) Analytics(_ context.Context, agentID string) (common.AnalyticsView, error) {
	s.lastAgent = agentID
	return s.analytics, s.err
}

// serve runs one request through the handler mounted the way the server mounts it.
func serve(t *testing.T, pipeline common.PipelineService, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	handler := http.StripPrefix("/api/v1", NewHandler(pipeline))
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var out ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

func TestHandlerListLeadsPassesFilters(t *testing.T) {
	stub := &stubPipeline{leads: []common.LeadView{{ID: "l1", PrimaryName: "Maria"}}}
	rec := serve(t, stub, http.MethodGet, "/api/v1/leads?search=mar&owner_id=u1&limit=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 body=%s", rec.Code, rec.Body.String())
	}
	if stub.lastList.Search != "mar" || stub.lastList.OwnerID != "u1" || stub.lastList.Limit != 5 {
		t.Fatalf("unexpected list request %#v", stub.lastList)
	}
	var body struct {
		Leads []common.LeadView `json:"leads"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(body.Leads) != 1 || body.Leads[0].ID != "l1" {
		t.Fatalf("unexpected leads %#v", body.Leads)
	}
}

func TestHandlerRejectsBadLimit(t *testing.T) {
	rec := serve(t, &stubPipeline{}, http.MethodGet, "/api/v1/leads?limit=-2", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeError(t, rec).Error.Code; got != "invalid_request" {
		t.Fatalf("code = %q, want invalid_request", got)
	}
}

func TestHandlerCreateLeadUsesActorHeader(t *testing.T) {
	stub := &stubPipeline{lead: common.LeadView{ID: "l1"}}
	rec := serve(t, stub, http.MethodPost, "/api/v1/leads", `{"primary_name":"Dana","phone":"555"}`, map[string]string{ActorHeader: "u7"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 body=%s", rec.Code, rec.Body.String())
	}
	if stub.lastCreate.ActorID != "u7" || stub.lastCreate.PrimaryName != "Dana" {
		t.Fatalf("unexpected create request %#v", stub.lastCreate)
	}
}

func TestHandlerMoveLeadDecodesNextAction(t *testing.T) {
	stub := &stubPipeline{lead: common.LeadView{ID: "l1", Stage: "CONTACTED"}}
	body := `{"stage":"CONTACTED","next_action":{"type":"call","scheduled_at":"2026-03-03T09:00:00Z","notes":"after work"}}`
	rec := serve(t, stub, http.MethodPost, "/api/v1/leads/l1/move", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 body=%s", rec.Code, rec.Body.String())
	}
	if stub.lastMove.LeadID != "l1" || stub.lastMove.NextAction == nil || stub.lastMove.NextAction.Type != "call" {
		t.Fatalf("unexpected move request %#v", stub.lastMove)
	}
	if stub.lastMove.NextAction.ScheduledAt == nil || stub.lastMove.NextAction.ScheduledAt.Hour() != 9 {
		t.Fatalf("expected scheduled_at to decode, got %#v", stub.lastMove.NextAction)
	}
}

func TestHandlerUpdateLeadPartialFields(t *testing.T) {
	stub := &stubPipeline{lead: common.LeadView{ID: "l1"}}
	rec := serve(t, stub, http.MethodPatch, "/api/v1/leads/l1", `{"priority":1}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 body=%s", rec.Code, rec.Body.String())
	}
	if stub.lastUpdate.LeadID != "l1" || stub.lastUpdate.Priority == nil || *stub.lastUpdate.Priority != 1 {
		t.Fatalf("unexpected update request %#v", stub.lastUpdate)
	}
	if stub.lastUpdate.OwnerID != nil || stub.lastUpdate.Tags != nil || stub.lastUpdate.Stage != nil {
		t.Fatalf("expected untouched fields to stay nil, got %#v", stub.lastUpdate)
	}
}

func TestHandlerRejectsUnknownAndTrailingJSON(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"stage":"NEW","color":"red"}`,
		"trailing":      `{"stage":"NEW"}{"stage":"NEW"}`,
		"malformed":     `{"stage":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, &stubPipeline{}, http.MethodPost, "/api/v1/leads/l1/move", body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{err: fmt.Errorf("move lead: %w", errors.Join(common.ErrNotFound, app.ErrNotFound)), wantCode: http.StatusNotFound, wantBody: "not_found"},
		{err: fmt.Errorf("move lead: %w", common.ErrConflict), wantCode: http.StatusConflict, wantBody: "stage_not_configured"},
		{err: fmt.Errorf("move lead: %w", common.ErrInvalidRequest), wantCode: http.StatusBadRequest, wantBody: "invalid_request"},
		{err: errors.New("disk on fire"), wantCode: http.StatusInternalServerError, wantBody: "internal_error"},
	}
	for _, tc := range cases {
		rec := serve(t, &stubPipeline{err: tc.err}, http.MethodPost, "/api/v1/leads/l1/move", `{"stage":"JOINED"}`, nil)
		if rec.Code != tc.wantCode {
			t.Fatalf("status = %d, want %d for %v", rec.Code, tc.wantCode, tc.err)
		}
		if got := decodeError(t, rec).Error.Code; got != tc.wantBody {
			t.Fatalf("code = %q, want %q", got, tc.wantBody)
		}
	}
}

func TestHandlerTaskAndTimelineRoutes(t *testing.T) {
	stub := &stubPipeline{task: common.TaskView{ID: "t1"}, activity: common.ActivityView{ID: "a1"}}
	if rec := serve(t, stub, http.MethodPatch, "/api/v1/tasks/t1", `{"status":"DONE"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("PATCH tasks status = %d", rec.Code)
	}
	if stub.lastTask.TaskID != "t1" || stub.lastTask.Status != "DONE" {
		t.Fatalf("unexpected task update %#v", stub.lastTask)
	}
	if rec := serve(t, stub, http.MethodGet, "/api/v1/tasks?lead_id=l9", "", nil); rec.Code != http.StatusOK || stub.lastLeadID != "l9" {
		t.Fatalf("GET tasks status = %d lead=%q", rec.Code, stub.lastLeadID)
	}
	if rec := serve(t, stub, http.MethodPost, "/api/v1/leads/l2/activities", `{"type":"note","body":"hi"}`, nil); rec.Code != http.StatusCreated || stub.lastLeadID != "l2" {
		t.Fatalf("POST activities status = %d lead=%q", rec.Code, stub.lastLeadID)
	}
	if rec := serve(t, stub, http.MethodGet, "/api/v1/leads/l3/activities", "", nil); rec.Code != http.StatusOK || stub.lastLeadID != "l3" {
		t.Fatalf("GET activities status = %d lead=%q", rec.Code, stub.lastLeadID)
	}
}

func TestHandlerAnalyticsAndSettings(t *testing.T) {
	stub := &stubPipeline{settings: common.SettingsView{Stages: []string{"NEW"}}}
	if rec := serve(t, stub, http.MethodGet, "/api/v1/analytics?agent_id=u1", "", nil); rec.Code != http.StatusOK || stub.lastAgent != "u1" {
		t.Fatalf("GET analytics status = %d agent=%q", rec.Code, stub.lastAgent)
	}
	rec := serve(t, stub, http.MethodPut, "/api/v1/settings", `{"stages":["NEW","JOINED"]}`, nil)
	if rec.Code != http.StatusOK || len(stub.settings.Stages) != 2 {
		t.Fatalf("PUT settings status = %d settings=%#v", rec.Code, stub.settings)
	}
}

func TestHandlerUnknownRoute(t *testing.T) {
	rec := serve(t, &stubPipeline{}, http.MethodGet, "/api/v1/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec).Error.Code; got != "not_found" {
		t.Fatalf("code = %q, want not_found", got)
	}
}

func TestHandlerWithoutServiceIsUnavailable(t *testing.T) {
	rec := serve(t, nil, http.MethodGet, "/api/v1/leads", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
