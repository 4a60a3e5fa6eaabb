// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/evanschultz/pitchside/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader carries the acting agent id for mutations.
const ActorHeader = "X-Pitchside-Actor"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	pipeline common.PipelineService
	mux      *http.ServeMux
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the pipeline service.
func NewHandler(pipeline common.PipelineService) *Handler {
	h := &Handler{pipeline: pipeline, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /leads", h.handleListLeads)
	h.mux.HandleFunc("POST /leads", h.handleCreateLead)
	h.mux.HandleFunc("GET /leads/{id}", h.handleGetLead)
	h.mux.HandleFunc("PATCH /leads/{id}", h.handleUpdateLead)
	h.mux.HandleFunc("POST /leads/{id}/move", h.handleMoveLead)
	h.mux.HandleFunc("GET /leads/{id}/tasks", h.handleListLeadTasks)
	h.mux.HandleFunc("POST /leads/{id}/tasks", h.handleCreateTask)
	h.mux.HandleFunc("GET /leads/{id}/activities", h.handleListActivities)
	h.mux.HandleFunc("POST /leads/{id}/activities", h.handleCreateActivity)
	h.mux.HandleFunc("GET /tasks", h.handleListTasks)
	h.mux.HandleFunc("PATCH /tasks/{id}", h.handleUpdateTask)
	h.mux.HandleFunc("GET /settings", h.handleGetSettings)
	h.mux.HandleFunc("PUT /settings", h.handleSaveSettings)
	h.mux.HandleFunc("GET /users", h.handleListUsers)
	h.mux.HandleFunc("GET /analytics", h.handleAnalytics)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "pipeline service is not configured",
		})
		return
	}
	if r.URL.Path == "" {
		r.URL.Path = "/"
	}
	h.mux.ServeHTTP(w, r)
}

// handleListLeads serves GET `/leads`.
func (h *Handler) handleListLeads(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := common.ListLeadsRequest{
		Search:  strings.TrimSpace(query.Get("search")),
		OwnerID: strings.TrimSpace(query.Get("owner_id")),
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		req.Limit = limit
	}
	leads, err := h.pipeline.ListLeads(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// handleCreateLead serves POST `/leads`.
func (h *Handler) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req common.CreateLeadRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ActorID = actorFrom(r, req.ActorID)
	lead, err := h.pipeline.CreateLead(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// handleGetLead serves GET `/leads/{id}`.
func (h *Handler) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.pipeline.GetLead(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// handleUpdateLead serves PATCH `/leads/{id}`.
func (h *Handler) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	var req common.UpdateLeadRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.LeadID = r.PathValue("id")
	req.ActorID = actorFrom(r, req.ActorID)
	lead, err := h.pipeline.UpdateLead(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// handleMoveLead serves POST `/leads/{id}/move`.
func (h *Handler) handleMoveLead(w http.ResponseWriter, r *http.Request) {
	var req common.MoveLeadRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.LeadID = r.PathValue("id")
	req.ActorID = actorFrom(r, req.ActorID)
	lead, err := h.pipeline.MoveLead(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// handleListLeadTasks serves GET `/leads/{id}/tasks`.
func (h *Handler) handleListLeadTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.pipeline.ListTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleCreateTask serves POST `/leads/{id}/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.LeadID = r.PathValue("id")
	req.ActorID = actorFrom(r, req.ActorID)
	task, err := h.pipeline.CreateTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleListActivities serves GET `/leads/{id}/activities`.
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.pipeline.ListActivities(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

// handleCreateActivity serves POST `/leads/{id}/activities`.
func (h *Handler) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var req common.CreateActivityRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.LeadID = r.PathValue("id")
	req.ActorID = actorFrom(r, req.ActorID)
	activity, err := h.pipeline.CreateActivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// handleListTasks serves GET `/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.pipeline.ListTasks(r.Context(), strings.TrimSpace(r.URL.Query().Get("lead_id")))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.TaskID = r.PathValue("id")
	req.ActorID = actorFrom(r, req.ActorID)
	task, err := h.pipeline.UpdateTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleGetSettings serves GET `/settings`.
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.pipeline.GetSettings(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleSaveSettings serves PUT `/settings`.
func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req common.SettingsView
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	settings, err := h.pipeline.SaveSettings(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleListUsers serves GET `/users`.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.pipeline.ListUsers(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// handleAnalytics serves GET `/analytics`.
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Analytics(r.Context(), r.URL.Query().Get("agent_id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// actorFrom prefers the body actor and falls back to the actor header.
func actorFrom(r *http.Request, bodyActor string) string {
	if trimmed := strings.TrimSpace(bodyActor); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(r.Header.Get(ActorHeader))
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "stage_not_configured",
			Message: err.Error(),
			Hint:    "Move leads only into stages listed by GET /settings.",
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
