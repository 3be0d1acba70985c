package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/user-segments/internal/model"
)

// SegmentService is what the HTTP layer needs from the business layer.
//
// WHY AN INTERFACE HERE?
// The handler depends on behaviour, not on *service.SegmentService. Tests
// can pass the real service over an in-memory store, or a stub that fails
// on demand.
type SegmentService interface {
	QueryUsers(ctx context.Context, rawFilters json.RawMessage) ([]model.User, error)
	CreateSegment(ctx context.Context, name, description string, filters json.RawMessage) (*model.Segment, error)
	ListSegments(ctx context.Context) ([]model.Segment, error)
	GetSegment(ctx context.Context, id string) (*model.Segment, error)
	SegmentUsers(ctx context.Context, id string) ([]model.User, error)
}

// SegmentHandler serves the user query and saved segment endpoints.
type SegmentHandler struct {
	service SegmentService
	logger  *slog.Logger
}

// NewSegmentHandler creates a new SegmentHandler.
func NewSegmentHandler(service SegmentService, logger *slog.Logger) *SegmentHandler {
	return &SegmentHandler{service: service, logger: logger}
}

// queryRequest is the body of POST /api/users/segment.
type queryRequest struct {
	Filters json.RawMessage `json:"filters"`
}

// createSegmentRequest is the body of POST /api/segments.
//
// Filters stays raw: presence, truthiness and object-ness are checked by
// the service, which needs to tell "absent" apart from "not an object".
type createSegmentRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Filters     json.RawMessage `json:"filters"`
}

// HandleQueryUsers returns the users matching an ad-hoc filter set.
//
// HTTP: POST /api/users/segment
// REQUEST BODY: {"filters": {"ageRange": {"min": 25, "max": 30}, "gender": "all"}}
// RESPONSE: 200 [ {user}, ... ] newest created first
func (h *SegmentHandler) HandleQueryUsers(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	users, err := h.service.QueryUsers(r.Context(), req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// HandleCreate saves a new segment.
//
// HTTP: POST /api/segments
// REQUEST BODY: {"name": "VIPs", "description": "heavy users", "filters": {"logins": 10}}
// RESPONSE: 201 {segment}
func (h *SegmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSegmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	segment, err := h.service.CreateSegment(r.Context(), req.Name, req.Description, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, segment) // 201 Created
}

// HandleList returns all saved segments, newest first.
//
// HTTP: GET /api/segments
func (h *SegmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	segments, err := h.service.ListSegments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segments)
}

// HandleGetByID returns one saved segment.
//
// HTTP: GET /api/segments/{id}
//
// URL PARAMETERS:
// chi.URLParam reads the {id} placeholder from the matched route, so
// GET /api/segments/cnq2p4 yields "cnq2p4".
func (h *SegmentHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	segment, err := h.service.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, segment)
}

// HandleSegmentUsers evaluates a saved segment now and returns its users.
//
// HTTP: GET /api/segments/{id}/users
func (h *SegmentHandler) HandleSegmentUsers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	users, err := h.service.SegmentUsers(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("segment evaluated",
		slog.String("id", id),
		slog.Int("matches", len(users)),
	)
	writeJSON(w, http.StatusOK, users)
}
