// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, compiles filters, orchestrates
//	Repository (Data layer)  → reads/writes the record store
//
// SegmentService takes repository interfaces, never a concrete store, so
// the same logic runs on SQLite, PostgreSQL or the in-memory store.
// It returns apperror values; handlers map them to HTTP status codes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/filter"
	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/repository"
)

const (
	MaxSegmentNameLength        = 100
	MaxSegmentDescriptionLength = 1000
)

// SegmentService answers user segment queries and manages saved segments.
type SegmentService struct {
	users    repository.UserRepository
	segments repository.SegmentRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewSegmentService creates a SegmentService. Filters are evaluated against
// the wall clock; use WithClock to pin the evaluation time.
func NewSegmentService(users repository.UserRepository, segments repository.SegmentRepository, logger *slog.Logger) *SegmentService {
	return &SegmentService{
		users:    users,
		segments: segments,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used as "now" when compiling filters.
func (s *SegmentService) WithClock(now func() time.Time) *SegmentService {
	s.now = now
	return s
}

// CreateSegment validates and saves a new segment.
//
// Filters must be present and a JSON object. They are stored verbatim and
// NOT checked against the user schema: a segment is a saved query that is
// compiled each time it is used.
func (s *SegmentService) CreateSegment(ctx context.Context, name, description string, filters json.RawMessage) (*model.Segment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.MissingField("name")
	}
	if len(name) > MaxSegmentNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("segment name must be %d characters or less", MaxSegmentNameLength))
	}

	if !filter.Raw(filters).Truthy() {
		return nil, apperror.MissingField("filters")
	}
	if !isJSONObject(filters) {
		return nil, apperror.ValidationFailed("filters", "filters must be a JSON object")
	}

	description = strings.TrimSpace(description)
	if len(description) > MaxSegmentDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxSegmentDescriptionLength))
	}

	segment := &model.Segment{
		Name:        name,
		Description: description,
		Filters:     filters,
	}

	if err := s.segments.Save(ctx, segment); err != nil {
		return nil, s.storeError("saving segment", err)
	}

	s.logger.Info("segment created",
		slog.String("id", segment.ID),
		slog.String("name", segment.Name),
	)

	return segment, nil
}

// ListSegments returns every saved segment, newest first.
func (s *SegmentService) ListSegments(ctx context.Context) ([]model.Segment, error) {
	segments, err := s.segments.List(ctx)
	if err != nil {
		return nil, s.storeError("listing segments", err)
	}
	return segments, nil
}

// GetSegment returns one saved segment.
// Returns apperror.ErrNotFound if the segment doesn't exist.
func (s *SegmentService) GetSegment(ctx context.Context, id string) (*model.Segment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.MissingField("id")
	}

	segment, err := s.segments.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError("getting segment", err)
	}
	return segment, nil
}

// SegmentUsers loads a saved segment and returns the users matching its
// filters right now. The filters are re-compiled on every call.
func (s *SegmentService) SegmentUsers(ctx context.Context, id string) ([]model.User, error) {
	segment, err := s.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.QueryUsers(ctx, segment.Filters)
}

// storeError passes application errors (NotFound, validation) through and
// turns anything else into a logged StoreOperationFailed.
func (s *SegmentService) storeError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("store operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return apperror.StoreFailed(op, err)
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
