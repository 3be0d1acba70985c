package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sakif/user-segments/internal/filter"
	"github.com/sakif/user-segments/internal/model"
)

// QueryUsers compiles a raw filter payload and returns the matching users,
// newest created first.
//
// Relative filters (activeInLastDays) are evaluated at the service clock's
// "now", so the same payload can select different users on different days.
// A payload that cannot be coerced fails with apperror.ErrInvalidFilterValue
// before the store is touched.
func (s *SegmentService) QueryUsers(ctx context.Context, rawFilters json.RawMessage) ([]model.User, error) {
	spec, err := filter.Parse(rawFilters)
	if err != nil {
		return nil, err
	}

	predicate, err := filter.Compile(spec, s.now())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	users, err := s.users.Find(ctx, predicate)
	if err != nil {
		return nil, s.storeError("filtering users", err)
	}

	s.logger.Debug("users queried",
		slog.String("predicate", predicate.String()),
		slog.Int("matches", len(users)),
		slog.Duration("duration", time.Since(start)),
	)

	return users, nil
}
