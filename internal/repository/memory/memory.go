// Package memory is an in-process record store. Predicates are evaluated
// with query.Predicate.Match: inclusive bounds, exact equality and Unicode
// case-folded literal substrings, the same answers the SQL stores give.
// The shared storetest cases hold every store to that. It backs the service
// and handler tests and STORE_DRIVER=memory for local experiments.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
	"github.com/sakif/user-segments/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store keeps users and segments in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    []model.User
	segments []model.Segment

	// now stamps created and updated times.
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) InsertMany(_ context.Context, users []*model.User) error {
	for _, u := range users {
		if err := u.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		now := s.now().UTC()
		u.ApplyDefaults(now)
		u.ID = xid.New().String()
		u.CreatedAt = now
		u.UpdatedAt = now
		s.users = append(s.users, cloneUser(*u))
	}
	return nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) Find(_ context.Context, p query.Predicate) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.User{}
	for i := range s.users {
		if p.Match(&s.users[i]) {
			out = append(out, cloneUser(s.users[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (s *Store) Save(_ context.Context, segment *model.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	segment.ID = xid.New().String()
	segment.CreatedAt = now
	segment.UpdatedAt = now

	s.segments = append(s.segments, cloneSegment(*segment))
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, seg := range s.segments {
		if seg.ID == id {
			out := cloneSegment(seg)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("segment", id)
}

func (s *Store) List(context.Context) ([]model.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Segment, len(s.segments))
	for i, seg := range s.segments {
		out[i] = cloneSegment(seg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Records are immutable once stored. Everything crossing the store boundary
// is copied, including the memory behind pointers and slices, so callers
// can never reach a stored record.

func cloneUser(u model.User) model.User {
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func cloneSegment(seg model.Segment) model.Segment {
	seg.Filters = append(json.RawMessage(nil), seg.Filters...)
	return seg
}

// newer orders by creation time descending, then id descending.
func newer(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}
