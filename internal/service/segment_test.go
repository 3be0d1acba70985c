package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
	"github.com/sakif/user-segments/internal/repository/memory"
	"github.com/sakif/user-segments/internal/seed"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var evalTime = time.Date(2024, 3, 22, 12, 0, 0, 0, time.UTC)

// failingStore simulates a store whose every operation fails.
type failingStore struct {
	err   error
	calls int
}

func (f *failingStore) InsertMany(context.Context, []*model.User) error { f.calls++; return f.err }
func (f *failingStore) Count(context.Context) (int, error)               { f.calls++; return 0, f.err }
func (f *failingStore) Find(context.Context, query.Predicate) ([]model.User, error) {
	f.calls++
	return nil, f.err
}
func (f *failingStore) Save(context.Context, *model.Segment) error { f.calls++; return f.err }
func (f *failingStore) GetByID(context.Context, string) (*model.Segment, error) {
	f.calls++
	return nil, f.err
}
func (f *failingStore) List(context.Context) ([]model.Segment, error) { f.calls++; return nil, f.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestService returns a service over a memory store holding the sample
// users, with the clock pinned to evalTime.
func newTestService(t *testing.T) (*SegmentService, *memory.Store) {
	t.Helper()
	store := memory.New()
	_, err := seed.Users(context.Background(), store, testLogger())
	require.NoError(t, err)

	svc := NewSegmentService(store, store, testLogger()).
		WithClock(func() time.Time { return evalTime })
	return svc, store
}

func userNames(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}

// =========================================================================
// QUERY USERS
// =========================================================================

func TestQueryUsers_AgeRangeEndToEnd(t *testing.T) {
	svc, _ := newTestService(t)

	users, err := svc.QueryUsers(context.Background(), json.RawMessage(`{"ageRange":{"min":25,"max":30}}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Anna Lee", "Jane Smith", "John Doe"}, userNames(users))
	for _, u := range users {
		assert.True(t, u.Age >= 25 && u.Age <= 30, "age %d out of range", u.Age)
	}
}

func TestQueryUsers_AbsentFiltersMatchEverything(t *testing.T) {
	svc, _ := newTestService(t)

	for _, raw := range []string{``, `null`, `{}`} {
		users, err := svc.QueryUsers(context.Background(), json.RawMessage(raw))
		require.NoError(t, err)
		assert.Len(t, users, 5, "filters %q", raw)
	}
}

func TestQueryUsers_ActiveWindowUsesServiceClock(t *testing.T) {
	svc, _ := newTestService(t)
	raw := json.RawMessage(`{"activeInLastDays":1}`)

	users, err := svc.QueryUsers(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna Lee"}, userNames(users))

	svc.WithClock(func() time.Time { return evalTime.AddDate(0, 0, 10) })
	users, err = svc.QueryUsers(context.Background(), raw)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestQueryUsers_InvalidFilterNeverReachesStore(t *testing.T) {
	store := &failingStore{err: errors.New("should not be called")}
	svc := NewSegmentService(store, store, testLogger())

	_, err := svc.QueryUsers(context.Background(), json.RawMessage(`{"logins":"lots"}`))

	assert.True(t, errors.Is(err, apperror.ErrInvalidFilterValue), "error = %v", err)
	assert.Equal(t, 0, store.calls)
}

func TestQueryUsers_StoreFailure(t *testing.T) {
	cause := errors.New("sqlite: disk I/O error")
	store := &failingStore{err: cause}
	svc := NewSegmentService(store, store, testLogger())

	_, err := svc.QueryUsers(context.Background(), json.RawMessage(`{}`))

	assert.True(t, errors.Is(err, apperror.ErrStoreFailure), "error = %v", err)
	assert.True(t, errors.Is(err, cause), "cause should stay in the chain")
	assert.Equal(t, "error filtering users", err.Error())
}

// =========================================================================
// CREATE / LIST SEGMENTS
// =========================================================================

func TestCreateSegment_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSegment(context.Background(), "VIPs", "", json.RawMessage(`{"logins":10}`))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	segments, err := svc.ListSegments(context.Background())
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "VIPs", segments[0].Name)
	assert.JSONEq(t, `{"logins":10}`, string(segments[0].Filters))
	assert.Equal(t, created.ID, segments[0].ID)
}

func TestCreateSegment_TrimsWhitespace(t *testing.T) {
	svc, _ := newTestService(t)

	seg, err := svc.CreateSegment(context.Background(), "  spaced  ", "  desc  ", json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "spaced", seg.Name)
	assert.Equal(t, "desc", seg.Description)
}

func TestCreateSegment_MissingFields(t *testing.T) {
	tests := []struct {
		name      string
		segName   string
		filters   string
		wantField string
	}{
		{"empty name", "", `{"logins":10}`, "name"},
		{"whitespace name", "   ", `{"logins":10}`, "name"},
		{"absent filters", "VIPs", ``, "filters"},
		{"null filters", "VIPs", `null`, "filters"},
		{"empty string filters", "VIPs", `""`, "filters"},
		{"false filters", "VIPs", `false`, "filters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)

			_, err := svc.CreateSegment(context.Background(), tt.segName, "", json.RawMessage(tt.filters))

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrMissingField), "error = %v", err)
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)

			segments, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, segments, "nothing should be saved")
		})
	}
}

func TestCreateSegment_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		segName string
		desc    string
		filters string
	}{
		{"filters is an array", "VIPs", "", `[1,2]`},
		{"filters is a string", "VIPs", "", `"logins>10"`},
		{"name too long", strings.Repeat("a", MaxSegmentNameLength+1), "", `{}`},
		{"description too long", "VIPs", strings.Repeat("d", MaxSegmentDescriptionLength+1), `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)

			_, err := svc.CreateSegment(context.Background(), tt.segName, tt.desc, json.RawMessage(tt.filters))
			assert.True(t, errors.Is(err, apperror.ErrValidation), "error = %v", err)
		})
	}
}

func TestCreateSegment_FiltersAreNotValidatedAtSaveTime(t *testing.T) {
	svc, _ := newTestService(t)

	seg, err := svc.CreateSegment(context.Background(), "future", "", json.RawMessage(`{"ageRange":{"min":"abc"},"shoeSize":44}`))
	require.NoError(t, err)

	_, err = svc.SegmentUsers(context.Background(), seg.ID)
	assert.True(t, errors.Is(err, apperror.ErrInvalidFilterValue), "error = %v", err)
}

func TestCreateSegment_StoreFailure(t *testing.T) {
	store := &failingStore{err: errors.New("connection reset")}
	svc := NewSegmentService(store, store, testLogger())

	_, err := svc.CreateSegment(context.Background(), "VIPs", "", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, apperror.ErrStoreFailure), "error = %v", err)
}

func TestListSegments_NewestFirst(t *testing.T) {
	svc, _ := newTestService(t)

	for _, name := range []string{"first", "second", "third"} {
		_, err := svc.CreateSegment(context.Background(), name, "", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	segments, err := svc.ListSegments(context.Background())
	require.NoError(t, err)

	var got []string
	for _, s := range segments {
		got = append(got, s.Name)
	}
	assert.Equal(t, []string{"third", "second", "first"}, got)
}

// =========================================================================
// SAVED SEGMENT USERS
// =========================================================================

func TestSegmentUsers_RecompilesSavedFilters(t *testing.T) {
	svc, _ := newTestService(t)

	seg, err := svc.CreateSegment(context.Background(), "heavy", "", json.RawMessage(`{"logins":10}`))
	require.NoError(t, err)

	users, err := svc.SegmentUsers(context.Background(), seg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mike Brown", "Jane Smith"}, userNames(users))
}

func TestSegmentUsers_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SegmentUsers(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "error = %v", err)
}

func TestGetSegment_EmptyID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetSegment(context.Background(), "  ")
	assert.True(t, errors.Is(err, apperror.ErrMissingField), "error = %v", err)
}
