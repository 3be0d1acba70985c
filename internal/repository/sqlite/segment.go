package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/model"
)

// Save inserts a new segment. Filters are stored as the exact JSON text the
// caller supplied.
func (db *DB) Save(ctx context.Context, segment *model.Segment) error {
	now := time.Now().UTC()
	segment.ID = xid.New().String()
	segment.CreatedAt = now
	segment.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO segments (id, name, description, filters, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		segment.ID,
		segment.Name,
		segment.Description,
		string(segment.Filters),
		segment.CreatedAt,
		segment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving segment: %w", err)
	}
	return nil
}

// GetByID retrieves a single segment.
// Returns apperror.ErrNotFound if no segment has that id.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Segment, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, filters, created_at, updated_at
		 FROM segments
		 WHERE id = ?`,
		id,
	)

	s, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("segment", id)
		}
		return nil, fmt.Errorf("sqlite: getting segment %s: %w", id, err)
	}
	return &s, nil
}

// List returns all segments, newest first.
func (db *DB) List(ctx context.Context) ([]model.Segment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, filters, created_at, updated_at
		 FROM segments
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing segments: %w", err)
	}
	defer rows.Close()

	segments := []model.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning segment row: %w", err)
		}
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating segments: %w", err)
	}

	return segments, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSegment(sc scanner) (model.Segment, error) {
	var (
		s       model.Segment
		filters string
	)
	if err := sc.Scan(&s.ID, &s.Name, &s.Description, &filters, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return model.Segment{}, err
	}
	s.Filters = json.RawMessage(filters)
	return s, nil
}
