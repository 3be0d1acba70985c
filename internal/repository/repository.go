// Package repository declares the record store contracts. Implementations
// live in the sqlite, postgres and memory subpackages; the service layer
// depends only on these interfaces.
package repository

import (
	"context"

	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
)

// UserRepository stores user records. Users are inserted once (bootstrap
// seeding) and read-only afterwards.
type UserRepository interface {
	// InsertMany assigns ids and timestamps and inserts all users, or none.
	InsertMany(ctx context.Context, users []*model.User) error
	Count(ctx context.Context) (int, error)
	// Find returns every user matching p, newest created first.
	Find(ctx context.Context, p query.Predicate) ([]model.User, error)
}

// SegmentRepository stores segment definitions. Segments are immutable once
// saved, so there is no update or delete.
type SegmentRepository interface {
	// Save assigns the id and timestamps and inserts the segment.
	Save(ctx context.Context, segment *model.Segment) error
	GetByID(ctx context.Context, id string) (*model.Segment, error)
	// List returns every segment, newest created first.
	List(ctx context.Context) ([]model.Segment, error)
}

// Store is a complete record store handle.
type Store interface {
	UserRepository
	SegmentRepository
	Ping(ctx context.Context) error
	Close() error
}
