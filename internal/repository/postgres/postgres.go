// Package postgres implements the repository interfaces on PostgreSQL using
// a pgx connection pool. Selected with STORE_DRIVER=postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/user-segments/internal/apperror"
	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
	"github.com/sakif/user-segments/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB is a record store backed by a pgx pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and creates the
// tables if needed.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id                  VARCHAR(20) PRIMARY KEY,
			name                TEXT NOT NULL,
			age                 INTEGER NOT NULL,
			gender              TEXT NOT NULL,
			country             TEXT NOT NULL DEFAULT '',
			device_type         TEXT NOT NULL DEFAULT ''
				CHECK (device_type IN ('mobile', 'desktop', 'tablet', '')),
			last_login          TIMESTAMP WITH TIME ZONE,
			registration_date   TIMESTAMP WITH TIME ZONE NOT NULL,
			active_in_last_days INTEGER NOT NULL DEFAULT 0,
			logins              INTEGER NOT NULL DEFAULT 0,
			click_rate          DOUBLE PRECISION NOT NULL DEFAULT 0,
			subscription_status TEXT NOT NULL DEFAULT ''
				CHECK (subscription_status IN ('active', 'inactive', 'trial', '')),
			purchase_value      DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at          TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at          TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at DESC);

		CREATE TABLE IF NOT EXISTS segments (
			id          VARCHAR(20) PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			filters     JSONB NOT NULL,
			created_at  TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at  TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_segments_created_at ON segments(created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

const userColumns = `id, name, age, gender, country, device_type, last_login,
	registration_date, active_in_last_days, logins, click_rate,
	subscription_status, purchase_value, created_at, updated_at`

// InsertMany copies all users in one transaction.
func (db *DB) InsertMany(ctx context.Context, users []*model.User) error {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		if err := u.Validate(); err != nil {
			return err
		}
		now := time.Now().UTC()
		u.ApplyDefaults(now)
		u.ID = xid.New().String()
		u.CreatedAt = now
		u.UpdatedAt = now

		rows = append(rows, []any{
			u.ID, u.Name, u.Age, u.Gender, u.Country, u.DeviceType, u.LastLogin,
			u.RegistrationDate, u.ActiveInLastDays, u.Logins, u.ClickRate,
			u.SubscriptionStatus, u.PurchaseValue, u.CreatedAt, u.UpdatedAt,
		})
	}

	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"users"},
			[]string{
				"id", "name", "age", "gender", "country", "device_type", "last_login",
				"registration_date", "active_in_last_days", "logins", "click_rate",
				"subscription_status", "purchase_value", "created_at", "updated_at",
			},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: inserting users: %w", err)
	}
	return nil
}

// Count returns the number of stored users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting users: %w", err)
	}
	return n, nil
}

// Find returns the users matching p, newest created first.
func (db *DB) Find(ctx context.Context, p query.Predicate) ([]model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	where, args := p.Where(dialect{})
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: finding users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Age, &u.Gender, &u.Country, &u.DeviceType,
			&u.LastLogin, &u.RegistrationDate, &u.ActiveInLastDays, &u.Logins,
			&u.ClickRate, &u.SubscriptionStatus, &u.PurchaseValue,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}
	return users, nil
}

// Save inserts a new segment.
func (db *DB) Save(ctx context.Context, segment *model.Segment) error {
	now := time.Now().UTC()
	segment.ID = xid.New().String()
	segment.CreatedAt = now
	segment.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO segments (id, name, description, filters, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		segment.ID,
		segment.Name,
		segment.Description,
		string(segment.Filters),
		segment.CreatedAt,
		segment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: saving segment: %w", err)
	}
	return nil
}

// GetByID retrieves one segment, or apperror.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Segment, error) {
	var (
		s       model.Segment
		filters string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, description, filters::text, created_at, updated_at
		 FROM segments WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Description, &filters, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("segment", id)
		}
		return nil, fmt.Errorf("postgres: getting segment %s: %w", id, err)
	}
	s.Filters = []byte(filters)
	return &s, nil
}

// List returns every segment, newest first.
func (db *DB) List(ctx context.Context) ([]model.Segment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, description, filters::text, created_at, updated_at
		 FROM segments
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing segments: %w", err)
	}
	defer rows.Close()

	segments := []model.Segment{}
	for rows.Next() {
		var (
			s       model.Segment
			filters string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &filters, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning segment row: %w", err)
		}
		s.Filters = []byte(filters)
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating segments: %w", err)
	}
	return segments, nil
}

// dialect renders query predicates for PostgreSQL. Numbers are cast to
// float8 so a fractional bound compares against an integer column, and times
// to timestamptz.
type dialect struct{}

func (dialect) Placeholder(n int, v any) string {
	ph := "$" + strconv.Itoa(n)
	switch v.(type) {
	case float64:
		return ph + "::float8"
	case time.Time:
		return ph + "::timestamptz"
	}
	return ph
}

func (dialect) ContainsFold(column, placeholder string) string {
	return column + " ILIKE " + placeholder + ` ESCAPE '\'`
}
