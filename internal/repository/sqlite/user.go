package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/user-segments/internal/model"
	"github.com/sakif/user-segments/internal/query"
)

const userColumns = `id, name, age, gender, country, device_type, last_login,
	registration_date, active_in_last_days, logins, click_rate,
	subscription_status, purchase_value, created_at, updated_at`

// InsertMany inserts all users in one transaction: either every user is
// stored or none is.
//
// Each user gets its own xid and creation time. xids issued by one process
// sort in issue order, so "created_at DESC, id DESC" is a stable newest-first
// order even when two inserts share a timestamp.
func (db *DB) InsertMany(ctx context.Context, users []*model.User) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning insert: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: preparing user insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if err := u.Validate(); err != nil {
			return err
		}
		now := time.Now().UTC()
		u.ApplyDefaults(now)
		u.ID = xid.New().String()
		u.CreatedAt = now
		u.UpdatedAt = now

		var lastLogin sql.NullTime
		if u.LastLogin != nil {
			lastLogin = sql.NullTime{Time: u.LastLogin.UTC(), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			u.ID,
			u.Name,
			u.Age,
			u.Gender,
			u.Country,
			u.DeviceType,
			lastLogin,
			u.RegistrationDate.UTC(),
			u.ActiveInLastDays,
			u.Logins,
			u.ClickRate,
			u.SubscriptionStatus,
			u.PurchaseValue,
			u.CreatedAt,
			u.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user %q: %w", u.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing users: %w", err)
	}
	return nil
}

// Count returns the number of stored users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
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

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var (
			u         model.User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(
			&u.ID, &u.Name, &u.Age, &u.Gender, &u.Country, &u.DeviceType,
			&lastLogin, &u.RegistrationDate, &u.ActiveInLastDays, &u.Logins,
			&u.ClickRate, &u.SubscriptionStatus, &u.PurchaseValue,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}
