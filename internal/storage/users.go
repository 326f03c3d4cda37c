package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// User is the slice of the account model the pipeline needs: enough to
// find the administrator that imported posts are attributed to.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      string
	CreatedAt time.Time
}

// FindFirstAdmin returns the first account with the admin role, or
// (nil, nil) when none exists.
func (db *DB) FindFirstAdmin(ctx context.Context) (*User, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, email, name, role, created_at
		FROM users
		WHERE role = 'admin'
		ORDER BY created_at
		LIMIT 1`)

	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("find admin user: %w", err)
	}

	return &u, nil
}
