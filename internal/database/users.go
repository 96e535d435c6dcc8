package database

import (
	"context"
	"fmt"
	"time"

	"todone/internal/models"
)

// CreateOrUpdateUser writes a user mirror record.
func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	query := `
        INSERT INTO users (id, email, name, avatar_url, time_zone, last_activity, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email = excluded.email,
            name = excluded.name,
            avatar_url = excluded.avatar_url,
            time_zone = excluded.time_zone,
            last_activity = excluded.last_activity,
            updated_at = excluded.updated_at
    `

	_, err := db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.AvatarURL, user.TimeZone, user.LastActivity, user.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUserByID returns a user mirror by id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, avatar_url, time_zone, last_activity, created_at, updated_at
              FROM users WHERE id = ?`

	var user models.User
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.TimeZone, &user.LastActivity, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllUsers returns all user mirrors.
func (db *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, email, name, avatar_url, time_zone, last_activity, created_at, updated_at
              FROM users ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.AvatarURL, &user.TimeZone, &user.LastActivity, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserActivity обновляет время последней активности
func (db *DB) UpdateUserActivity(ctx context.Context, id string) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `UPDATE users SET last_activity = ?, updated_at = ? WHERE id = ?`, now, now, id)
	return err
}
