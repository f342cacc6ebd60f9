package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shalteor/frequency127/internal/models"
)

const userColumns = `id, username, salt, passhash, xp, streak, share_token, last_completed_day, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		shareToken sql.NullString
		lastDay    sql.NullString
		createdAt  int64
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.Salt, &user.PassHash,
		&user.XP, &user.Streak, &shareToken, &lastDay, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if shareToken.Valid {
		user.ShareToken = &shareToken.String
	}
	if lastDay.Valid {
		user.LastCompletedDay = &lastDay.String
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &user, nil
}

// CreateUser inserts a new user into the database
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO users (id, username, salt, passhash, xp, streak, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.execContext(ctx, query,
		user.ID, user.Username, user.Salt, user.PassHash,
		user.XP, user.Streak, user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, "username", username)
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return db.getUser(ctx, "id", userID)
}

// GetUserByShareToken retrieves the user that owns a share token
func (db *DB) GetUserByShareToken(ctx context.Context, token string) (*models.User, error) {
	return db.getUser(ctx, "share_token", token)
}

func (db *DB) getUser(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	user, err := scanUser(db.queryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdatePassHash replaces a user's salt and passcode hash
func (db *DB) UpdatePassHash(ctx context.Context, userID, salt, passHash string) error {
	query := `UPDATE users SET salt = ?, passhash = ? WHERE id = ?`

	result, err := db.execContext(ctx, query, salt, passHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update passcode hash: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// EnsureShareToken sets the user's share token to candidate if the user has
// none yet and returns the token now stored
func (db *DB) EnsureShareToken(ctx context.Context, userID, candidate string) (string, error) {
	query := `UPDATE users SET share_token = ? WHERE id = ? AND share_token IS NULL`

	if _, err := db.execContext(ctx, query, candidate, userID); err != nil {
		return "", fmt.Errorf("failed to set share token: %w", err)
	}

	var token sql.NullString
	err := db.queryRowContext(ctx, `SELECT share_token FROM users WHERE id = ?`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get share token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("share token not stored for user %s", userID)
	}

	return token.String, nil
}

// ListRecentUsernames returns the usernames of the most recently created
// users, newest first
func (db *DB) ListRecentUsernames(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT username
		FROM users
		ORDER BY created_at DESC, username ASC
		LIMIT ?
	`

	rows, err := db.queryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	usernames := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		usernames = append(usernames, username)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return usernames, nil
}
