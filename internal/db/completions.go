package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shalteor/frequency127/internal/models"
)

// HasCompletion reports whether userID already completed routineID on day
func (db *DB) HasCompletion(ctx context.Context, userID, routineID, day string) (bool, error) {
	query := `
		SELECT 1 FROM routine_completions
		WHERE user_id = ? AND routine_id = ? AND day = ?
	`

	var one int
	err := db.queryRowContext(ctx, query, userID, routineID, day).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check completion: %w", err)
	}

	return true, nil
}

// RecordCompletion stores a completion and, if it is the first one for its
// user, routine and day, awards its XP and advances the user's streak. The
// returned result carries the user's totals after the call.
func (db *DB) RecordCompletion(ctx context.Context, completion *models.Completion) (*models.CompletionResult, error) {
	if completion.CreatedAt.IsZero() {
		completion.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		xp      int64
		streak  int64
		lastDay sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		db.rebind(`SELECT xp, streak, last_completed_day FROM users WHERE id = ?`+db.forUpdate()),
		completion.UserID,
	).Scan(&xp, &streak, &lastDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user totals: %w", err)
	}

	insert := `
		INSERT INTO routine_completions (id, routine_id, user_id, day, xp_awarded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, routine_id, day) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, db.rebind(insert),
		completion.ID, completion.RoutineID, completion.UserID, completion.Day,
		completion.XPAwarded, completion.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert completion: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if inserted == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &models.CompletionResult{
			Day:              completion.Day,
			AlreadyCompleted: true,
			XP:               xp,
			Streak:           streak,
		}, nil
	}

	var last *string
	if lastDay.Valid {
		last = &lastDay.String
	}
	newStreak := models.NextStreak(streak, last, completion.Day)
	newLast := completion.Day
	// A completion recorded for an earlier day than the stored one keeps the
	// later day and streak
	if last != nil && *last > completion.Day {
		newStreak = streak
		newLast = *last
	}

	_, err = tx.ExecContext(ctx,
		db.rebind(`UPDATE users SET xp = xp + ?, streak = ?, last_completed_day = ? WHERE id = ?`),
		completion.XPAwarded, newStreak, newLast, completion.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.CompletionResult{
		Day:       completion.Day,
		XPAwarded: completion.XPAwarded,
		XP:        xp + completion.XPAwarded,
		Streak:    newStreak,
	}, nil
}

// ListCompletions returns the most recent completions of a routine, newest
// first
func (db *DB) ListCompletions(ctx context.Context, userID, routineID string, limit int) ([]*models.Completion, error) {
	query := `
		SELECT id, routine_id, user_id, day, xp_awarded, created_at
		FROM routine_completions
		WHERE user_id = ? AND routine_id = ?
		ORDER BY day DESC, created_at DESC
		LIMIT ?
	`

	rows, err := db.queryContext(ctx, query, userID, routineID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	completions := []*models.Completion{}
	for rows.Next() {
		var (
			c         models.Completion
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.RoutineID, &c.UserID, &c.Day, &c.XPAwarded, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		completions = append(completions, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return completions, nil
}
