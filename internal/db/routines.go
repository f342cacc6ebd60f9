package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shalteor/frequency127/internal/models"
)

// RoutineUpdate holds the fields of a partial routine update. Nil fields are
// left unchanged.
type RoutineUpdate struct {
	Name  *string
	Steps *[]models.Step
}

func encodeSteps(steps []models.Step) (string, error) {
	if steps == nil {
		steps = []models.Step{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to encode steps: %w", err)
	}
	return string(b), nil
}

// decodeSteps parses stored steps. Unreadable data decodes to no steps so a
// single bad row cannot break a listing.
func decodeSteps(raw string) []models.Step {
	var steps []models.Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil || steps == nil {
		return []models.Step{}
	}
	return steps
}

func scanRoutine(row rowScanner) (*models.Routine, error) {
	var (
		routine   models.Routine
		steps     string
		createdAt int64
	)
	if err := row.Scan(&routine.ID, &routine.UserID, &routine.Name, &steps, &createdAt); err != nil {
		return nil, err
	}
	routine.Steps = decodeSteps(steps)
	routine.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &routine, nil
}

// CreateRoutine inserts a new routine
func (db *DB) CreateRoutine(ctx context.Context, routine *models.Routine) error {
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = time.Now().UTC()
	}
	if routine.Steps == nil {
		routine.Steps = []models.Step{}
	}

	steps, err := encodeSteps(routine.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO routines (id, user_id, name, steps, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = db.execContext(ctx, query,
		routine.ID, routine.UserID, routine.Name, steps, routine.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create routine: %w", err)
	}

	return nil
}

// GetRoutine retrieves a routine owned by userID
func (db *DB) GetRoutine(ctx context.Context, userID, routineID string) (*models.Routine, error) {
	query := `
		SELECT id, user_id, name, steps, created_at
		FROM routines
		WHERE user_id = ? AND id = ?
	`

	routine, err := scanRoutine(db.queryRowContext(ctx, query, userID, routineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}

	return routine, nil
}

// ListRoutines retrieves all routines of a user, newest first
func (db *DB) ListRoutines(ctx context.Context, userID string) ([]*models.Routine, error) {
	query := `
		SELECT id, user_id, name, steps, created_at
		FROM routines
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`

	rows, err := db.queryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	defer rows.Close()

	routines := []*models.Routine{}
	for rows.Next() {
		routine, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		routines = append(routines, routine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return routines, nil
}

// UpdateRoutine applies update to a routine owned by userID and returns the
// stored routine. Only the columns named by update are written.
func (db *DB) UpdateRoutine(ctx context.Context, userID, routineID string, update RoutineUpdate) (*models.Routine, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		sets []string
		args []interface{}
	)
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Steps != nil {
		steps, err := encodeSteps(*update.Steps)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "steps = ?")
		args = append(args, steps)
	}

	if len(sets) > 0 {
		query := `UPDATE routines SET ` + strings.Join(sets, ", ") + ` WHERE user_id = ? AND id = ?`
		args = append(args, userID, routineID)

		result, err := tx.ExecContext(ctx, db.rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update routine: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return nil, ErrRoutineNotFound
		}
	}

	query := `
		SELECT id, user_id, name, steps, created_at
		FROM routines
		WHERE user_id = ? AND id = ?
	`
	routine, err := scanRoutine(tx.QueryRowContext(ctx, db.rebind(query), userID, routineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return routine, nil
}

// DeleteRoutine performs a hard delete of a routine and its completions
func (db *DB) DeleteRoutine(ctx context.Context, userID, routineID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		db.rebind(`DELETE FROM routines WHERE user_id = ? AND id = ?`), userID, routineID)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrRoutineNotFound
	}

	// Completions cascade with foreign keys on; clear them explicitly for
	// connections where the pragma is not in effect
	_, err = tx.ExecContext(ctx,
		db.rebind(`DELETE FROM routine_completions WHERE user_id = ? AND routine_id = ?`), userID, routineID)
	if err != nil {
		return fmt.Errorf("failed to delete completions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRoutineNames returns the names of a user's routines, newest first
func (db *DB) ListRoutineNames(ctx context.Context, userID string) ([]string, error) {
	routines, err := db.ListRoutines(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(routines))
	for _, r := range routines {
		names = append(names, r.Name)
	}
	return names, nil
}
