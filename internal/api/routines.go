package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shalteor/frequency127/internal/db"
	"github.com/shalteor/frequency127/internal/middleware"
	"github.com/shalteor/frequency127/internal/models"
)

const completionHistoryLimit = 30

// RoutineRequest is the body of routine create and update. Steps are kept
// raw so malformed entries can be dropped individually.
type RoutineRequest struct {
	Name  *string            `json:"name"`
	Steps *[]json.RawMessage `json:"steps"`
}

// RoutinesResponse lists routines
type RoutinesResponse struct {
	Routines []*models.Routine `json:"routines"`
}

// CreateRoutineResponse is returned when a routine is created
type CreateRoutineResponse struct {
	OK      bool            `json:"ok"`
	ID      string          `json:"id"`
	Routine *models.Routine `json:"routine"`
}

// CompleteResponse is returned by POST /routines/{id}/complete
type CompleteResponse struct {
	OK bool `json:"ok"`
	models.CompletionResult
}

// CompletionsResponse lists a routine's completions
type CompletionsResponse struct {
	Completions []*models.Completion `json:"completions"`
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// normalizeName trims and truncates a routine name
func normalizeName(name string) string {
	return truncateRunes(strings.TrimSpace(name), models.MaxRoutineNameLen)
}

// stepValue converts a decoded JSON scalar to its string form. Objects and
// arrays are not scalars.
func stepValue(v interface{}) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// normalizeSteps keeps at most MaxSteps entries and truncates type and text.
// Scalar types and texts are stored in their string form. Entries that are
// not objects, or whose type is missing, empty, zero, false or non-scalar,
// are dropped.
func normalizeSteps(raw []json.RawMessage) []models.Step {
	if len(raw) > models.MaxSteps {
		raw = raw[:models.MaxSteps]
	}

	steps := make([]models.Step, 0, len(raw))
	for _, entry := range raw {
		var fields struct {
			Type interface{} `json:"type"`
			Text interface{} `json:"text"`
		}
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}
		switch fields.Type {
		case false, float64(0):
			continue
		}

		stepType, ok := stepValue(fields.Type)
		if !ok {
			continue
		}
		stepType = strings.TrimSpace(stepType)
		if stepType == "" {
			continue
		}
		text, ok := stepValue(fields.Text)
		if !ok {
			text = ""
		}

		steps = append(steps, models.Step{
			Type: truncateRunes(stepType, models.MaxStepTypeLen),
			Text: truncateRunes(text, models.MaxStepTextLen),
		})
	}
	return steps
}

// ListRoutines handles GET /routines
func (s *Server) ListRoutines(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	routines, err := s.db.ListRoutines(r.Context(), userID)
	if err != nil {
		respondInternalError(w, r, "failed to list routines", err)
		return
	}

	respondJSON(w, http.StatusOK, RoutinesResponse{Routines: routines})
}

// CreateRoutine handles POST /routines
func (s *Server) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RoutineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := ""
	if req.Name != nil {
		name = normalizeName(*req.Name)
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, "Name required")
		return
	}

	steps := []models.Step{}
	if req.Steps != nil {
		steps = normalizeSteps(*req.Steps)
	}

	routine := &models.Routine{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Steps:     steps,
		CreatedAt: s.now().UTC(),
	}

	if err := s.db.CreateRoutine(r.Context(), routine); err != nil {
		respondInternalError(w, r, "failed to create routine", err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateRoutineResponse{
		OK:      true,
		ID:      routine.ID,
		Routine: routine,
	})
}

// GetRoutine handles GET /routines/{id}
func (s *Server) GetRoutine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	routine, err := s.db.GetRoutine(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrRoutineNotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to get routine", err)
		return
	}

	respondJSON(w, http.StatusOK, routine)
}

// UpdateRoutine handles PUT and PATCH /routines/{id}
func (s *Server) UpdateRoutine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req RoutineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == nil && req.Steps == nil {
		respondError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	var update db.RoutineUpdate
	if req.Name != nil {
		name := normalizeName(*req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, "Name required")
			return
		}
		update.Name = &name
	}
	if req.Steps != nil {
		steps := normalizeSteps(*req.Steps)
		update.Steps = &steps
	}

	routine, err := s.db.UpdateRoutine(r.Context(), userID, chi.URLParam(r, "id"), update)
	if errors.Is(err, db.ErrRoutineNotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to update routine", err)
		return
	}

	respondJSON(w, http.StatusOK, routine)
}

// DeleteRoutine handles DELETE /routines/{id}
func (s *Server) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	err = s.db.DeleteRoutine(r.Context(), userID, chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrRoutineNotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to delete routine", err)
		return
	}

	respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

// CompleteRoutine handles POST /routines/{id}/complete
func (s *Server) CompleteRoutine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	ctx := r.Context()
	routineID := chi.URLParam(r, "id")

	if _, err := s.db.GetRoutine(ctx, userID, routineID); err != nil {
		if errors.Is(err, db.ErrRoutineNotFound) {
			respondError(w, http.StatusNotFound, "Not found")
			return
		}
		respondInternalError(w, r, "failed to get routine", err)
		return
	}

	now := s.now()
	day := models.DayKey(now, s.location)

	done, err := s.db.HasCompletion(ctx, userID, routineID, day)
	if err != nil {
		respondInternalError(w, r, "failed to check completion", err)
		return
	}
	if done {
		user, err := s.db.GetUserByID(ctx, userID)
		if err != nil {
			respondInternalError(w, r, "failed to get user", err)
			return
		}
		respondJSON(w, http.StatusOK, CompleteResponse{
			OK: true,
			CompletionResult: models.CompletionResult{
				Day:              day,
				AlreadyCompleted: true,
				XP:               user.XP,
				Streak:           user.Streak,
			},
		})
		return
	}

	result, err := s.db.RecordCompletion(ctx, &models.Completion{
		ID:        uuid.New().String(),
		RoutineID: routineID,
		UserID:    userID,
		Day:       day,
		XPAwarded: models.XPPerCompletion,
		CreatedAt: now.UTC(),
	})
	if errors.Is(err, db.ErrUserNotFound) {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to record completion", err)
		return
	}

	respondJSON(w, http.StatusOK, CompleteResponse{OK: true, CompletionResult: *result})
}

// ListCompletions handles GET /routines/{id}/completions
func (s *Server) ListCompletions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	routineID := chi.URLParam(r, "id")

	if _, err := s.db.GetRoutine(r.Context(), userID, routineID); err != nil {
		if errors.Is(err, db.ErrRoutineNotFound) {
			respondError(w, http.StatusNotFound, "Not found")
			return
		}
		respondInternalError(w, r, "failed to get routine", err)
		return
	}

	completions, err := s.db.ListCompletions(r.Context(), userID, routineID, completionHistoryLimit)
	if err != nil {
		respondInternalError(w, r, "failed to list completions", err)
		return
	}

	respondJSON(w, http.StatusOK, CompletionsResponse{Completions: completions})
}
