package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shalteor/frequency127/internal/db"
	"github.com/shalteor/frequency127/internal/logger"
	"github.com/shalteor/frequency127/internal/middleware"
	"github.com/shalteor/frequency127/internal/models"
)

const recentUsersLimit = 10

// MeResponse is the current user with their routines
type MeResponse struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	XP         int64             `json:"xp"`
	Streak     int64             `json:"streak"`
	ShareToken *string           `json:"share_token"`
	CreatedAt  time.Time         `json:"created_at"`
	Routines   []*models.Routine `json:"routines"`
}

// RecentUsersResponse lists recently created usernames
type RecentUsersResponse struct {
	Users []string `json:"users"`
}

// ShareResponse is returned by POST /share
type ShareResponse struct {
	ShareToken string `json:"share_token"`
	URL        string `json:"url"`
}

// Me handles GET /me
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := s.db.GetUserByID(r.Context(), userID)
	if errors.Is(err, db.ErrUserNotFound) {
		// Valid token for a user that no longer exists
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to get user", err)
		return
	}

	routines, err := s.db.ListRoutines(r.Context(), userID)
	if err != nil {
		respondInternalError(w, r, "failed to list routines", err)
		return
	}

	respondJSON(w, http.StatusOK, MeResponse{
		ID:         user.ID,
		Username:   user.Username,
		XP:         user.XP,
		Streak:     user.Streak,
		ShareToken: user.ShareToken,
		CreatedAt:  user.CreatedAt,
		Routines:   routines,
	})
}

// RecentUsers handles GET /users/recent
func (s *Server) RecentUsers(w http.ResponseWriter, r *http.Request) {
	usernames, err := s.db.ListRecentUsernames(r.Context(), recentUsersLimit)
	if err != nil {
		respondInternalError(w, r, "failed to list recent users", err)
		return
	}

	respondJSON(w, http.StatusOK, RecentUsersResponse{Users: usernames})
}

// Share handles POST /share
func (s *Server) Share(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, err := s.db.EnsureShareToken(r.Context(), userID, uuid.New().String())
	if errors.Is(err, db.ErrUserNotFound) {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to create share token", err)
		return
	}

	respondJSON(w, http.StatusOK, ShareResponse{
		ShareToken: token,
		URL:        s.baseURL(r) + "/?u=" + token,
	})
}

// Shared handles GET /shared/{token}
func (s *Server) Shared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}

	user, err := s.db.GetUserByShareToken(r.Context(), token)
	if errors.Is(err, db.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to get shared user", err)
		return
	}

	names, err := s.db.ListRoutineNames(r.Context(), user.ID)
	if err != nil {
		respondInternalError(w, r, "failed to list routines", err)
		return
	}

	profile := models.SharedProfile{
		Username: user.Username,
		XP:       user.XP,
		Streak:   user.Streak,
		Routines: make([]models.SharedRoutine, 0, len(names)),
	}
	for _, name := range names {
		profile.Routines = append(profile.Routines, models.SharedRoutine{Name: name})
	}

	respondJSON(w, http.StatusOK, profile)
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		logger.Error("health check failed", "err", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// baseURL returns the configured public URL or the origin of r
func (s *Server) baseURL(r *http.Request) string {
	if s.publicURL != "" {
		return strings.TrimRight(s.publicURL, "/")
	}
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return strings.TrimRight(origin, "/")
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
