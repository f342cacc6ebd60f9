package api

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shalteor/frequency127/internal/crypto"
	"github.com/shalteor/frequency127/internal/db"
	"github.com/shalteor/frequency127/internal/logger"
	"github.com/shalteor/frequency127/internal/models"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,24}$`)
	passcodePattern = regexp.MustCompile(`^[0-9]{4}$`)
)

// CredentialsRequest is the body of signup and login
type CredentialsRequest struct {
	Username string `json:"username"`
	Passcode string `json:"passcode"`
}

func (req *CredentialsRequest) normalize() {
	req.Username = strings.TrimSpace(req.Username)
	req.Passcode = strings.TrimSpace(req.Passcode)
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

// OKResponse is the body of operations with nothing else to report
type OKResponse struct {
	OK bool `json:"ok"`
}

// Signup handles POST /auth/signup
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.normalize()

	if !usernamePattern.MatchString(req.Username) {
		respondError(w, http.StatusBadRequest, "Username must be 3-24 letters, digits or underscores")
		return
	}
	if !passcodePattern.MatchString(req.Passcode) {
		respondError(w, http.StatusBadRequest, "Passcode must be exactly 4 digits")
		return
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		respondInternalError(w, r, "failed to generate salt", err)
		return
	}

	user := &models.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Salt:      salt,
		PassHash:  crypto.HashPasscode(salt, req.Passcode),
		CreatedAt: s.now().UTC(),
	}

	if err := s.db.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrUserExists) {
			respondError(w, http.StatusConflict, "Username already taken")
			return
		}
		respondInternalError(w, r, "failed to create user", err)
		return
	}

	logger.Info("user signed up", "user_id", user.ID, "username", user.Username)
	s.startSession(w, r, user)
}

// Login handles POST /auth/login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.normalize()

	if req.Username == "" || req.Passcode == "" {
		respondError(w, http.StatusBadRequest, "Username and passcode required")
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, db.ErrUserNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		respondInternalError(w, r, "failed to get user", err)
		return
	}

	ok, needsRehash := crypto.VerifyPasscode(user.Salt, req.Passcode, user.PassHash)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if needsRehash {
		hash := crypto.HashPasscode(user.Salt, req.Passcode)
		if err := s.db.UpdatePassHash(r.Context(), user.ID, user.Salt, hash); err != nil {
			logger.Warn("failed to upgrade passcode hash", "user_id", user.ID, "err", err)
		} else {
			logger.Info("upgraded passcode hash", "user_id", user.ID)
		}
	}

	s.startSession(w, r, user)
}

// Logout handles POST /auth/logout
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	s.session.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, OKResponse{OK: true})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, err := s.session.GenerateToken(user.ID)
	if err != nil {
		respondInternalError(w, r, "failed to generate session token", err)
		return
	}

	s.session.SetSessionCookie(w, token)
	respondJSON(w, http.StatusOK, AuthResponse{
		OK:       true,
		ID:       user.ID,
		Username: user.Username,
	})
}
