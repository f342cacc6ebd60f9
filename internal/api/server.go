package api

import (
	"time"

	"github.com/shalteor/frequency127/internal/db"
	"github.com/shalteor/frequency127/internal/middleware"
	"github.com/shalteor/frequency127/internal/models"
)

// Server represents the API server
type Server struct {
	db      *db.DB
	session *middleware.SessionConfig

	location       *time.Location
	publicURL      string
	corsOrigins    []string
	requestTimeout time.Duration
	now            func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLocation sets the time zone that decides where a day starts
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithPublicURL sets the base URL used in share links
func WithPublicURL(url string) Option {
	return func(s *Server) { s.publicURL = url }
}

// WithCORSOrigins replaces the default allowed CORS origins
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRequestTimeout bounds the time spent on a single request
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithClock replaces the wall clock, used by tests to cross day boundaries
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer creates a new API server
func NewServer(database *db.DB, session *middleware.SessionConfig, opts ...Option) *Server {
	s := &Server{
		db:       database,
		session:  session,
		location: time.UTC,
		corsOrigins: []string{
			"http://localhost", "http://localhost:3000", "http://localhost:5173", "http://localhost:8788",
			"http://127.0.0.1", "http://127.0.0.1:3000", "http://127.0.0.1:5173", "http://127.0.0.1:8788",
		},
		requestTimeout: 30 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today returns the current day key
func (s *Server) today() string {
	return models.DayKey(s.now(), s.location)
}
