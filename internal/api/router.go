package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shalteor/frequency127/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func (s *Server) NewRouter() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(chimw.Timeout(s.requestTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.Health)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.Signup)
		r.Post("/login", s.Login)
		r.Post("/logout", s.Logout)
	})
	r.Get("/users/recent", s.RecentUsers)
	r.Get("/shared/{token}", s.Shared)

	// Flat paths used by the browser client
	r.Post("/auth-signup", s.Signup)
	r.Post("/auth-login", s.Login)
	r.Post("/auth-logout", s.Logout)
	r.Get("/users-recent", s.RecentUsers)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.session.AuthMiddleware)

		r.Get("/me", s.Me)
		r.Post("/share", s.Share)

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", s.ListRoutines)
			r.Post("/", s.CreateRoutine)
			r.Get("/{id}", s.GetRoutine)
			r.Put("/{id}", s.UpdateRoutine)
			r.Patch("/{id}", s.UpdateRoutine)
			r.Delete("/{id}", s.DeleteRoutine)
			r.Post("/{id}/complete", s.CompleteRoutine)
			r.Get("/{id}/completions", s.ListCompletions)
		})
	})

	return r
}
