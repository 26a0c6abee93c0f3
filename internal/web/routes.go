package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/users/{actorID}", func(r chi.Router) {
		r.Post("/repos", s.handleAddRepo)
		r.Post("/orgs", s.handleAddOrg)

		r.Get("/groups", s.handleListGroups)
		r.Post("/groups", s.handleCreateGroup)
		r.Get("/groups/{name}/repos", s.handleListGroupRepos)
	})

	return r
}
