package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/notebridge/internal/noteservice"
)

// RouterConfig carries the optional parts of the API router.
type RouterConfig struct {
	// Token, when non-empty, is required as a Bearer token on every route.
	Token string
	// Events is served at GET /events when set.
	Events http.Handler
}

// NewRouter returns the API routes, meant to be mounted under /api.
func NewRouter(svc *noteservice.Service, rc RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(rc.Token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/*", h.GetNote)
		r.Put("/*", h.UpdateNote)
		r.Delete("/*", h.DeleteNote)
	})
	r.Get("/notes-by-id/{id}", h.GetNoteByID)
	r.Post("/move/*", h.MoveNote)
	r.Get("/backlinks/*", h.Backlinks)

	r.Get("/render/*", h.RenderNote)
	r.Get("/render-by-id/{id}", h.RenderNoteByID)
	r.Post("/process", h.ProcessText)
	r.Post("/checkbox/*", h.ToggleCheckbox)
	r.Get("/resolve", h.ResolveLink)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	if rc.Events != nil {
		// Streams must not be buffered by proxies.
		r.With(middleware.NoCache).Get("/events", rc.Events.ServeHTTP)
	}
	return r
}
