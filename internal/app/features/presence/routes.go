// internal/app/features/presence/routes.go
package presence

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /api/presence.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/online", h.ServeOnline)
	return r
}
