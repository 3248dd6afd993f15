// internal/app/features/todomessages/routes.go
package todomessages

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /api/todo-messages.
// Callers must already be signed in.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/pending-count", h.ServePendingCount)
	r.Post("/{id}/read", h.ServeMarkRead)
	r.Post("/{id}/status", h.ServeStatus)
	return r
}
