// internal/app/features/steps/routes.go
package steps

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /api/steps.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/complete", h.ServeComplete)
	r.Post("/{id}/reopen", h.ServeReopen)
	return r
}
