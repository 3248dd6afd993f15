// internal/app/features/status/routes.go
package status

import (
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted under /api/admin/status. Admins only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole("admin"))
	r.Get("/", h.Serve)
	return r
}
