// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log routes under the path where this router is
// mounted (/api/admin/audit from bootstrap). Access is restricted to admins.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole("admin"))

		pr.Get("/", h.ServeList)
		pr.Get("/rejected-handshakes", h.ServeRejected)
	})

	return r
}
