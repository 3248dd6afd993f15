// internal/app/features/socket/routes.go
package socket

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter that serves the websocket endpoint.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeWS) // mounted under /ws
	return r
}
