// internal/app/features/chat/routes.go
package chat

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /api/chat.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/unread", h.ServeUnread)
	r.Get("/{userID}", h.ServeConversation)
	r.Post("/messages/{id}/read", h.ServeMarkRead)
	return r
}
