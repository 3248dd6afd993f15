// internal/app/features/presence/handler.go
package presence

import (
	"net/http"

	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
)

// Directory answers who is online. *realtime.Registry implements it.
type Directory interface {
	OnlineUsers() []int64
	Count() (connections, users int)
}

// Handler serves presence queries.
type Handler struct {
	Dir Directory
}

// NewHandler creates a presence handler.
func NewHandler(dir Directory) *Handler {
	return &Handler{Dir: dir}
}

type onlineResponse struct {
	Users       []int64 `json:"users"`
	Connections int     `json:"connections"`
}

// ServeOnline handles GET /api/presence/online.
//
//	{ "users": [3, 7, 12], "connections": 5 }
//
// Users are sorted ascending.
func (h *Handler) ServeOnline(w http.ResponseWriter, r *http.Request) {
	users := h.Dir.OnlineUsers()
	conns, _ := h.Dir.Count()
	jsonapi.Write(w, http.StatusOK, onlineResponse{Users: users, Connections: conns})
}
