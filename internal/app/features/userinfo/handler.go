// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
)

// Connections lists a user's live sockets. *realtime.Registry implements it.
type Connections interface {
	ConnectionsOf(userID int64) []*realtime.Connection
}

// Handler serves information about the bearer of the request token.
type Handler struct {
	Conns Connections
}

// NewHandler creates a new userinfo handler.
func NewHandler(conns Connections) *Handler {
	return &Handler{Conns: conns}
}

// ServeUserInfo returns JSON with the caller's authentication status,
// identity and live devices.
//
// Response format:
//
//	{ "isAuthenticated": bool, "userId": 7, "name": "...", "role": "...", "online": bool, "devices": [...] }
//
// Anonymous callers get isAuthenticated=false and nothing else.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, ok := auth.CurrentUser(r)
	if !ok || user == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"isAuthenticated": false,
		})
		return
	}

	devices := []realtime.Info{}
	for _, c := range h.Conns.ConnectionsOf(user.UserID) {
		devices = append(devices, c.Info())
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"isAuthenticated": true,
		"userId":          user.UserID,
		"name":            user.Name,
		"role":            user.Role,
		"online":          len(devices) > 0,
		"devices":         devices,
	})
}
