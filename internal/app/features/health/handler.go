// internal/app/features/health/handler.go
package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Population reports live socket counts. *realtime.Registry implements it.
type Population interface {
	Count() (connections, users int)
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Pop    Population
	Log    *zap.Logger
}

// NewHandler constructs a health Handler with the Mongo client, the
// connection registry and logger.
func NewHandler(client *mongo.Client, pop Population, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Pop:    pop,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Connections int    `json:"connections"`
	OnlineUsers int    `json:"online_users"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "connections":12, "online_users":9 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…", ... }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Pop != nil {
		resp.Connections, resp.OnlineUsers = h.Pop.Count()
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
