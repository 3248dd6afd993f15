// internal/app/features/status/handler.go
package status

import (
	"net/http"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Registry is the part of the connection registry the status page reads.
type Registry interface {
	Snapshot() []*realtime.Connection
	Count() (connections, users int)
}

// Handler serves the operator status page.
type Handler struct {
	Registry Registry
	Database string
	Started  time.Time
	Log      *zap.Logger

	now func() time.Time
}

// NewHandler creates a status handler. started is the process start time
// used for uptime.
func NewHandler(reg Registry, database string, started time.Time, logger *zap.Logger) *Handler {
	return &Handler{
		Registry: reg,
		Database: database,
		Started:  started,
		Log:      logger,
		now:      time.Now,
	}
}

type connectionRow struct {
	realtime.Info
	Open bool `json:"open"`
}

type timeoutsView struct {
	Ping      string `json:"ping"`
	Short     string `json:"short"`
	Medium    string `json:"medium"`
	Long      string `json:"long"`
	Handshake string `json:"handshake"`
	Write     string `json:"write"`
}

type statusResponse struct {
	Database    string          `json:"database"`
	StartedAt   time.Time       `json:"startedAt"`
	Uptime      string          `json:"uptime"`
	Connections int             `json:"connections"`
	OnlineUsers int             `json:"onlineUsers"`
	Stale       int             `json:"stale"` // closed but not yet swept
	Timeouts    timeoutsView    `json:"timeouts"`
	Sockets     []connectionRow `json:"sockets"`
}

// Serve handles GET /api/admin/status: every registered socket plus the
// effective timeouts.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	snap := h.Registry.Snapshot()
	conns, users := h.Registry.Count()

	rows := make([]connectionRow, 0, len(snap))
	stale := 0
	for _, c := range snap {
		open := c.Open()
		if !open {
			stale++
		}
		rows = append(rows, connectionRow{Info: c.Info(), Open: open})
	}

	t := timeouts.Current()
	jsonapi.Write(w, http.StatusOK, statusResponse{
		Database:    h.Database,
		StartedAt:   h.Started.UTC(),
		Uptime:      h.now().Sub(h.Started).Truncate(time.Second).String(),
		Connections: conns,
		OnlineUsers: users,
		Stale:       stale,
		Timeouts: timeoutsView{
			Ping:      t.Ping.String(),
			Short:     t.Short.String(),
			Medium:    t.Medium.String(),
			Long:      t.Long.String(),
			Handshake: t.Handshake.String(),
			Write:     t.Write.String(),
		},
		Sockets: rows,
	})
}
