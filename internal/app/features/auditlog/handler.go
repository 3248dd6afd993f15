// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/audit"
	"go.uber.org/zap"
)

// Store reads audit events. *audit.Store implements it.
type Store interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetRejectedHandshakes(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

// Names resolves user ids to display names. *userstore.Store implements it.
type Names interface {
	NamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Handler struct {
	Store Store
	Names Names
	Log   *zap.Logger
}

// NewHandler constructs an Audit Log feature handler. names may be nil,
// in which case rows carry ids only.
func NewHandler(store Store, names Names, logger *zap.Logger) *Handler {
	return &Handler{
		Store: store,
		Names: names,
		Log:   logger,
	}
}
