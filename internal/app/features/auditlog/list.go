// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/audit"
	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
	"github.com/dalemusser/labflow/internal/app/system/paging"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

const pageSize = paging.PageSize

// ServeList handles GET /api/admin/audit.
//
// Query parameters: category, event_type, user_id, start_date and end_date
// (YYYY-MM-DD, end date inclusive) and page (1-based).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	category := strings.TrimSpace(query.Get(r, "category"))
	eventType := strings.TrimSpace(query.Get(r, "event_type"))
	if !validFilter(category, eventType) {
		jsonapi.Error(w, http.StatusBadRequest, "unknown category or event type")
		return
	}

	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}

	if s := strings.TrimSpace(query.Get(r, "user_id")); s != "" {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil || uid <= 0 {
			jsonapi.Error(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &uid
	}
	if s := strings.TrimSpace(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			jsonapi.Error(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("failed to query audit events", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}
	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("failed to count audit events", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	jsonapi.Write(w, http.StatusOK, listResponse{
		Items:      h.items(r, events),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	})
}

// ServeRejected handles GET /api/admin/audit/rejected-handshakes?since=24h,
// the refused socket handshakes within the given look-back window.
func (h *Handler) ServeRejected(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := strings.TrimSpace(query.Get(r, "since")); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			jsonapi.Error(w, http.StatusBadRequest, "invalid since")
			return
		}
		window = d
	}
	since := time.Now().UTC().Add(-window)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "rejected handshakes")
	defer cancel()

	limit := int64(paging.ParseLimitWithDefault(r, pageSize, paging.MaxPageSize))
	events, err := h.Store.GetRejectedHandshakes(ctx, since, limit)
	if err != nil {
		h.Log.Error("failed to query rejected handshakes", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load audit events")
		return
	}

	byReason := make(map[string]int)
	for _, e := range events {
		byReason[e.FailureReason]++
	}
	jsonapi.Write(w, http.StatusOK, map[string]any{
		"since":    since,
		"items":    h.items(r, events),
		"byReason": byReason,
	})
}

// items converts events to rows, resolving user and actor names in one
// batch. A failed lookup only drops the names.
func (h *Handler) items(r *http.Request, events []audit.Event) []listItem {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, e := range events {
		for _, id := range []*int64{e.UserID, e.ActorID} {
			if id == nil {
				continue
			}
			if _, ok := seen[*id]; !ok {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}

	var names map[int64]string
	if len(ids) > 0 && h.Names != nil {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "audit names")
		defer cancel()
		var err error
		if names, err = h.Names.NamesByIDs(ctx, ids); err != nil {
			h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		}
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, toItem(e, names))
	}
	return items
}
