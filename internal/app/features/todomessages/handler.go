// internal/app/features/todomessages/handler.go
package todomessages

import (
	"context"
	"errors"
	"net/http"
	"strings"

	todostore "github.com/dalemusser/labflow/internal/app/store/todomessages"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
	"github.com/dalemusser/labflow/internal/app/system/paging"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the read side of the notification inbox.
type Store interface {
	ListByRecipient(ctx context.Context, recipientID int64, statuses []string, limit int64) ([]models.TodoMessage, error)
	CountPending(ctx context.Context, recipientID int64) (int64, error)
}

// Actions changes notification state and pushes the result to live sockets.
// realtime.Dispatcher implements it.
type Actions interface {
	MarkTodoRead(ctx context.Context, userID int64, id primitive.ObjectID) (models.TodoMessage, error)
	AdvanceTodo(ctx context.Context, userID int64, id primitive.ObjectID, next string) (models.TodoMessage, error)
}

// Handler serves the caller's workflow notifications.
type Handler struct {
	Store   Store
	Actions Actions
	Log     *zap.Logger
}

// NewHandler creates a todo-messages handler.
func NewHandler(store Store, actions Actions, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Actions: actions, Log: logger}
}

type listResponse struct {
	Messages []models.TodoMessage `json:"messages"`
}

// ServeList handles GET /api/todo-messages?status=pending,read&limit=N.
// Newest first. This is how a client that was offline picks up the
// notifications it missed.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	var statuses []string
	for _, s := range strings.Split(query.Get(r, "status"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !models.IsValidTodoStatus(s) {
			jsonapi.Error(w, http.StatusBadRequest, "unknown status "+s)
			return
		}
		statuses = append(statuses, s)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Store.ListByRecipient(ctx, user.UserID, statuses, int64(paging.ParseLimit(r)))
	if err != nil {
		h.Log.Error("list todo messages", zap.Int64("user_id", user.UserID), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.TodoMessage{}
	}
	jsonapi.Write(w, http.StatusOK, listResponse{Messages: msgs})
}

// ServePendingCount handles GET /api/todo-messages/pending-count.
func (h *Handler) ServePendingCount(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.CountPending(ctx, user.UserID)
	if err != nil {
		h.Log.Error("count pending todo messages", zap.Int64("user_id", user.UserID), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}
	jsonapi.Write(w, http.StatusOK, map[string]int64{"count": n})
}

// ServeMarkRead handles POST /api/todo-messages/{id}/read.
// Marking an already-read message is not an error; the stored record is
// returned unchanged.
func (h *Handler) ServeMarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	m, err := h.Actions.MarkTodoRead(r.Context(), user.UserID, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	jsonapi.Write(w, http.StatusOK, m)
}

type statusRequest struct {
	Status string `json:"status"`
}

// ServeStatus handles POST /api/todo-messages/{id}/status with
// {"status": "read" | "in_progress" | "completed"}.
// Status only moves forward; a backwards request gets 409.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := jsonapi.Decode(w, r, &req); err != nil {
		jsonapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	next := strings.TrimSpace(req.Status)
	if next == models.TodoPending || !models.IsValidTodoStatus(next) {
		jsonapi.Error(w, http.StatusBadRequest, "status must be read, in_progress or completed")
		return
	}

	m, err := h.Actions.AdvanceTodo(r.Context(), user.UserID, id, next)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	jsonapi.Write(w, http.StatusOK, m)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, todostore.ErrNotFound):
		jsonapi.Error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, todostore.ErrInvalidStatus):
		jsonapi.Error(w, http.StatusBadRequest, "invalid status")
	case errors.Is(err, todostore.ErrInvalidTransition):
		jsonapi.Error(w, http.StatusConflict, "status cannot move backwards")
	case errors.Is(err, todostore.ErrConflict):
		jsonapi.Error(w, http.StatusConflict, "message was modified concurrently")
	default:
		h.Log.Error("update todo message", zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to update message")
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid message id")
		return primitive.NilObjectID, false
	}
	return id, true
}
