// internal/app/features/chat/handler.go
package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/labflow/internal/app/store/chatmessages"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/jsonapi"
	"github.com/dalemusser/labflow/internal/app/system/paging"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store is the chat history the handler reads from.
type Store interface {
	Conversation(ctx context.Context, a, b int64, limit int64) ([]models.ChatMessage, error)
	ListUnread(ctx context.Context, userID int64, limit int64) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, readerID int64) (bool, error)
}

// Handler serves chat history.
type Handler struct {
	Store Store
	Log   *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

type conversationResponse struct {
	With     int64                `json:"with"`
	Messages []models.ChatMessage `json:"messages"`
}

// ServeConversation handles GET /api/chat/{userID}?limit=N.
// Returns the most recent messages between the caller and userID, oldest first.
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	other, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || other <= 0 {
		jsonapi.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Store.Conversation(ctx, user.UserID, other, int64(paging.ParseLimit(r)))
	if err != nil {
		h.Log.Error("load conversation",
			zap.Int64("user_id", user.UserID),
			zap.Int64("other_id", other),
			zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	jsonapi.Write(w, http.StatusOK, conversationResponse{With: other, Messages: msgs})
}

// ServeUnread handles GET /api/chat/unread, the caller's unread messages
// from every sender, oldest first.
func (h *Handler) ServeUnread(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Store.ListUnread(ctx, user.UserID, int64(paging.ParseLimit(r)))
	if err != nil {
		h.Log.Error("list unread chat", zap.Int64("user_id", user.UserID), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	jsonapi.Write(w, http.StatusOK, map[string]any{"messages": msgs})
}

// ServeMarkRead handles POST /api/chat/messages/{id}/read.
// Only the recipient may mark a message read. "changed" is false when it
// was already read.
func (h *Handler) ServeMarkRead(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r)
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonapi.Error(w, http.StatusBadRequest, "invalid message id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	changed, err := h.Store.MarkRead(ctx, id, user.UserID)
	switch {
	case errors.Is(err, chatmessages.ErrNotFound):
		jsonapi.Error(w, http.StatusNotFound, "message not found")
		return
	case err != nil:
		h.Log.Error("mark chat message read", zap.String("message_id", id.Hex()), zap.Error(err))
		jsonapi.Error(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	jsonapi.Write(w, http.StatusOK, map[string]bool{"read": true, "changed": changed})
}
