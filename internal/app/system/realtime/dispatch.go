// internal/app/system/realtime/dispatch.go
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/todomessages"
	"github.com/dalemusser/labflow/internal/app/system/htmlsanitize"
	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Error frame texts for persistence failures.
const (
	ErrTextSaveFailed     = "failed to save message"
	ErrTextUpdateFailed   = "failed to update message"
	ErrTextMessageMissing = "message not found"
)

// ChatStore persists chat messages.
type ChatStore interface {
	Create(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error)
}

// TodoStore persists workflow notifications.
type TodoStore interface {
	Create(ctx context.Context, m models.TodoMessage) (models.TodoMessage, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, recipientID int64, at time.Time) (models.TodoMessage, bool, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, recipientID int64, next string, at time.Time) (models.TodoMessage, bool, error)
}

// NameResolver looks up display names for chat enrichment.
type NameResolver interface {
	NameOf(ctx context.Context, id int64) (string, error)
}

// Dispatcher handles decoded client frames: persist first, then deliver.
type Dispatcher struct {
	router  *Router
	chats   ChatStore
	todos   TodoStore
	names   NameResolver // optional
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDispatcher wires a Dispatcher. names and m may be nil.
func NewDispatcher(router *Router, chats ChatStore, todos TodoStore, names NameResolver, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		router:  router,
		chats:   chats,
		todos:   todos,
		names:   names,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Handle processes one raw frame received on origin. It never closes the
// connection; every failure becomes an error frame on origin.
func (d *Dispatcher) Handle(ctx context.Context, origin *Connection, data []byte) {
	in, err := DecodeInbound(data)
	if err != nil {
		text, label := ErrTextInvalidFormat, "invalid"
		if errors.Is(err, ErrUnknownType) {
			text, label = ErrTextUnknownType, "unknown"
		}
		d.metrics.FrameReceived(label)
		d.logger.Debug("rejected client frame",
			zap.String("conn_id", origin.ID),
			zap.Int64("user_id", origin.UserID),
			zap.Error(err))
		d.replyError(ctx, origin, text, err.Error())
		return
	}
	d.metrics.FrameReceived(FrameType(in))

	switch f := in.(type) {
	case ChatFrame:
		d.handleChat(ctx, origin, f)
	case TodoMessageFrame:
		d.handleTodo(ctx, origin, f)
	case MarkTodoReadFrame:
		d.handleMarkRead(ctx, origin, f)
	default:
		d.logger.Error("decoded frame has no handler", zap.String("type", FrameType(in)))
		d.replyError(ctx, origin, ErrTextUnknownType, "")
	}
}

func (d *Dispatcher) handleChat(ctx context.Context, origin *Connection, f ChatFrame) {
	content := htmlsanitize.PlainText(f.Content)
	if content == "" {
		d.replyError(ctx, origin, ErrTextInvalidFormat, "content is empty")
		return
	}

	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), d.logger, "persist chat message")
	msg, err := d.chats.Create(pctx, models.ChatMessage{
		FromID:  origin.UserID,
		ToID:    f.To,
		Content: content,
	})
	cancel()
	if err != nil {
		d.logger.Error("persist chat message",
			zap.Int64("from", origin.UserID),
			zap.Int64("to", f.To),
			zap.Error(err))
		d.replyError(ctx, origin, ErrTextSaveFailed, "")
		return
	}

	d.router.DeliverToUser(ctx, msg.ToID, ChatEvent{
		Type:        TypeChat,
		ChatMessage: msg,
		SenderName:  d.senderName(ctx, msg.FromID),
	})

	d.ack(ctx, origin, msg.ID, msg.CreatedAt)
}

func (d *Dispatcher) handleTodo(ctx context.Context, origin *Connection, f TodoMessageFrame) {
	subject := htmlsanitize.PlainText(f.Subject)
	body := htmlsanitize.PlainText(f.Message)
	if subject == "" || body == "" {
		d.replyError(ctx, origin, ErrTextInvalidFormat, "subject and message are required")
		return
	}

	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), d.logger, "persist todo message")
	m, err := d.todos.Create(pctx, models.TodoMessage{
		SenderID:      origin.UserID,
		RecipientID:   f.RecipientID,
		Subject:       subject,
		Message:       body,
		Priority:      f.Priority,
		Type:          models.TodoTypeGeneral,
		RelatedTaskID: f.RelatedTaskID,
		RelatedStepID: f.RelatedStepID,
		DueDate:       f.DueDate,
	})
	cancel()
	if err != nil {
		d.logger.Error("persist todo message",
			zap.Int64("from", origin.UserID),
			zap.Int64("to", f.RecipientID),
			zap.Error(err))
		d.replyError(ctx, origin, ErrTextSaveFailed, "")
		return
	}

	d.router.DeliverToUser(ctx, m.RecipientID, NewTodoEvent(TypeNewTodoMessage, m))
	d.ack(ctx, origin, m.ID, m.CreatedAt)
}

func (d *Dispatcher) handleMarkRead(ctx context.Context, origin *Connection, f MarkTodoReadFrame) {
	if _, err := d.MarkTodoRead(ctx, origin.UserID, f.MessageID); err != nil {
		if errors.Is(err, todomessages.ErrNotFound) {
			d.replyError(ctx, origin, ErrTextMessageMissing, f.MessageID.Hex())
			return
		}
		d.replyError(ctx, origin, ErrTextUpdateFailed, "")
	}
}

// MarkTodoRead records a read receipt for userID and echoes it to all of
// that user's connections so other tabs stay in sync.
func (d *Dispatcher) MarkTodoRead(ctx context.Context, userID int64, id primitive.ObjectID) (models.TodoMessage, error) {
	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), d.logger, "mark todo message read")
	m, _, err := d.todos.MarkRead(pctx, id, userID, d.now())
	cancel()
	if err != nil {
		if !errors.Is(err, todomessages.ErrNotFound) {
			d.logger.Error("mark todo message read",
				zap.Int64("user_id", userID),
				zap.String("message_id", id.Hex()),
				zap.Error(err))
		}
		return models.TodoMessage{}, err
	}

	readAt := d.now().UTC()
	if m.ReadAt != nil {
		readAt = *m.ReadAt
	}
	d.router.DeliverToUser(ctx, userID, TodoReadEvent{
		Type:      TypeTodoMessageRead,
		MessageID: m.ID.Hex(),
		Status:    m.Status,
		ReadAt:    readAt,
	})
	return m, nil
}

// AdvanceTodo moves a notification addressed to userID to status next.
// When it first reaches completed, the original sender gets a notification
// frame.
func (d *Dispatcher) AdvanceTodo(ctx context.Context, userID int64, id primitive.ObjectID, next string) (models.TodoMessage, error) {
	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), d.logger, "update todo status")
	m, changed, err := d.todos.UpdateStatus(pctx, id, userID, next, d.now())
	cancel()
	if err != nil {
		return models.TodoMessage{}, err
	}

	if changed && next == models.TodoCompleted && m.SenderID > 0 && m.SenderID != userID {
		d.router.DeliverToUser(ctx, m.SenderID, NotificationEvent{
			Type:      TypeNotification,
			Title:     "Completed: " + m.Subject,
			Body:      fmt.Sprintf("%s marked your message as completed.", d.displayName(ctx, userID)),
			MessageID: m.ID.Hex(),
		})
	}
	return m, nil
}

func (d *Dispatcher) ack(ctx context.Context, origin *Connection, id primitive.ObjectID, at time.Time) {
	_ = d.router.SendTo(ctx, origin, SentEvent{
		Type:      TypeSent,
		MessageID: id.Hex(),
		Timestamp: at,
	})
}

func (d *Dispatcher) replyError(ctx context.Context, origin *Connection, text, detail string) {
	_ = d.router.SendTo(ctx, origin, ErrorEvent{Type: TypeError, Error: text, Detail: detail})
}

// senderName returns the display name of userID, or "" when unknown.
func (d *Dispatcher) senderName(ctx context.Context, userID int64) string {
	if d.names == nil {
		return ""
	}
	lctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	name, err := d.names.NameOf(lctx, userID)
	if err != nil {
		d.logger.Debug("sender name lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return ""
	}
	return name
}

func (d *Dispatcher) displayName(ctx context.Context, userID int64) string {
	if name := d.senderName(ctx, userID); name != "" {
		return name
	}
	return fmt.Sprintf("User %d", userID)
}
