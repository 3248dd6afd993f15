// internal/app/system/realtime/frames.go
package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inbound frame types.
const (
	TypeChat            = "chat"
	TypeTodoMessage     = "todoMessage"
	TypeMarkTodoMessage = "markTodoMessageRead"
)

// Outbound frame types.
const (
	TypeConnected        = "connected"
	TypeError            = "error"
	TypeSent             = "sent"
	TypeUserStatus       = "userStatus"
	TypeNewTodoMessage   = "newTodoMessage"
	TypeTodoMessageRead  = "todoMessageRead"
	TypeStepNotification = "stepNotification"
	TypeNotification     = "notification"
)

// Error frame texts.
const (
	ErrTextInvalidFormat = "invalid message format"
	ErrTextUnknownType   = "unknown message type"
)

var (
	// ErrMalformed marks a frame that is not JSON or fails validation.
	ErrMalformed = errors.New("malformed frame")

	// ErrUnknownType marks a well-formed frame with an unrecognized type.
	ErrUnknownType = errors.New("unknown frame type")
)

// Inbound is a decoded client frame. The set of implementations is closed:
// ChatFrame, TodoMessageFrame and MarkTodoReadFrame.
type Inbound interface {
	frameType() string
}

// ChatFrame sends a chat message to another user.
type ChatFrame struct {
	To      int64
	Content string
}

// TodoMessageFrame creates a workflow notification for another user.
type TodoMessageFrame struct {
	RecipientID   int64
	Subject       string
	Message       string
	Priority      string
	DueDate       *time.Time
	RelatedTaskID *int64
	RelatedStepID *int64
}

// MarkTodoReadFrame is a read receipt for a notification.
type MarkTodoReadFrame struct {
	MessageID primitive.ObjectID
}

func (ChatFrame) frameType() string         { return TypeChat }
func (TodoMessageFrame) frameType() string  { return TypeTodoMessage }
func (MarkTodoReadFrame) frameType() string { return TypeMarkTodoMessage }

// FrameType returns the wire type name of a decoded frame.
func FrameType(in Inbound) string {
	return in.frameType()
}

// flexID accepts a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("not an id: %s", b)
	}
	*f = flexID(n)
	return nil
}

func (f *flexID) ptr() *int64 {
	if f == nil || *f <= 0 {
		return nil
	}
	v := int64(*f)
	return &v
}

type envelope struct {
	Type string `json:"type"`
}

type chatWire struct {
	To      flexID `json:"to"`
	Content string `json:"content"`
}

type todoWire struct {
	RecipientID   flexID  `json:"recipientId"`
	Subject       string  `json:"subject"`
	Message       string  `json:"message"`
	Priority      string  `json:"priority"`
	DueDate       string  `json:"dueDate"`
	RelatedTaskID *flexID `json:"relatedTaskId"`
	RelatedStepID *flexID `json:"relatedStepId"`
}

type markReadWire struct {
	MessageID string `json:"messageId"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// DecodeInbound parses one client frame. Errors wrap ErrMalformed or
// ErrUnknownType.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("%v", err)
	}

	switch env.Type {
	case TypeChat:
		var w chatWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, malformed("%v", err)
		}
		content := strings.TrimSpace(w.Content)
		if w.To <= 0 {
			return nil, malformed("to is required")
		}
		if content == "" {
			return nil, malformed("content is required")
		}
		return ChatFrame{To: int64(w.To), Content: content}, nil

	case TypeTodoMessage:
		var w todoWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, malformed("%v", err)
		}
		f := TodoMessageFrame{
			RecipientID:   int64(w.RecipientID),
			Subject:       strings.TrimSpace(w.Subject),
			Message:       strings.TrimSpace(w.Message),
			Priority:      strings.ToLower(strings.TrimSpace(w.Priority)),
			RelatedTaskID: w.RelatedTaskID.ptr(),
			RelatedStepID: w.RelatedStepID.ptr(),
		}
		if f.RecipientID <= 0 {
			return nil, malformed("recipientId is required")
		}
		if f.Subject == "" || f.Message == "" {
			return nil, malformed("subject and message are required")
		}
		if f.Priority != "" && !models.IsValidPriority(f.Priority) {
			return nil, malformed("unknown priority %q", f.Priority)
		}
		if w.DueDate != "" {
			due, err := parseDueDate(w.DueDate)
			if err != nil {
				return nil, malformed("dueDate: %v", err)
			}
			f.DueDate = &due
		}
		return f, nil

	case TypeMarkTodoMessage:
		var w markReadWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, malformed("%v", err)
		}
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(w.MessageID))
		if err != nil {
			return nil, malformed("messageId: %v", err)
		}
		return MarkTodoReadFrame{MessageID: id}, nil

	case "":
		return nil, malformed("type is required")

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	return t.UTC(), nil
}

// --- outbound events ---

// ConnectedEvent is the first frame on every accepted connection.
type ConnectedEvent struct {
	Type       string `json:"type"`
	UserID     int64  `json:"userId"`
	DeviceInfo Info   `json:"deviceInfo"`
}

// ErrorEvent reports a recoverable problem with a client frame.
type ErrorEvent struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// ChatEvent delivers a persisted chat message to its recipient.
type ChatEvent struct {
	Type string `json:"type"`
	models.ChatMessage
	SenderName string `json:"senderName,omitempty"`
}

// SentEvent acknowledges that a client's message was persisted.
type SentEvent struct {
	Type      string    `json:"type"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// UserStatusEvent announces a presence edge.
type UserStatusEvent struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"userId"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// TodoEvent carries a workflow notification record. The record's own type
// (general, step_notification) travels as messageType since type names the
// frame.
type TodoEvent struct {
	Type          string     `json:"type"`
	ID            string     `json:"id"`
	SenderID      int64      `json:"senderId"`
	RecipientID   int64      `json:"recipientId"`
	Subject       string     `json:"subject"`
	Message       string     `json:"message"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	MessageType   string     `json:"messageType"`
	RelatedTaskID *int64     `json:"relatedTaskId,omitempty"`
	RelatedStepID *int64     `json:"relatedStepId,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
}

// NewTodoEvent builds a newTodoMessage or stepNotification frame from a record.
func NewTodoEvent(frameType string, m models.TodoMessage) TodoEvent {
	return TodoEvent{
		Type:          frameType,
		ID:            m.ID.Hex(),
		SenderID:      m.SenderID,
		RecipientID:   m.RecipientID,
		Subject:       m.Subject,
		Message:       m.Message,
		Priority:      m.Priority,
		Status:        m.Status,
		MessageType:   m.Type,
		RelatedTaskID: m.RelatedTaskID,
		RelatedStepID: m.RelatedStepID,
		DueDate:       m.DueDate,
		CreatedAt:     m.CreatedAt,
		ReadAt:        m.ReadAt,
	}
}

// TodoReadEvent echoes a read receipt to the reader's other tabs.
type TodoReadEvent struct {
	Type      string    `json:"type"`
	MessageID string    `json:"messageId"`
	Status    string    `json:"status"`
	ReadAt    time.Time `json:"readAt"`
}

// NotificationEvent is a generic informational notice.
type NotificationEvent struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	MessageID string `json:"messageId,omitempty"`
}
