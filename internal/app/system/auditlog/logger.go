// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/labflow/internal/app/store/audit"
	"github.com/dalemusser/labflow/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Destination settings for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Socket controls logging for websocket handshake outcomes.
	// Values: "all", "db", "log", "off"
	Socket string
	// Workflow controls logging for workflow notifications created by the system.
	// Values: "all", "db", "log", "off"
	Workflow string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *event.UserID))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.Int64("actor_id", *event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategorySocket:
		setting = l.config.Socket
	case audit.CategoryWorkflow:
		setting = l.config.Workflow
	default:
		setting = All
	}
	if setting == "" {
		setting = All
	}

	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Socket Events ---

// SocketConnected logs an authenticated websocket handshake.
func (l *Logger) SocketConnected(ctx context.Context, r *http.Request, userID int64, connID, deviceID string) {
	details := map[string]string{"conn_id": connID}
	if deviceID != "" {
		details["device_id"] = deviceID
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySocket,
		EventType: audit.EventSocketConnected,
		UserID:    &userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// SocketRejected logs a refused websocket handshake. reason is a short code
// such as "missing_token" or "invalid_token".
func (l *Logger) SocketRejected(ctx context.Context, r *http.Request, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySocket,
		EventType:     audit.EventSocketRejected,
		IP:            ratelimit.ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
	})
}

// --- Workflow Events ---

// StepNotificationCreated logs a step-completion notification. The sender
// is recorded as actor, the recipient as the affected user.
func (l *Logger) StepNotificationCreated(ctx context.Context, senderID, recipientID, taskID, stepID int64, messageID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryWorkflow,
		EventType: audit.EventStepNotificationCreated,
		UserID:    &recipientID,
		ActorID:   &senderID,
		Success:   true,
		Details: map[string]string{
			"task_id":    strconv.FormatInt(taskID, 10),
			"step_id":    strconv.FormatInt(stepID, 10),
			"message_id": messageID,
		},
	})
}
