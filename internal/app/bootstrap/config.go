// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for labflow.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, token_secret, etc.
//   - Environment variables: LABFLOW_MONGO_URI, LABFLOW_TOKEN_SECRET, etc.
//   - Command-line flags: --mongo_uri, --token_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "labflow", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Token verification
	{Name: "token_secret", Default: "", Desc: "HMAC secret used to verify bearer tokens (required)"},
	{Name: "token_issuer", Default: "", Desc: "Expected token issuer (blank skips the check)"},

	// WebSocket endpoint
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated list of allowed Origin headers (blank allows any)"},
	{Name: "ws_handshake_timeout", Default: "10s", Desc: "WebSocket upgrade and token verification timeout"},
	{Name: "ws_write_wait", Default: "10s", Desc: "Deadline for writing one frame to a client"},
	{Name: "ws_pong_wait", Default: "60s", Desc: "How long a silent client is kept before it is dropped"},
	{Name: "ws_send_buffer", Default: 64, Desc: "Outbound frames queued per connection before it counts as a slow consumer"},
	{Name: "ws_sweep_interval", Default: "30s", Desc: "How often dead connections are swept"},
	{Name: "ws_handshake_limit", Default: 30, Desc: "WebSocket handshakes allowed per IP per window (0 disables)"},
	{Name: "ws_handshake_window", Default: "1m", Desc: "Window for ws_handshake_limit"},

	// Step workflow
	{Name: "step_notification_due", Default: "24h", Desc: "Due date offset for step notifications (e.g., 24h, 90m)"},

	// Audit logging settings
	{Name: "audit_log_socket", Default: "all", Desc: "Socket event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_workflow", Default: "all", Desc: "Workflow event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, LABFLOW_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LABFLOW", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		TokenSecret: appValues.String("token_secret"),
		TokenIssuer: appValues.String("token_issuer"),

		WSAllowedOrigins:   splitList(appValues.String("ws_allowed_origins")),
		WSHandshakeTimeout: appValues.Duration("ws_handshake_timeout", 10*time.Second),
		WSWriteWait:        appValues.Duration("ws_write_wait", 10*time.Second),
		WSPongWait:         appValues.Duration("ws_pong_wait", 60*time.Second),
		WSSendBuffer:       appValues.Int("ws_send_buffer"),
		WSSweepInterval:    appValues.Duration("ws_sweep_interval", 30*time.Second),
		WSHandshakeLimit:   appValues.Int("ws_handshake_limit"),
		WSHandshakeWindow:  appValues.Duration("ws_handshake_window", time.Minute),

		StepNotificationDue: appValues.Duration("step_notification_due", 24*time.Hour),

		AuditLogSocket:   appValues.String("audit_log_socket"),
		AuditLogWorkflow: appValues.String("audit_log_workflow"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before any connection attempt, a token secret
// is mandatory, and every interval must be positive.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if strings.TrimSpace(appCfg.TokenSecret) == "" {
		return errors.New("token_secret is required")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{"ws_handshake_timeout", appCfg.WSHandshakeTimeout},
		{"ws_write_wait", appCfg.WSWriteWait},
		{"ws_pong_wait", appCfg.WSPongWait},
		{"ws_sweep_interval", appCfg.WSSweepInterval},
		{"ws_handshake_window", appCfg.WSHandshakeWindow},
		{"step_notification_due", appCfg.StepNotificationDue},
	}
	for _, d := range durations {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.val)
		}
	}
	if appCfg.WSSendBuffer <= 0 {
		return fmt.Errorf("ws_send_buffer must be positive, got %d", appCfg.WSSendBuffer)
	}
	if appCfg.WSHandshakeLimit < 0 {
		return fmt.Errorf("ws_handshake_limit must not be negative, got %d", appCfg.WSHandshakeLimit)
	}

	for key, mode := range map[string]string{
		"audit_log_socket":   appCfg.AuditLogSocket,
		"audit_log_workflow": appCfg.AuditLogWorkflow,
	} {
		switch mode {
		case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, mode)
		}
	}

	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
