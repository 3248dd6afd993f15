// internal/app/features/socket/handler.go
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/labflow/internal/app/system/auditlog"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/limits"
	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"github.com/dalemusser/labflow/internal/app/system/ratelimit"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultSendBuffer      = 64
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultMaxMessageBytes = limits.MaxSocketFrameSize
)

// Options tunes the socket endpoint.
type Options struct {
	// AllowedOrigins lists accepted Origin headers. Empty accepts any origin.
	AllowedOrigins []string
	// SendBuffer is the number of frames queued per connection before the
	// client is treated as a slow consumer.
	SendBuffer int
	// PongWait is how long a connection may stay silent before it is dropped.
	// Pings are sent at 9/10 of this interval.
	PongWait time.Duration
	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int64
}

// Handler upgrades authenticated requests to websocket connections and
// feeds their frames to the dispatcher.
type Handler struct {
	Verifier   auth.Verifier
	Registry   *realtime.Registry
	Router     *realtime.Router
	Presence   *realtime.Presence
	Dispatcher *realtime.Dispatcher
	Limiter    *ratelimit.HandshakeLimiter
	Audit      *auditlog.Logger
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler wires the socket endpoint. limiter, audit and m may be nil.
func NewHandler(
	verifier auth.Verifier,
	reg *realtime.Registry,
	router *realtime.Router,
	presence *realtime.Presence,
	dispatcher *realtime.Dispatcher,
	limiter *ratelimit.HandshakeLimiter,
	audit *auditlog.Logger,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) *Handler {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.PongWait <= 0 {
		opts.PongWait = DefaultPongWait
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	h := &Handler{
		Verifier:   verifier,
		Registry:   reg,
		Router:     router,
		Presence:   presence,
		Dispatcher: dispatcher,
		Limiter:    limiter,
		Audit:      audit,
		Metrics:    m,
		Log:        logger,
		opts:       opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   8192,
		WriteBufferSize:  8192,
		HandshakeTimeout: timeouts.Handshake(),
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// ServeWS handles GET /ws?token=….
//
// The token is checked after the upgrade so that failures can be reported
// with a websocket close code: 4001 when it is missing, 4002 when it does
// not verify. Handshakes over the per-IP limit get HTTP 429 instead.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if ok, ip := h.Limiter.Check(r); !ok {
		h.Metrics.HandshakeRejected("rate_limited")
		h.Log.Warn("socket handshake rate limited", zap.String("ip", ip))
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.Metrics.HandshakeRejected("upgrade")
		h.Log.Debug("socket upgrade failed", zap.Error(err))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	if token == "" {
		h.reject(r, conn, realtime.CloseMissingToken, "missing token", "missing_token")
		return
	}

	vctx, cancel := context.WithTimeout(r.Context(), timeouts.Handshake())
	ident, err := h.Verifier.Verify(vctx, token)
	cancel()
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "verify_timeout"
		}
		h.Log.Info("socket token rejected", zap.String("reason", reason), zap.Error(err))
		h.reject(r, conn, realtime.CloseInvalidToken, "invalid token", reason)
		return
	}

	h.serve(r, conn, ident)
}

func (h *Handler) serve(r *http.Request, conn *websocket.Conn, ident auth.Identity) {
	ctx := r.Context()
	t := newTransport(conn, h.Log, h.opts.SendBuffer, timeouts.Write(), h.opts.PongWait)

	c, first := h.Registry.Register(ident.UserID, t, metadataFor(r, ident))
	greeting, err := json.Marshal(realtime.ConnectedEvent{
		Type:       realtime.TypeConnected,
		UserID:     c.UserID,
		DeviceInfo: c.Info(),
	})
	if err != nil {
		h.Log.Error("marshal connected frame", zap.Error(err))
	}
	t.start(greeting)

	h.Audit.SocketConnected(ctx, r, c.UserID, c.ID, c.DeviceID)
	h.Log.Info("socket connected",
		zap.String("conn_id", c.ID),
		zap.Int64("user_id", c.UserID),
		zap.String("device_id", c.DeviceID),
		zap.String("remote_addr", c.RemoteAddr))

	if first {
		h.Presence.Announce(ctx, c.UserID, true)
	}

	h.readLoop(ctx, conn, c)

	_ = t.Close(realtime.CloseNormal, "")
	if d, ok := h.Registry.Remove(c.ID); ok && d.LastForUser && !h.Registry.IsOnline(c.UserID) {
		h.Presence.Announce(context.WithoutCancel(ctx), c.UserID, false)
	}
	h.Log.Info("socket disconnected",
		zap.String("conn_id", c.ID),
		zap.Int64("user_id", c.UserID))
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, c *realtime.Connection) {
	pongWait := h.opts.PongWait
	conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				h.Log.Debug("socket read ended",
					zap.String("conn_id", c.ID),
					zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage {
			h.Metrics.FrameReceived("invalid")
			_ = h.Router.SendTo(ctx, c, realtime.ErrorEvent{
				Type:   realtime.TypeError,
				Error:  realtime.ErrTextInvalidFormat,
				Detail: "binary frames are not supported",
			})
			continue
		}
		h.Dispatcher.Handle(ctx, c, data)
	}
}

// reject closes an upgraded but unauthenticated socket. It is never
// registered, so no presence is announced.
func (h *Handler) reject(r *http.Request, conn *websocket.Conn, code int, text, reason string) {
	h.Metrics.HandshakeRejected(reason)
	h.Audit.SocketRejected(r.Context(), r, reason)
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.Write()))
	_ = conn.Close()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.opts.AllowedOrigins {
		allowed = strings.TrimSuffix(strings.TrimSpace(allowed), "/")
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	h.Log.Warn("socket origin rejected", zap.String("origin", origin))
	return false
}

const maxLabelBytes = 120

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func metadataFor(r *http.Request, ident auth.Identity) realtime.Metadata {
	q := r.URL.Query()
	device := ident.DeviceID
	if device == "" {
		device = strings.TrimSpace(q.Get("device"))
	}
	label := strings.TrimSpace(q.Get("label"))
	if label == "" {
		label = r.UserAgent()
	}
	label = truncateRunes(label, maxLabelBytes)
	return realtime.Metadata{
		DeviceID:    device,
		DeviceLabel: label,
		RemoteAddr:  ratelimit.ClientIP(r),
		UserAgent:   r.UserAgent(),
	}
}
