// internal/app/features/socket/transport.go
package socket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errClosed       = errors.New("socket: connection closed")
	errSlowConsumer = errors.New("socket: send buffer full")
)

// wsTransport adapts a gorilla connection to realtime.Transport.
//
// Frames are queued on send and written by a single pump goroutine, so a
// slow client never blocks the caller. The pump does not start until
// start is called with the greeting frame, which is always written first.
type wsTransport struct {
	conn *websocket.Conn
	log  *zap.Logger

	send chan []byte
	done chan struct{}

	writeWait  time.Duration
	pingPeriod time.Duration

	open      atomic.Bool
	closeOnce sync.Once
}

func newTransport(conn *websocket.Conn, logger *zap.Logger, buffer int, writeWait, pongWait time.Duration) *wsTransport {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if writeWait <= 0 {
		writeWait = DefaultWriteWait
	}
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}
	t := &wsTransport{
		conn:       conn,
		log:        logger,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		pingPeriod: pongWait * 9 / 10,
	}
	t.open.Store(true)
	return t
}

// start launches the write pump. greeting is written before anything that
// was queued in the meantime.
func (t *wsTransport) start(greeting []byte) {
	go t.writePump(greeting)
}

// Send queues data for the pump. A full queue closes the connection with
// a policy violation instead of blocking.
func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	if !t.IsOpen() {
		return errClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case t.send <- data:
		return nil
	case <-t.done:
		return errClosed
	default:
		go t.Close(realtime.ClosePolicyViolation, "slow consumer")
		return errSlowConsumer
	}
}

func (t *wsTransport) IsOpen() bool {
	return t.open.Load()
}

// Close sends a close frame with code and reason, then tears the socket
// down. Only the first call has any effect.
func (t *wsTransport) Close(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		t.open.Store(false)
		close(t.done)
		msg := websocket.FormatCloseMessage(code, reason)
		err = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))
		if cerr := t.conn.Close(); err == nil {
			err = cerr
		}
	})
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// abort tears the socket down without a close frame. Used after a write
// failure, when the peer is already unreachable.
func (t *wsTransport) abort() {
	t.closeOnce.Do(func() {
		t.open.Store(false)
		close(t.done)
		_ = t.conn.Close()
	})
}

func (t *wsTransport) writePump(greeting []byte) {
	ticker := time.NewTicker(t.pingPeriod)
	defer ticker.Stop()

	if greeting != nil && !t.write(websocket.TextMessage, greeting) {
		return
	}

	for {
		select {
		case <-t.done:
			return
		case msg := <-t.send:
			if !t.write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.C:
			if !t.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (t *wsTransport) write(messageType int, data []byte) bool {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		if t.IsOpen() {
			t.log.Debug("socket write failed", zap.Error(err))
		}
		t.abort()
		return false
	}
	return true
}
