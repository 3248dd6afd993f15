package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/todomessages"
	"github.com/dalemusser/labflow/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport records frames in memory.
type fakeTransport struct {
	mu        sync.Mutex
	open      bool
	frames    [][]byte
	sendErr   error
	closeCode int
	closes    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: true}
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.open {
		return errTransportClosed
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) Close(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.open = false
		f.closeCode = code
	}
	f.closes++
	return nil
}

// kill marks the transport dead without a close handshake, like a dropped network.
func (f *fakeTransport) kill() {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTransport) decoded(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, b := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("frame is not JSON: %s", b)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeTransport) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.decoded(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	reg      *Registry
	router   *Router
	presence *Presence
}

func newFixture() fixture {
	reg := NewRegistry(nil)
	router := NewRouter(reg, zap.NewNop(), nil, time.Second)
	return fixture{
		reg:      reg,
		router:   router,
		presence: NewPresence(router, zap.NewNop()),
	}
}

// connect mirrors the socket handler: register, then announce on a true edge.
func (fx fixture) connect(userID int64) (*Connection, *fakeTransport) {
	tr := newFakeTransport()
	conn, first := fx.reg.Register(userID, tr, Metadata{})
	if first {
		fx.presence.Announce(context.Background(), userID, true)
	}
	return conn, tr
}

// disconnect mirrors the socket handler's exit path.
func (fx fixture) disconnect(conn *Connection) {
	if d, ok := fx.reg.Remove(conn.ID); ok && d.LastForUser {
		fx.presence.Announce(context.Background(), conn.UserID, false)
	}
}

// --- in-memory stores ---

type memChats struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
	err  error
}

func (s *memChats) Create(_ context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.ChatMessage{}, s.err
	}
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now().UTC()
	s.msgs = append(s.msgs, m)
	return m, nil
}

type memTodos struct {
	mu   sync.Mutex
	msgs map[primitive.ObjectID]models.TodoMessage
	err  error
}

func newMemTodos() *memTodos {
	return &memTodos{msgs: make(map[primitive.ObjectID]models.TodoMessage)}
}

func (s *memTodos) Create(_ context.Context, m models.TodoMessage) (models.TodoMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.TodoMessage{}, s.err
	}
	m.ID = primitive.NewObjectID()
	m.Status = models.TodoPending
	if m.Priority == "" {
		m.Priority = models.PriorityMedium
	}
	m.CreatedAt = time.Now().UTC()
	s.msgs[m.ID] = m
	return m, nil
}

func (s *memTodos) MarkRead(_ context.Context, id primitive.ObjectID, recipientID int64, at time.Time) (models.TodoMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.TodoMessage{}, false, s.err
	}
	m, ok := s.msgs[id]
	if !ok || m.RecipientID != recipientID {
		return models.TodoMessage{}, false, todomessages.ErrNotFound
	}
	if m.Status != models.TodoPending {
		return m, false, nil
	}
	at = at.UTC()
	m.Status = models.TodoRead
	m.ReadAt = &at
	s.msgs[id] = m
	return m, true, nil
}

func (s *memTodos) UpdateStatus(_ context.Context, id primitive.ObjectID, recipientID int64, next string, at time.Time) (models.TodoMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok || m.RecipientID != recipientID {
		return models.TodoMessage{}, false, todomessages.ErrNotFound
	}
	if !models.CanAdvance(m.Status, next) {
		return models.TodoMessage{}, false, todomessages.ErrInvalidTransition
	}
	if m.Status == next {
		return m, false, nil
	}
	m.Status = next
	if m.ReadAt == nil {
		m.ReadAt = &at
	}
	if next == models.TodoCompleted {
		m.CompletedAt = &at
	}
	s.msgs[id] = m
	return m, true, nil
}

func (s *memTodos) all() []models.TodoMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TodoMessage, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m)
	}
	return out
}

type staticNames map[int64]string

func (n staticNames) NameOf(_ context.Context, id int64) (string, error) {
	if name, ok := n[id]; ok {
		return name, nil
	}
	return "", errors.New("no such user")
}
