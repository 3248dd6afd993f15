// internal/app/system/realtime/registry.go
package realtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"github.com/google/uuid"
)

// Departure describes a removed connection.
type Departure struct {
	Conn *Connection
	// LastForUser is true when the removal took the user offline.
	LastForUser bool
}

// Registry maps users to their live connections.
//
// One mutex guards both maps. No method performs transport I/O while
// holding it; closing transports happens after the lock is released.
type Registry struct {
	mu     sync.Mutex
	byUser map[int64]map[string]*Connection // never holds an empty set
	byID   map[string]*Connection
	seq    uint64

	now     func() time.Time
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		byUser:  make(map[int64]map[string]*Connection),
		byID:    make(map[string]*Connection),
		now:     time.Now,
		metrics: m,
	}
}

// Register stores a new connection for userID and returns it. first is
// true when the user had no other connection, i.e. the caller should
// announce the user online.
func (r *Registry) Register(userID int64, t Transport, md Metadata) (conn *Connection, first bool) {
	seed := deviceSeed(md.DeviceID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	conn = &Connection{
		ID:          fmt.Sprintf("%d-%s-%d", userID, seed, r.seq),
		UserID:      userID,
		DeviceID:    md.DeviceID,
		DeviceLabel: md.DeviceLabel,
		RemoteAddr:  md.RemoteAddr,
		UserAgent:   md.UserAgent,
		ConnectedAt: r.now().UTC(),
		seq:         r.seq,
		t:           t,
	}

	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]*Connection)
		r.byUser[userID] = set
	}
	set[conn.ID] = conn
	r.byID[conn.ID] = conn
	r.observeLocked()

	return conn, !ok
}

// Remove unregisters a connection. Unknown ids are a no-op and return
// false, since a disconnect can race with a sweep.
func (r *Registry) Remove(id string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.removeLocked(id)
	if ok {
		r.observeLocked()
	}
	return d, ok
}

func (r *Registry) removeLocked(id string) (Departure, bool) {
	conn, ok := r.byID[id]
	if !ok {
		return Departure{}, false
	}
	delete(r.byID, id)

	last := false
	if set, ok := r.byUser[conn.UserID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, conn.UserID)
			last = true
		}
	}
	return Departure{Conn: conn, LastForUser: last}, true
}

// ConnectionsOf returns a copy of the user's current connections, ordered
// by registration. The result is never affected by later changes.
func (r *Registry) ConnectionsOf(userID int64) []*Connection {
	r.mu.Lock()
	set := r.byUser[userID]
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	r.mu.Unlock()

	sortConnections(out)
	return out
}

// IsOnline reports whether the user has at least one registered connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[userID]
	return ok
}

// SweepDead removes every connection whose transport is no longer open and
// returns what it removed. Transports are closed after the lock is released.
func (r *Registry) SweepDead() []Departure {
	r.mu.Lock()
	var dead []string
	for id, c := range r.byID {
		if !c.Open() {
			dead = append(dead, id)
		}
	}
	sort.Strings(dead)

	out := make([]Departure, 0, len(dead))
	for _, id := range dead {
		if d, ok := r.removeLocked(id); ok {
			out = append(out, d)
		}
	}
	if len(out) > 0 {
		r.observeLocked()
	}
	r.mu.Unlock()

	for _, d := range out {
		_ = d.Conn.t.Close(CloseGoingAway, "connection lost")
	}
	return out
}

// Snapshot returns every registered connection, ordered by registration.
func (r *Registry) Snapshot() []*Connection {
	r.mu.Lock()
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.Unlock()

	sortConnections(out)
	return out
}

// OnlineUsers returns the ids of users with at least one connection, ascending.
func (r *Registry) OnlineUsers() []int64 {
	r.mu.Lock()
	out := make([]int64, 0, len(r.byUser))
	for uid := range r.byUser {
		out = append(out, uid)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of connections and of online users.
func (r *Registry) Count() (connections, users int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), len(r.byUser)
}

// CloseAll unregisters every connection and closes its transport with the
// given code. It returns the number of connections closed.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	all := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		all = append(all, c)
	}
	r.byID = make(map[string]*Connection)
	r.byUser = make(map[int64]map[string]*Connection)
	r.observeLocked()
	r.mu.Unlock()

	for _, c := range all {
		_ = c.t.Close(code, reason)
	}
	return len(all)
}

func (r *Registry) observeLocked() {
	r.metrics.SetPopulation(len(r.byID), len(r.byUser))
}

func sortConnections(cs []*Connection) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].seq < cs[j].seq })
}

// deviceSeed returns a short id-safe token for the connection id: the
// device id when it is usable, otherwise a random prefix.
func deviceSeed(deviceID string) string {
	var b strings.Builder
	for _, r := range deviceID {
		if b.Len() >= 16 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
