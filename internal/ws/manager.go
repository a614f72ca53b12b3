package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cinder/internal/models"

	"github.com/gorilla/websocket"
)

type socketConn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

type dialer interface {
	Dial(ctx context.Context, url string) (socketConn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(ctx context.Context, url string) (socketConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Manager owns at most one live push connection, bound to a user identity.
// Connecting with a new identity tears the old session down first; transport
// errors are logged and recovered by the bounded reconnect loop, never
// surfaced to callers. Callers tolerate missed events by re-fetching
// canonical state periodically.
type Manager struct {
	cfg    Config
	dialer dialer

	mu        sync.Mutex
	userID    string
	conn      socketConn
	connected bool
	cancel    context.CancelFunc
	gen       int
	listeners map[string]func(models.Notification)
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		dialer:    gorillaDialer{},
		listeners: make(map[string]func(models.Notification)),
	}
}

// Connect binds the manager to userID and starts the session loop. Calling
// it again with the same identity while the session is alive is a no-op.
// Once a session has ended, whether by Disconnect or a spent reconnect
// budget, Connect starts a fresh one. Any live session bound to another
// identity is torn down first so the new session starts from a clean slate.
func (m *Manager) Connect(ctx context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil && m.userID == userID {
		return
	}

	m.teardownLocked()
	m.userID = userID
	m.gen++

	sessionCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.run(sessionCtx, userID, m.gen)
}

// Disconnect tears down the active session, if any. Safe to call when
// already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.userID = ""
	m.gen++
}

func (m *Manager) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.connected = false
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnNotification registers cb under key. Registering the same key again
// replaces the previous callback, so an event is delivered at most once
// per key no matter how many times registration ran.
func (m *Manager) OnNotification(key string, cb func(models.Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[key] = cb
}

func (m *Manager) OffNotification(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, key)
}

// run dials, joins and reads until the session context is canceled or the
// reconnect budget is spent. The join event is emitted once per physical
// connect so the server re-associates the identity after every drop.
func (m *Manager) run(ctx context.Context, userID string, gen int) {
	defer m.sessionEnded(gen)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dialer.Dial(ctx, m.cfg.URL)
		if err != nil {
			attempts++
			if attempts > m.cfg.ReconnectAttempts {
				slog.Error("websocket reconnect budget spent", "attempts", attempts, "error", err)
				return
			}
			slog.Warn("websocket connect failed", "attempt", attempts, "error", err)
			select {
			case <-time.After(m.cfg.ReconnectDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		attempts = 0

		if !m.adopt(conn, gen) {
			_ = conn.Close()
			return
		}

		if err := conn.WriteJSON(models.ClientEvent{Type: models.ClientEventTypeJoin, UserID: userID}); err != nil {
			slog.Error("failed to send join", "user_id", userID, "error", err)
			m.drop(conn, gen)
			continue
		}

		if err := m.readLoop(ctx, conn); err != nil && ctx.Err() == nil {
			slog.Warn("websocket connection dropped", "error", err)
		}
		m.drop(conn, gen)
	}
}

// sessionEnded clears the session handle when the run loop exits on its own,
// so a later explicit Connect with the same identity dials again instead of
// hitting the same-identity no-op. Guarded by gen: a session that was already
// replaced must not touch its successor's state.
func (m *Manager) sessionEnded(gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.conn = nil
	m.connected = false
}

// adopt installs conn as the live connection if this session is still the
// current one. A false return means the session was replaced mid-dial.
func (m *Manager) adopt(conn socketConn, gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	m.conn = conn
	m.connected = true
	return true
}

func (m *Manager) drop(conn socketConn, gen int) {
	_ = conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen && m.conn == conn {
		m.conn = nil
		m.connected = false
	}
}

func (m *Manager) readLoop(ctx context.Context, conn socketConn) error {
	for {
		var event models.ServerEvent
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if event.Type == models.ServerEventTypeNotification && event.Notification != nil {
			m.dispatch(*event.Notification)
		}
	}
}

// dispatch fans an event out to the registered listeners. Events are
// delivered in arrival order because there is a single reader goroutine.
func (m *Manager) dispatch(n models.Notification) {
	m.mu.Lock()
	cbs := make([]func(models.Notification), 0, len(m.listeners))
	for _, cb := range m.listeners {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()

	for _, cb := range cbs {
		cb(n)
	}
}
