package realtime

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parking-terminal-cli/model"
)

const (
	defaultReconnectDelay = 3 * time.Second
	defaultMaxReconnects  = 5
	writeTimeout          = 10 * time.Second
)

// Callbacks receive protocol events. They are invoked from the manager's
// read goroutine, so anything they touch must be safe to share with the
// caller's own goroutine.
type Callbacks struct {
	OnZoneUpdate       func(model.ZoneUpdate)
	OnAdminUpdate      func(model.AdminUpdate)
	OnConnectionChange func(connected bool)
}

// Options tune a ConnectionManager. The zero value gets sane defaults.
type Options struct {
	URL            string
	ReconnectDelay time.Duration
	MaxReconnects  int
	Logger         *slog.Logger
}

// ConnectionManager owns one socket subscribed to one gate. It dials,
// subscribes, and keeps reconnecting after drops: a fixed delay between
// attempts, bounded by MaxReconnects consecutive failures, after which it
// goes quiet apart from a log line. The connectivity indicator toggled
// through OnConnectionChange is the only surface the UI sees.
//
// A screen watching several gates runs one manager per gate; managers share
// nothing, retry counters included.
type ConnectionManager struct {
	gateID string
	cb     Callbacks
	logger *slog.Logger
	connID string

	url            string
	reconnectDelay time.Duration
	maxReconnects  int

	dial func() (*websocket.Conn, error)

	mu       sync.Mutex
	conn     *websocket.Conn
	attempts int
	timer    *time.Timer
	closed   bool
}

// NewConnectionManager builds a manager for one gate. Call Start to dial.
func NewConnectionManager(gateID string, cb Callbacks, opts Options) *ConnectionManager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = defaultMaxReconnects
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &ConnectionManager{
		gateID:         gateID,
		cb:             cb,
		connID:         uuid.NewString(),
		url:            opts.URL,
		reconnectDelay: opts.ReconnectDelay,
		maxReconnects:  opts.MaxReconnects,
	}
	m.logger = logger.With("gate", gateID, "conn", m.connID)
	m.dial = func() (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.Dial(m.url, nil)
		return conn, err
	}
	return m
}

// Start makes the first connection attempt. It returns immediately; the
// read loop runs on its own goroutine and connectivity is reported through
// OnConnectionChange.
func (m *ConnectionManager) Start() {
	m.connect()
}

func (m *ConnectionManager) connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	conn, err := m.dial()
	if err != nil {
		m.logger.Warn("dial failed", "error", err)
		m.notifyConnection(false)
		m.scheduleReconnect()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.attempts = 0
	m.mu.Unlock()

	m.notifyConnection(true)

	// Subscription is explicit, never implied by the connection itself.
	if err := m.sendSubscribe(conn); err != nil {
		m.logger.Warn("subscribe failed", "error", err)
		_ = conn.Close()
		m.notifyConnection(false)
		m.scheduleReconnect()
		return
	}

	go m.readLoop(conn)
}

func (m *ConnectionManager) sendSubscribe(conn *websocket.Conn) error {
	frame, err := subscribeFrame(m.gateID)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("socket closed", "error", err)
			}
			break
		}
		dispatch(frame, m.cb, m.logger)
	}

	_ = conn.Close()

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	m.notifyConnection(false)
	m.scheduleReconnect()
}

func (m *ConnectionManager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.attempts >= m.maxReconnects {
		m.logger.Error("max reconnection attempts reached, giving up")
		return
	}
	m.attempts++
	m.timer = time.AfterFunc(m.reconnectDelay, m.connect)
}

func (m *ConnectionManager) notifyConnection(connected bool) {
	if m.cb.OnConnectionChange != nil {
		m.cb.OnConnectionChange(connected)
	}
}

// Disconnect tears the connection down and cancels any pending reconnect.
// Safe to call more than once; nothing fires after it returns.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}
