// Package channel owns the persistent websocket connection to the server:
// it establishes, tears down and automatically re-establishes the
// connection, queues outbound frames while disconnected, and feeds inbound
// frames to the dispatcher in arrival order.
package channel

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agora/internal/models"
)

// State of the channel. Reconnect attempts build a new connection value;
// a closed connection is never reused.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return "unknown"
}

const (
	// DefaultReconnectDelay is the fixed wait between reconnect attempts.
	DefaultReconnectDelay = 5 * time.Second
	// DefaultMaxReconnectAttempts bounds automatic reconnection; an
	// explicit Connect resets the counter.
	DefaultMaxReconnectAttempts = 5
)

// Config wires a Manager. URL is the websocket endpoint without the
// session_token query parameter.
type Config struct {
	URL        string
	Dispatcher *Dispatcher
	Logger     *zap.Logger

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// OnUnauthorized fires when the server signals that the session
	// credential is no longer valid. The channel is already closed and
	// will not reconnect; session invalidation is the caller's job.
	OnUnauthorized func()

	// OnReconnectExhausted fires once the reconnect budget is spent.
	OnReconnectExhausted func()

	// Dialer overrides the websocket dialer, used by tests.
	Dialer *websocket.Dialer
}

// Manager is the single owner of the channel lifecycle. All state lives on
// the instance so independent managers can coexist (and be tested) freely.
type Manager struct {
	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	token    string
	queue    outboundQueue
	attempts int
	closing  bool
	unauth   bool
	gen      int
	timer    *time.Timer

	url            string
	dialer         *websocket.Dialer
	dispatcher     *Dispatcher
	log            *zap.Logger
	reconnectDelay time.Duration
	maxAttempts    int
	onUnauthorized func()
	onExhausted    func()
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		state:          Disconnected,
		url:            cfg.URL,
		dialer:         cfg.Dialer,
		dispatcher:     cfg.Dispatcher,
		log:            cfg.Logger,
		reconnectDelay: cfg.ReconnectDelay,
		maxAttempts:    cfg.MaxReconnectAttempts,
		onUnauthorized: cfg.OnUnauthorized,
		onExhausted:    cfg.OnReconnectExhausted,
	}
	if m.dialer == nil {
		m.dialer = websocket.DefaultDialer
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = DefaultReconnectDelay
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxReconnectAttempts
	}
	return m
}

// State returns the current channel state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QueueLen returns the number of frames waiting for the next flush.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Connect opens the channel using the given session credential. It is a
// no-op while a connection is already open or being established. An empty
// credential is a caller bug; it is logged and ignored rather than
// surfaced, matching the precondition contract.
func (m *Manager) Connect(token string) {
	if token == "" {
		m.log.Error("no session credential provided for channel connect")
		return
	}

	m.mu.Lock()
	if m.state == Open || m.state == Connecting {
		m.log.Debug("channel already active, ignoring connect", zap.Stringer("state", m.state))
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.token = token
	m.attempts = 0
	m.closing = false
	m.unauth = false
	m.state = Connecting
	m.mu.Unlock()

	go m.dial()
}

func (m *Manager) dial() {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	endpoint := m.url + "?session_token=" + url.QueryEscape(token)
	conn, resp, err := m.dialer.Dial(endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.log.Warn("channel dial failed", zap.Error(err))
		m.mu.Lock()
		m.state = Disconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = Open
	m.attempts = 0
	m.gen++
	gen := m.gen

	// Prime the roster first, then flush everything queued while
	// disconnected, strictly in enqueue order. Holding the lock here
	// means frames sent after Connect observe the flushed queue ahead
	// of them. A write failure puts the unsent tail back in front.
	_ = m.writeLocked(models.Frame{Type: models.FrameRequestUserStatus})
	pending := m.queue.drain()
	for i, f := range pending {
		if err := m.writeLocked(f); err != nil {
			m.queue.restore(pending[i:])
			break
		}
	}
	m.mu.Unlock()

	m.log.Info("channel open")
	go m.readLoop(conn, gen)
}

// Send transmits the frame immediately when the channel is open and queues
// it otherwise. Queued frames survive disconnects until flushed.
func (m *Manager) Send(frame models.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Open && m.conn != nil {
		_ = m.writeLocked(frame)
		return
	}
	m.log.Debug("channel not open, queueing frame", zap.String("type", string(frame.Type)))
	m.queue.push(frame)
}

// writeLocked must be called with m.mu held and m.conn non-nil.
func (m *Manager) writeLocked(frame models.Frame) error {
	err := m.conn.WriteJSON(frame)
	if err != nil {
		m.log.Warn("channel write failed", zap.String("type", string(frame.Type)), zap.Error(err))
	}
	return err
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	normal := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			normal = websocket.IsCloseError(err, websocket.CloseNormalClosure)
			if !normal && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway) {
				m.log.Warn("channel read error", zap.Error(err))
			}
			break
		}
		if m.interceptUnauthorized(raw) {
			m.dispatcher.Dispatch(raw)
			break
		}
		m.dispatcher.Dispatch(raw)
	}

	m.mu.Lock()
	if gen != m.gen {
		// A newer connection already superseded this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = Disconnected
	if m.closing || m.unauth || normal {
		m.mu.Unlock()
		return
	}
	m.scheduleReconnectLocked()
	m.mu.Unlock()
}

// interceptUnauthorized inspects inbound error frames for the server's
// unauthorized signal. Returns true when the channel must shut down.
func (m *Manager) interceptUnauthorized(raw []byte) bool {
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != models.FrameError {
		return false
	}
	var payload models.ErrorPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return false
	}
	if payload.Message != "Unauthorized" {
		return false
	}

	m.log.Warn("server rejected session credential, closing channel")
	m.mu.Lock()
	m.unauth = true
	m.token = ""
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if m.onUnauthorized != nil {
		m.onUnauthorized()
	}
	return true
}

// scheduleReconnectLocked must be called with m.mu held.
func (m *Manager) scheduleReconnectLocked() {
	m.attempts++
	if m.attempts > m.maxAttempts {
		m.log.Error("reconnect attempts exhausted", zap.Int("attempts", m.attempts-1))
		if m.onExhausted != nil {
			go m.onExhausted()
		}
		return
	}
	m.log.Info("scheduling reconnect",
		zap.Int("attempt", m.attempts),
		zap.Int("max", m.maxAttempts),
		zap.Duration("delay", m.reconnectDelay))
	m.timer = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		if m.closing || m.unauth || m.state != Disconnected {
			m.mu.Unlock()
			return
		}
		m.state = Connecting
		m.mu.Unlock()
		m.dial()
	})
}

// Close performs a normal closure (logout). No reconnection follows; any
// still-queued frames stay queued for a later explicit Connect.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closing = true
	m.token = ""
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	if conn != nil {
		m.state = Closing
	}
	m.mu.Unlock()

	if conn == nil {
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		return
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	m.mu.Lock()
	m.conn = nil
	m.state = Disconnected
	m.mu.Unlock()
}
