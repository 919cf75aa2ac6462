package channel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agora/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer is a minimal forum server stand-in: it records session tokens,
// collects inbound frames in arrival order, and can push frames or drop
// the connection.
type wsServer struct {
	t        *testing.T
	srv      *httptest.Server
	received chan models.Frame
	tokens   chan string
	dials    atomic.Int32

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{
		t:        t,
		received: make(chan models.Frame, 64),
		tokens:   make(chan string, 8),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) handle(w http.ResponseWriter, r *http.Request) {
	s.tokens <- r.URL.Query().Get("session_token")
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.dials.Add(1)
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.received <- frame
	}
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

func (s *wsServer) active() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

// dropActive severs the connection without a close handshake, which the
// client observes as an abnormal closure.
func (s *wsServer) dropActive() {
	if conn := s.active(); conn != nil {
		_ = conn.Close()
	}
}

func (s *wsServer) push(t *testing.T, frame models.Frame) {
	t.Helper()
	conn := s.active()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteJSON(frame))
}

func (s *wsServer) nextFrame(t *testing.T) models.Frame {
	t.Helper()
	select {
	case f := <-s.received:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return models.Frame{}
	}
}

func newTestManager(t *testing.T, url string, opts func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		URL:                  url,
		Dispatcher:           NewDispatcher(zap.NewNop()),
		Logger:               zap.NewNop(),
		ReconnectDelay:       20 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}
	if opts != nil {
		opts(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Close)
	return m
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want },
		2*time.Second, 5*time.Millisecond, "waiting for state %s", want)
}

func textFrame(t *testing.T, content string) models.Frame {
	t.Helper()
	f, err := models.NewFrame(models.FramePrivateMessage, models.PrivateMessage{Content: content})
	require.NoError(t, err)
	return f
}

func TestQueuedFramesFlushInFIFOOrderOnOpen(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	// all of these are issued while disconnected
	for _, content := range []string{"one", "two", "three"} {
		m.Send(textFrame(t, content))
	}
	require.Equal(t, 3, m.QueueLen())

	m.Connect("tok-1")
	waitForState(t, m, Open)

	// the presence refresh goes out first, then the queue in enqueue order
	require.Equal(t, models.FrameRequestUserStatus, srv.nextFrame(t).Type)
	for _, want := range []string{"one", "two", "three"} {
		frame := srv.nextFrame(t)
		require.Equal(t, models.FramePrivateMessage, frame.Type)
		var pm models.PrivateMessage
		require.NoError(t, json.Unmarshal(frame.Data, &pm))
		require.Equal(t, want, pm.Content)
	}
	require.Equal(t, 0, m.QueueLen())

	// frames sent after open go out behind the flushed queue
	m.Send(textFrame(t, "four"))
	frame := srv.nextFrame(t)
	var pm models.PrivateMessage
	require.NoError(t, json.Unmarshal(frame.Data, &pm))
	require.Equal(t, "four", pm.Content)
}

func TestConnectCarriesCredential(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("tok-abc")
	waitForState(t, m, Open)
	require.Equal(t, "tok-abc", <-srv.tokens)
}

func TestConnectIsNoOpWhileOpen(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("tok-1")
	waitForState(t, m, Open)

	m.Connect("tok-1")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), srv.dials.Load())
	require.Equal(t, Open, m.State())
}

func TestConnectWithoutCredentialIsIgnored(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, Disconnected, m.State())
	require.Equal(t, int32(0), srv.dials.Load())
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("tok-1")
	waitForState(t, m, Open)
	require.Equal(t, models.FrameRequestUserStatus, srv.nextFrame(t).Type)

	srv.dropActive()
	require.Eventually(t, func() bool { return srv.dials.Load() == 2 },
		2*time.Second, 5*time.Millisecond)
	waitForState(t, m, Open)

	// every (re)connect primes the roster again
	require.Equal(t, models.FrameRequestUserStatus, srv.nextFrame(t).Type)
}

func TestQueueSurvivesTransientDisconnect(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("tok-1")
	waitForState(t, m, Open)
	require.Equal(t, models.FrameRequestUserStatus, srv.nextFrame(t).Type)

	srv.dropActive()
	waitForState(t, m, Disconnected)

	m.Send(textFrame(t, "held back"))
	require.Equal(t, 1, m.QueueLen())

	waitForState(t, m, Open)
	require.Equal(t, models.FrameRequestUserStatus, srv.nextFrame(t).Type)
	frame := srv.nextFrame(t)
	var pm models.PrivateMessage
	require.NoError(t, json.Unmarshal(frame.Data, &pm))
	require.Equal(t, "held back", pm.Content)
}

func TestReconnectStopsAfterMaxAttempts(t *testing.T) {
	// a server that is already gone: every dial fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()

	exhausted := make(chan struct{}, 1)
	m := newTestManager(t, url, func(cfg *Config) {
		cfg.MaxReconnectAttempts = 3
		cfg.ReconnectDelay = 10 * time.Millisecond
		cfg.OnReconnectExhausted = func() { exhausted <- struct{}{} }
	})

	m.Send(textFrame(t, "still here afterwards"))
	m.Connect("tok-1")

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect exhaustion never surfaced")
	}
	require.Equal(t, Disconnected, m.State())
	// the queue is not dropped by failed reconnects
	require.Equal(t, 1, m.QueueLen())

	// no further automatic attempts; only a fresh Connect resets the budget
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, Disconnected, m.State())
}

func TestAttemptCounterResetsOnOpen(t *testing.T) {
	srv := newWSServer(t)

	exhausted := make(chan struct{}, 1)
	m := newTestManager(t, srv.url(), func(cfg *Config) {
		cfg.MaxReconnectAttempts = 1
		cfg.ReconnectDelay = 10 * time.Millisecond
		cfg.OnReconnectExhausted = func() { exhausted <- struct{}{} }
	})

	m.Connect("tok-1")
	waitForState(t, m, Open)

	// with a budget of one, repeated drops only survive if each
	// successful reopen resets the counter to zero
	for i := 0; i < 3; i++ {
		srv.dropActive()
		require.Eventually(t, func() bool { return srv.dials.Load() == int32(i+2) },
			2*time.Second, 5*time.Millisecond)
		waitForState(t, m, Open)
	}

	select {
	case <-exhausted:
		t.Fatal("budget exhausted despite successful reconnects")
	default:
	}
}

func TestUnauthorizedClosesWithoutReconnect(t *testing.T) {
	srv := newWSServer(t)

	unauthorized := make(chan struct{}, 1)
	m := newTestManager(t, srv.url(), func(cfg *Config) {
		cfg.OnUnauthorized = func() { unauthorized <- struct{}{} }
	})

	m.Connect("tok-expired")
	waitForState(t, m, Open)

	errFrame, err := models.NewFrame(models.FrameError, models.ErrorPayload{Message: "Unauthorized"})
	require.NoError(t, err)
	srv.push(t, errFrame)

	select {
	case <-unauthorized:
	case <-time.After(2 * time.Second):
		t.Fatal("unauthorized signal never surfaced")
	}
	waitForState(t, m, Disconnected)

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), srv.dials.Load())
	require.Equal(t, Disconnected, m.State())
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	srv := newWSServer(t)
	m := newTestManager(t, srv.url(), nil)

	m.Connect("tok-1")
	waitForState(t, m, Open)

	m.Close()
	waitForState(t, m, Disconnected)

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), srv.dials.Load())
}

func TestInboundFramesDispatchInArrivalOrder(t *testing.T) {
	srv := newWSServer(t)

	var mu sync.Mutex
	var got []string
	dispatcher := NewDispatcher(zap.NewNop())
	dispatcher.Register(models.FramePost, func(data json.RawMessage) error {
		var p models.Post
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, p.ID)
		mu.Unlock()
		return nil
	})

	m := newTestManager(t, srv.url(), func(cfg *Config) {
		cfg.Dispatcher = dispatcher
	})
	m.Connect("tok-1")
	waitForState(t, m, Open)

	for _, id := range []string{"p1", "p2", "p3"} {
		f, err := models.NewFrame(models.FramePost, models.Post{ID: id})
		require.NoError(t, err)
		srv.push(t, f)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"p1", "p2", "p3"}, got)
}
