package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tutorbase/realtime/internal/auth"
	"github.com/tutorbase/realtime/internal/backoff"
	"github.com/tutorbase/realtime/internal/model"
	"github.com/tutorbase/realtime/internal/router"
	"github.com/tutorbase/realtime/internal/subscription"
)

// countingWSServer counts upgrades and hands each connection to handler
// along with its 1-based sequence number.
func countingWSServer(t *testing.T, handler func(conn *websocket.Conn, n int64)) (*httptest.Server, *atomic.Int64) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var upgrades atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := upgrades.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, n)
	}))

	return server, &upgrades
}

func testManagerConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.UserID = 42
	cfg.Policy = backoff.Policy{
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Factor:       2.0,
		MaxAttempts:  5,
	}
	return cfg
}

func newTestManager(cfg ManagerConfig) (*Manager, *subscription.Registry) {
	reg := subscription.NewRegistry()
	rt := router.New(reg, nil, nil)
	m := NewManager(cfg, auth.Static("test-token", time.Time{}), reg, rt, nil)
	return m, reg
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func holdOpen(conn *websocket.Conn, _ int64) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestManager_ConnectIdempotent(t *testing.T) {
	server, upgrades := countingWSServer(t, holdOpen)
	defer server.Close()

	m, _ := newTestManager(testManagerConfig())
	defer m.Disconnect()

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !m.Connected() {
		t.Fatal("not connected after Connect")
	}

	// Second connect while Open is a no-op.
	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Errorf("second Connect = %v, want nil", err)
	}

	if got := upgrades.Load(); got != 1 {
		t.Errorf("transport attempts = %d, want 1", got)
	}
}

func TestManager_AuthErrorNoTransportAttempt(t *testing.T) {
	server, upgrades := countingWSServer(t, holdOpen)
	defer server.Close()

	var gotErr error
	cfg := testManagerConfig()
	cfg.OnError = func(err error) { gotErr = err }

	reg := subscription.NewRegistry()
	m := NewManager(cfg, auth.Static("", time.Time{}), reg, router.New(reg, nil, nil), nil)

	err := m.Connect(context.Background(), wsURL(server))
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("Connect = %v, want ErrNoToken", err)
	}

	if got := upgrades.Load(); got != 0 {
		t.Errorf("transport attempts = %d, want 0", got)
	}
	if m.State() != StateFailed {
		t.Errorf("state = %s, want failed", m.State())
	}
	if !errors.Is(m.Err(), ErrNoToken) {
		t.Errorf("Err() = %v, want ErrNoToken", m.Err())
	}
	if !errors.Is(gotErr, ErrNoToken) {
		t.Errorf("OnError got %v, want ErrNoToken", gotErr)
	}

	// No retry timer was armed for the auth failure.
	time.Sleep(100 * time.Millisecond)
	if got := upgrades.Load(); got != 0 {
		t.Errorf("transport attempts after backoff window = %d, want 0", got)
	}
}

func TestManager_ExpiredTokenIsAuthError(t *testing.T) {
	server, upgrades := countingWSServer(t, holdOpen)
	defer server.Close()

	reg := subscription.NewRegistry()
	tokens := auth.Static("stale", time.Now().Add(-time.Minute))
	m := NewManager(testManagerConfig(), tokens, reg, router.New(reg, nil, nil), nil)

	if err := m.Connect(context.Background(), wsURL(server)); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Connect with expired token = %v, want ErrNoToken", err)
	}
	if got := upgrades.Load(); got != 0 {
		t.Errorf("transport attempts = %d, want 0", got)
	}
}

func TestManager_ResubscribeOnConnect(t *testing.T) {
	frames := make(chan []byte, 16)
	server, _ := countingWSServer(t, func(conn *websocket.Conn, _ int64) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- data
		}
	})
	defer server.Close()

	m, _ := newTestManager(testManagerConfig())
	defer m.Disconnect()

	// Subscribing while disconnected is legal and takes effect on open.
	m.Subscribe(model.TopicBalanceUpdate, func(model.Message) {})

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case data := <-frames:
		var cmd model.SubscribeCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("decode subscribe command: %v", err)
		}
		if cmd.Type != "subscribe" {
			t.Errorf("Type = %q, want subscribe", cmd.Type)
		}
		if cmd.Data.UserID != 42 {
			t.Errorf("UserID = %d, want 42", cmd.Data.UserID)
		}
		if len(cmd.Data.SubscriptionTypes) != 1 || cmd.Data.SubscriptionTypes[0] != model.TopicBalanceUpdate {
			t.Errorf("SubscriptionTypes = %v, want [%s]", cmd.Data.SubscriptionTypes, model.TopicBalanceUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("no subscribe command received")
	}

	// Exactly one control message per open.
	select {
	case extra := <-frames:
		t.Errorf("unexpected extra frame: %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManager_ReconnectResetsAttemptAndResubscribes(t *testing.T) {
	subscribes := make(chan []byte, 16)
	server, upgrades := countingWSServer(t, func(conn *websocket.Conn, n int64) {
		if n == 1 {
			// First connection: record the subscribe, then drop abruptly.
			if _, data, err := conn.ReadMessage(); err == nil {
				subscribes <- data
			}
			conn.Close()
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subscribes <- data
		}
	})
	defer server.Close()

	m, _ := newTestManager(testManagerConfig())
	defer m.Disconnect()

	m.Subscribe(model.TopicMetricsUpdate, func(model.Message) {})

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	<-subscribes // subscribe on first connection

	waitFor(t, 2*time.Second, "reconnect", func() bool {
		return upgrades.Load() >= 2 && m.Connected()
	})

	// Subscriptions survive the reconnect: re-sent, not recreated.
	select {
	case data := <-subscribes:
		var cmd model.SubscribeCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("decode subscribe command: %v", err)
		}
		if len(cmd.Data.SubscriptionTypes) != 1 || cmd.Data.SubscriptionTypes[0] != model.TopicMetricsUpdate {
			t.Errorf("replayed topics = %v, want [%s]", cmd.Data.SubscriptionTypes, model.TopicMetricsUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("no subscribe replay after reconnect")
	}

	// Attempt counter resets on every successful open.
	if got := m.Stats().Attempt; got != 0 {
		t.Errorf("attempt counter after reopen = %d, want 0", got)
	}
}

func TestManager_DisconnectCancelsRetry(t *testing.T) {
	server, upgrades := countingWSServer(t, func(conn *websocket.Conn, _ int64) {
		conn.Close()
	})
	defer server.Close()

	cfg := testManagerConfig()
	cfg.Policy.InitialDelay = 80 * time.Millisecond

	m, _ := newTestManager(cfg)

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Wait for the drop to be noticed and a retry to be scheduled.
	waitFor(t, time.Second, "closed state", func() bool {
		return m.State() == StateClosed
	})

	if err := m.Disconnect(); err != nil {
		t.Errorf("Disconnect failed: %v", err)
	}

	// Waiting past any backoff window never results in a reconnect.
	time.Sleep(250 * time.Millisecond)
	if got := upgrades.Load(); got != 1 {
		t.Errorf("transport attempts after disconnect = %d, want 1", got)
	}
	if m.State() != StateClosed {
		t.Errorf("state = %s, want closed", m.State())
	}
}

func TestManager_AttemptsExhausted(t *testing.T) {
	// A server that is already gone: every dial fails.
	server, _ := countingWSServer(t, holdOpen)
	endpoint := wsURL(server)
	server.Close()

	var mu sync.Mutex
	var gotErr error
	cfg := testManagerConfig()
	cfg.Policy = backoff.Policy{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Factor:       2.0,
		MaxAttempts:  2,
	}
	cfg.OnError = func(err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
	}

	m, _ := newTestManager(cfg)

	if err := m.Connect(context.Background(), endpoint); err == nil {
		t.Fatal("Connect to dead server succeeded")
	}

	waitFor(t, 2*time.Second, "failed state", func() bool {
		return m.State() == StateFailed
	})

	if !errors.Is(m.Err(), ErrAttemptsExhausted) {
		t.Errorf("Err() = %v, want ErrAttemptsExhausted", m.Err())
	}
	mu.Lock()
	if !errors.Is(gotErr, ErrAttemptsExhausted) {
		t.Errorf("OnError got %v, want ErrAttemptsExhausted", gotErr)
	}
	mu.Unlock()

	// Terminal: no further automatic action.
	time.Sleep(100 * time.Millisecond)
	if m.State() != StateFailed {
		t.Errorf("state left failed: %s", m.State())
	}
}

func TestManager_SendNotConnected(t *testing.T) {
	m, _ := newTestManager(testManagerConfig())

	if err := m.Send(map[string]string{"type": "ping"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send while idle = %v, want ErrNotConnected", err)
	}
}

func TestManager_SendWhenOpen(t *testing.T) {
	frames := make(chan []byte, 16)
	server, _ := countingWSServer(t, func(conn *websocket.Conn, _ int64) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- data
		}
	})
	defer server.Close()

	m, _ := newTestManager(testManagerConfig())
	defer m.Disconnect()

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := m.Send(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-frames:
		if string(data) != `{"type":"ping"}` {
			t.Errorf("server received %s, want {\"type\":\"ping\"}", data)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never arrived")
	}
}

func TestManager_RoutesInboundAndSurvivesMalformedFrames(t *testing.T) {
	server, _ := countingWSServer(t, func(conn *websocket.Conn, _ int64) {
		conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"no_type":true}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"balance_update","data":{"amount":"9.99"},"user_id":42}`))
		holdOpen(conn, 0)
	})
	defer server.Close()

	m, reg := newTestManager(testManagerConfig())
	defer m.Disconnect()

	got := make(chan model.Message, 1)
	reg.Subscribe(model.TopicBalanceUpdate, func(msg model.Message) { got <- msg })

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case msg := <-got:
		var balance model.Balance
		if err := json.Unmarshal(msg.Data, &balance); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if balance.Amount != "9.99" {
			t.Errorf("Amount = %q, want 9.99", balance.Amount)
		}
	case <-time.After(time.Second):
		t.Fatal("balance_update never dispatched")
	}

	// Malformed frames were dropped without touching connection state.
	if !m.Connected() {
		t.Error("connection state changed by malformed frames")
	}
}

func TestManager_StateCallbacks(t *testing.T) {
	server, _ := countingWSServer(t, holdOpen)
	defer server.Close()

	var mu sync.Mutex
	var transitions []State
	cfg := testManagerConfig()
	cfg.OnStateChange = func(_, next State) {
		mu.Lock()
		transitions = append(transitions, next)
		mu.Unlock()
	}

	m, _ := newTestManager(cfg)

	if err := m.Connect(context.Background(), wsURL(server)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	m.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateOpen, StateClosing, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}
