package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorbase/realtime/internal/auth"
	"github.com/tutorbase/realtime/internal/router"
	"github.com/tutorbase/realtime/internal/subscription"
)

// Manager owns the lifecycle of one logical push channel. It opens the
// transport with a fresh credential, replays subscriptions after every
// successful open, routes inbound frames to the message router, and
// schedules bounded reconnection attempts after unexpected closes.
//
// Each logical channel gets its own Manager; instances share nothing.
type Manager struct {
	cfg      ManagerConfig
	tokens   auth.TokenProvider
	registry *subscription.Registry
	router   *router.Router
	logger   *slog.Logger

	// newClient is swapped in tests.
	newClient func(ClientConfig, *slog.Logger) Client

	mu         sync.Mutex
	state      State
	client     Client
	endpoint   string
	attempt    int
	retryTimer *time.Timer
	lastErr    error
	closing    bool // Caller-initiated shutdown; suppresses reconnection
}

// NewManager creates a Manager for one logical channel.
func NewManager(cfg ManagerConfig, tokens auth.TokenProvider, registry *subscription.Registry, rt *router.Router, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy.InitialDelay == 0 {
		cfg.Policy = DefaultManagerConfig().Policy
	}
	if cfg.PingTimeout == 0 {
		cfg.PingTimeout = DefaultManagerConfig().PingTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultManagerConfig().WriteTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultManagerConfig().HandshakeTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultManagerConfig().BufferSize
	}

	return &Manager{
		cfg:       cfg,
		tokens:    tokens,
		registry:  registry,
		router:    rt,
		logger:    logger,
		newClient: NewClient,
		state:     StateIdle,
	}
}

// Connect opens the channel to endpoint. It is a no-op while a connection
// attempt is already in flight or the channel is open, so a UI re-render
// firing connect twice results in one transport attempt.
//
// When no usable credential is available the attempt fails synchronously
// with ErrNoToken and no transport attempt is made: auth errors do not
// benefit from the reconnection backoff, so the caller is expected to
// refresh credentials out of band and call Connect again.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}
	if _, ok := m.transition(EventConnect); !ok {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect not allowed in state %s", st)
	}
	m.stopRetryTimer()
	m.closing = false
	m.endpoint = endpoint
	m.attempt = 0
	m.lastErr = nil
	m.mu.Unlock()

	return m.dial(ctx)
}

// Disconnect closes the channel with a normal-closure code and cancels any
// pending reconnect timer. It never triggers a reconnection.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	m.closing = true
	m.stopRetryTimer()

	if _, ok := m.transition(EventDisconnect); !ok {
		// Already Closing or Closed; nothing to tear down.
		m.mu.Unlock()
		return nil
	}
	c := m.client
	m.client = nil
	m.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}

	m.mu.Lock()
	m.transition(EventClosed)
	m.mu.Unlock()

	return err
}

// Send serializes v and transmits it immediately. Outbound messages are not
// queued across disconnects: subscribe control traffic is replayed by the
// registry on reconnect, and queued application messages would risk stale or
// duplicate effects.
func (m *Manager) Send(v any) error {
	m.mu.Lock()
	if m.state != StateOpen || m.client == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	c := m.client
	m.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.Send(data)
}

// Subscribe registers a handler for a topic and returns the subscription ID.
// Subscribing while disconnected is legal; the topic is included in the
// subscribe replay on the next successful open. While the channel is open,
// an updated subscribe command is sent immediately.
func (m *Manager) Subscribe(topic string, h subscription.Handler) string {
	id := m.registry.Subscribe(topic, h)

	m.mu.Lock()
	c := m.client
	open := m.state == StateOpen && c != nil
	m.mu.Unlock()

	if open {
		if err := m.sendSubscribe(c); err != nil {
			m.logger.Warn("subscribe command failed", "topic", topic, "error", err)
		}
	}

	return id
}

// Unsubscribe removes the subscription with the given ID.
func (m *Manager) Unsubscribe(id string) bool {
	return m.registry.Unsubscribe(id)
}

// Connected reports whether the channel is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOpen
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the last terminal condition, or nil.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats returns a snapshot of the manager's state.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	attempt := m.attempt
	m.mu.Unlock()

	return ManagerStats{
		State:         state,
		Attempt:       attempt,
		Subscriptions: m.registry.Len(),
	}
}

// transition applies ev to the state machine. Callers hold m.mu. Disallowed
// transitions are logged and ignored, so every state change funnels through
// one auditable entry point.
func (m *Manager) transition(ev Event) (State, bool) {
	old := m.state
	next, ok := nextState(old, ev)
	if !ok {
		m.logger.Debug("ignoring event", "event", ev, "state", old)
		return old, false
	}

	m.state = next
	m.logger.Debug("state change", "from", old, "to", next, "event", ev)
	m.cfg.Metrics.SetConnectionState(float64(next))
	if m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(old, next)
	}
	return next, true
}

// dial performs one connection attempt. The credential is fetched fresh so
// a token refreshed since the last attempt is always used.
func (m *Manager) dial(ctx context.Context) error {
	tok := m.tokens.Token()
	if tok == nil || tok.Value == "" || tok.Expired(time.Now()) {
		m.mu.Lock()
		m.lastErr = ErrNoToken
		m.transition(EventFail)
		m.mu.Unlock()
		m.cfg.Metrics.IncFailures()
		m.notifyError(ErrNoToken)
		return ErrNoToken
	}

	c := m.newClient(ClientConfig{
		URL:              m.endpoint,
		Token:            tok.Value,
		PingTimeout:      m.cfg.PingTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		BufferSize:       m.cfg.BufferSize,
	}, m.logger.With("component", "ws"))

	if err := c.Connect(ctx); err != nil {
		m.logger.Warn("connection attempt failed", "endpoint", m.endpoint, "error", err)
		m.scheduleRetry(err)
		return err
	}

	m.mu.Lock()
	if m.closing {
		// Disconnect raced the dial; drop the fresh connection.
		m.mu.Unlock()
		c.Close()
		return ErrAlreadyClosed
	}
	m.client = c
	m.attempt = 0
	m.lastErr = nil
	m.transition(EventOpened)
	m.mu.Unlock()

	m.cfg.Metrics.IncConnects()
	m.resubscribe(c)

	go m.watch(c)

	return nil
}

// scheduleRetry handles a close that was not caller-initiated. It moves the
// channel to Closed and either arms the reconnect timer or, when the attempt
// budget is spent, settles in Failed.
func (m *Manager) scheduleRetry(cause error) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.transition(EventClosed)

	if !m.cfg.Policy.ShouldRetry(m.attempt) {
		err := fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, m.attempt, cause)
		m.lastErr = err
		m.transition(EventFail)
		m.mu.Unlock()

		m.cfg.Metrics.IncFailures()
		m.notifyError(err)
		return
	}

	delay := m.cfg.Policy.NextDelay(m.attempt)
	m.attempt++
	m.logger.Info("scheduling reconnect",
		"attempt", m.attempt,
		"delay", delay,
		"cause", cause,
	)
	m.retryTimer = time.AfterFunc(delay, m.retry)
	m.mu.Unlock()
}

// retry fires when the reconnect timer elapses.
func (m *Manager) retry() {
	m.mu.Lock()
	if m.closing || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.transition(EventConnect)
	m.mu.Unlock()

	m.cfg.Metrics.IncReconnects()
	m.dial(context.Background())
}

// stopRetryTimer cancels a pending reconnect. Callers hold m.mu. A timer
// left running after Disconnect or teardown would reconnect a channel whose
// owner is gone.
func (m *Manager) stopRetryTimer() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// watch surfaces transport events for one client until it goes away.
func (m *Manager) watch(c Client) {
	for {
		select {
		case <-c.Done():
			return
		case err := <-c.Errors():
			m.handleTransportError(c, err)
			return
		case msg := <-c.Messages():
			// Malformed frames are logged and counted by the router;
			// they never affect connection state.
			m.router.Route(msg.Data)
		}
	}
}

// handleTransportError tears down a broken client and schedules a retry.
func (m *Manager) handleTransportError(c Client, err error) {
	m.mu.Lock()
	if m.client != c {
		// A newer client replaced this one; stale event.
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.mu.Unlock()

	c.Close()
	m.logger.Warn("connection lost", "error", err)
	m.scheduleRetry(err)
}

// resubscribe replays the registry as a single control message. Invoked
// exactly once per successful open, including after automatic reconnects.
func (m *Manager) resubscribe(c Client) {
	if m.registry.Len() == 0 {
		return
	}
	if err := m.sendSubscribe(c); err != nil {
		m.logger.Warn("resubscribe failed", "error", err)
	}
}

// sendSubscribe sends the registry's current topic set.
func (m *Manager) sendSubscribe(c Client) error {
	data, err := json.Marshal(m.registry.Command(m.cfg.UserID))
	if err != nil {
		return fmt.Errorf("encode subscribe command: %w", err)
	}
	return c.Send(data)
}

// notifyError surfaces a terminal condition to the caller.
func (m *Manager) notifyError(err error) {
	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}
