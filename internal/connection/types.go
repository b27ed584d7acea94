package connection

import (
	"errors"
	"time"

	"github.com/tutorbase/realtime/internal/backoff"
	"github.com/tutorbase/realtime/internal/metrics"
)

// Errors
var (
	// ErrNoToken means the token provider had no usable credential. The
	// caller should refresh credentials out of band and call Connect again;
	// the reconnection backoff does not apply.
	ErrNoToken = errors.New("no credential token available")

	// ErrNotConnected means Send was called while the channel is not open.
	// Outbound messages are not queued across disconnects.
	ErrNotConnected = errors.New("not connected")

	// ErrAttemptsExhausted means automatic reconnection gave up.
	ErrAttemptsExhausted = errors.New("reconnection attempts exhausted")

	// ErrStaleConnection means no ping arrived within the ping timeout.
	ErrStaleConnection = errors.New("connection stale (no ping)")

	// ErrAlreadyClosed means the client was used after Close.
	ErrAlreadyClosed = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Endpoint URL (ws:// or wss://)
	Token            string        // Credential, carried as a ?token= query parameter
	PingTimeout      time.Duration // Max time without a server ping before the connection is stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial handshake timeout
	BufferSize       int           // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	UserID           int64          // User the channel belongs to; stamped on subscribe commands
	Policy           backoff.Policy // Reconnection delays and attempt budget
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	BufferSize       int

	// OnStateChange observes every lifecycle transition. OnError receives
	// terminal conditions (auth rejected, attempts exhausted). Both are
	// invoked synchronously from the Manager's event handlers and must not
	// call back into the Manager.
	OnStateChange func(old, new State)
	OnError       func(error)

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Set
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Policy:           backoff.Default(),
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       256,
	}
}

// ManagerStats provides a snapshot of the manager's state.
type ManagerStats struct {
	State         State
	Attempt       int // Current reconnection attempt counter
	Subscriptions int
}
