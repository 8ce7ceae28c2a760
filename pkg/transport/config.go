package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/replica-dev/replica/pkg/replica"
)

// ServerConfig holds Server settings.
type ServerConfig struct {
	// TickInterval is how often the authority ticks and flushes.
	// Default: 50ms.
	TickInterval time.Duration

	// WriteTimeout bounds each WebSocket write. A peer that cannot keep
	// up is dropped. Default: 10s.
	WriteTimeout time.Duration

	// HeartbeatInterval is how often pings are sent to each peer.
	// Default: 30s.
	HeartbeatInterval time.Duration

	// PongTimeout is how long a peer may stay silent before its
	// connection is considered dead. Must exceed HeartbeatInterval.
	// Default: 75s.
	PongTimeout time.Duration

	// MaxMessageSize limits inbound message size. Observers send nothing
	// but control frames, so this stays small. Default: 4096.
	MaxMessageSize int64

	// MaxClients limits concurrent connections. 0 means unlimited.
	MaxClients int

	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	// Default: 4096 each.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates upgrade request origins. nil uses the
	// WebSocket library default (same host, absent Origin allowed).
	CheckOrigin func(r *http.Request) bool

	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		TickInterval:      50 * time.Millisecond,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		PongTimeout:       75 * time.Second,
		MaxMessageSize:    4096,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
	}
}

func (c *ServerConfig) withDefaults() *ServerConfig {
	if c == nil {
		return DefaultServerConfig()
	}
	defaults := DefaultServerConfig()
	out := *c
	if out.TickInterval == 0 {
		out.TickInterval = defaults.TickInterval
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.HeartbeatInterval == 0 {
		out.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if out.PongTimeout == 0 {
		out.PongTimeout = defaults.PongTimeout
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	return &out
}

// ClientConfig holds Client settings.
type ClientConfig struct {
	// URL is the WebSocket endpoint, e.g. "ws://host:port/replica".
	URL string

	// HandshakeTimeout bounds the WebSocket handshake. Default: 10s.
	HandshakeTimeout time.Duration

	// ReconnectMinDelay is the first redial backoff. Default: 250ms.
	ReconnectMinDelay time.Duration

	// ReconnectMaxDelay caps the redial backoff. Default: 5s.
	ReconnectMaxDelay time.Duration

	// MaxMessageSize limits inbound message size. Flushes carrying a full
	// world update can be large. Default: 16 MiB.
	MaxMessageSize int64

	// OnSync, if set, runs after each applied buffer with the observer
	// still locked. Pump created objects and drain messages here.
	OnSync func(obs *replica.Observer)

	// OnConnect, if set, runs after each successful dial.
	OnConnect func()

	// OnDisconnect, if set, runs when an established connection drops.
	OnDisconnect func(err error)

	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

// DefaultClientConfig returns a ClientConfig with default values.
// The URL must still be set by the caller.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		HandshakeTimeout:  10 * time.Second,
		ReconnectMinDelay: 250 * time.Millisecond,
		ReconnectMaxDelay: 5 * time.Second,
		MaxMessageSize:    16 << 20,
	}
}

func (c *ClientConfig) withDefaults() *ClientConfig {
	if c == nil {
		return DefaultClientConfig()
	}
	defaults := DefaultClientConfig()
	out := *c
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if out.ReconnectMinDelay == 0 {
		out.ReconnectMinDelay = defaults.ReconnectMinDelay
	}
	if out.ReconnectMaxDelay == 0 {
		out.ReconnectMaxDelay = defaults.ReconnectMaxDelay
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	return &out
}
