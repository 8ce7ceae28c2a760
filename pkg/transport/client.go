package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/replica-dev/replica/pkg/metrics"
	"github.com/replica-dev/replica/pkg/replica"
)

// Client maintains an Observer mirror of a remote authority.
//
// Run dials the server and feeds every received buffer to the observer,
// redialing with exponential backoff when the connection drops. The
// observer survives reconnects: the session signature in the bootstrap
// event decides whether the mirror resumes in place or tears down.
type Client struct {
	config *ClientConfig
	logger *slog.Logger
	tracer trace.Tracer

	mu  sync.Mutex
	obs *replica.Observer
}

// NewClient creates a Client with a fresh Observer.
// The config must carry a URL.
func NewClient(config *ClientConfig) *Client {
	config = config.withDefaults()
	if config.URL == "" {
		panic("transport: client URL is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "replica.client")
	}

	return &Client{
		config: config,
		logger: logger,
		tracer: otel.Tracer("replica"),
		obs:    replica.NewObserver(),
	}
}

// Do runs fn with exclusive access to the observer. Safe to call from any
// goroutine, including while Run is active.
func (c *Client) Do(fn func(obs *replica.Observer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.obs)
}

// Run connects and mirrors until ctx is canceled. Connection drops are
// retried with exponential backoff; Run only returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	delay := c.config.ReconnectMinDelay

	for {
		connected, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("connection lost", "url", c.config.URL, "error", err)
		}
		if connected {
			delay = c.config.ReconnectMinDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > c.config.ReconnectMaxDelay {
			delay = c.config.ReconnectMaxDelay
		}
	}
}

// runOnce performs one dial-read-apply cycle. It reports whether the dial
// succeeded, so the caller can reset its backoff.
func (c *Client) runOnce(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	ws.SetReadLimit(c.config.MaxMessageSize)

	c.logger.Info("connected", "url", c.config.URL)
	if c.config.OnConnect != nil {
		c.config.OnConnect()
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if c.config.OnDisconnect != nil && ctx.Err() == nil {
				c.config.OnDisconnect(err)
			}
			return true, err
		}

		if err := c.apply(ctx, msg); err != nil {
			// Applied events stuck; the rest of the buffer is gone.
			// Reconnecting re-bootstraps the conn, which resolves the
			// mirror against a fresh full flush.
			if c.config.OnDisconnect != nil {
				c.config.OnDisconnect(err)
			}
			return true, err
		}
	}
}

// apply feeds one buffer to the observer under the client mutex.
func (c *Client) apply(ctx context.Context, msg []byte) error {
	_, span := c.tracer.Start(ctx, "replica.receive",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("replica.bytes", len(msg))))
	defer span.End()

	metrics.RecordReceive(len(msg))

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.obs.Receive(msg); err != nil {
		metrics.RecordDecodeFailure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if c.config.OnSync != nil {
		c.config.OnSync(c.obs)
	}
	return nil
}
