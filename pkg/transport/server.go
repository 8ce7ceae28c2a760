package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/replica-dev/replica/pkg/metrics"
	"github.com/replica-dev/replica/pkg/replica"
)

var errPeerClosed = errors.New("transport: peer closed")

// Server publishes an Authority's world over WebSocket connections.
//
// The authority lives on a single goroutine started by Start. That
// goroutine ticks at TickInterval, flushes each peer's buffered events as
// one binary message, and runs functions submitted through Do in between
// ticks. Mount the server on a router and call Start before serving.
type Server struct {
	config   *ServerConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	tracer   trace.Tracer

	auth     *replica.Authority
	commands chan func(*replica.Authority)

	mu    sync.Mutex
	peers map[*peer]struct{}

	started atomic.Bool
	quit    chan struct{}
	stopped chan struct{}
	runDone chan struct{}
}

// NewServer creates a Server owning a fresh Authority.
func NewServer(config *ServerConfig) *Server {
	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "replica.server")
	}

	return &Server{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		tracer:   otel.Tracer("replica"),
		auth:     replica.NewAuthority(),
		commands: make(chan func(*replica.Authority)),
		peers:    make(map[*peer]struct{}),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		runDone:  make(chan struct{}),
	}
}

// Restore seeds the authority from a snapshot. Must be called before
// Start, while no connections exist.
func (s *Server) Restore(data []byte) error {
	if s.started.Load() {
		panic("transport: Restore after Start")
	}
	return s.auth.Restore(data)
}

// Start launches the tick goroutine. It must be called once, before the
// server accepts connections.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		panic("transport: server already started")
	}
	go s.run()
}

// Stop shuts the server down: the tick loop exits, every peer connection
// is closed, and pending Do calls are released. Stop waits for the tick
// goroutine until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	select {
	case <-s.quit:
		return nil
	default:
	}
	close(s.quit)

	var stuck error
	select {
	case <-s.runDone:
	case <-ctx.Done():
		stuck = ctx.Err()
	}
	// Release Do waiters even when the tick goroutine is stuck in a
	// submitted function.
	close(s.stopped)

	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}

	if stuck != nil {
		return stuck
	}
	s.logger.Info("server stopped", "peers_closed", len(peers))
	return nil
}

// Do runs fn on the authority goroutine and waits for it to finish.
// It reports whether fn ran; it returns false once the server stops.
func (s *Server) Do(fn func(a *replica.Authority)) bool {
	done := make(chan struct{})
	wrapped := func(a *replica.Authority) {
		defer close(done)
		fn(a)
	}

	select {
	case s.commands <- wrapped:
	case <-s.stopped:
		return false
	}

	select {
	case <-done:
		return true
	case <-s.stopped:
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Snapshot captures the authority's current state. See Authority.Snapshot.
// Returns nil once the server stops.
func (s *Server) Snapshot() []byte {
	var data []byte
	s.Do(func(a *replica.Authority) {
		data = a.Snapshot()
	})
	return data
}

// run is the authority goroutine: commands between ticks, flush per tick.
func (s *Server) run() {
	defer close(s.runDone)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.commands:
			fn(s.auth)
		case <-ticker.C:
			s.tick()
		case <-s.quit:
			return
		}
	}
}

// tick advances the world one step and flushes every peer's buffer.
func (s *Server) tick() {
	start := time.Now()
	_, span := s.tracer.Start(context.Background(), "replica.tick",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	s.auth.Tick()

	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	flushed := 0
	for _, p := range peers {
		n, err := s.flush(p)
		if err != nil {
			if !errors.Is(err, errPeerClosed) {
				s.logger.Error("flush failed", "error", err)
			}
			p.close()
			continue
		}
		flushed += n
	}

	metrics.SetObjects(s.auth.NumObjects())
	metrics.SetConnections(s.auth.NumConns())
	metrics.RecordTick(time.Since(start))

	span.SetAttributes(
		attribute.Int("replica.objects", s.auth.NumObjects()),
		attribute.Int("replica.peers", len(peers)),
		attribute.Int("replica.flushed_bytes", flushed),
	)
}

// flush writes a peer's buffered events and clears the buffer only after
// the write succeeds, so a failed write keeps the bytes for nobody: the
// peer is torn down and re-bootstraps on reconnect.
func (s *Server) flush(p *peer) (int, error) {
	if p.conn == nil || p.conn.SendLen() == 0 {
		return 0, nil
	}
	data := p.conn.SendData()
	if err := p.send(data, s.config.WriteTimeout); err != nil {
		return 0, err
	}
	p.conn.ClearSendData()
	metrics.RecordFlush(len(data))
	return len(data), nil
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.started.Load() {
		http.Error(w, "server not started", http.StatusServiceUnavailable)
		return
	}
	select {
	case <-s.quit:
		http.Error(w, "server stopping", http.StatusServiceUnavailable)
		return
	default:
	}

	s.mu.Lock()
	if s.config.MaxClients > 0 && len(s.peers) >= s.config.MaxClients {
		s.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		ws:   ws,
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()

	// Open the replication conn and push the bootstrap Connect right away
	// instead of waiting out the first tick.
	opened := s.Do(func(a *replica.Authority) {
		p.conn = a.OpenConn()
		if _, err := s.flush(p); err != nil {
			p.close()
		}
	})
	if !opened {
		s.removePeer(p)
		p.close()
		return
	}

	s.logger.Info("peer connected", "remote", ws.RemoteAddr())

	go p.heartbeatLoop(s.config.HeartbeatInterval, s.config.WriteTimeout)

	s.readLoop(p)

	p.close()
	s.removePeer(p)
	s.Do(func(a *replica.Authority) {
		a.CloseConn(p.conn)
	})
	s.logger.Info("peer disconnected", "remote", ws.RemoteAddr())
}

// readLoop drains the peer until the connection dies. Observers send no
// replication data upstream; anything received is discarded.
func (s *Server) readLoop(p *peer) {
	p.ws.SetReadLimit(s.config.MaxMessageSize)
	p.ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	p.ws.SetPongHandler(func(string) error {
		p.ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
		return nil
	})

	for {
		_, _, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && !p.closed.Load() {
				s.logger.Error("read error", "error", err)
			}
			return
		}
		p.ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	}
}

func (s *Server) removePeer(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// NumPeers returns the number of connected peers.
func (s *Server) NumPeers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// peer is one observer's server-side connection state. The replication
// conn is touched only on the authority goroutine; ws writes go through
// send under the mutex.
type peer struct {
	ws   *websocket.Conn
	conn *replica.Conn

	mu     sync.Mutex
	closed atomic.Bool
	done   chan struct{}
}

func (p *peer) send(data []byte, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return errPeerClosed
	}
	p.ws.SetWriteDeadline(time.Now().Add(timeout))
	return p.ws.WriteMessage(websocket.BinaryMessage, data)
}

// heartbeatLoop pings until the peer closes. WriteControl is safe to call
// concurrently with WriteMessage.
func (p *peer) heartbeatLoop(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peer) close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.done)
		p.ws.Close()
	}
}
