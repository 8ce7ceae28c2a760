package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/replica-dev/replica/internal/demo"
	"github.com/replica-dev/replica/pkg/metrics"
	"github.com/replica-dev/replica/pkg/replica"
	"github.com/replica-dev/replica/pkg/snapshot"
	"github.com/replica-dev/replica/pkg/transport"
)

// serveConfig is loaded from the environment; flags override individual
// fields.
type serveConfig struct {
	Addr         string        `env:"REPLICA_ADDR"          envDefault:":8472"`
	WSPath       string        `env:"REPLICA_WS_PATH"       envDefault:"/replica"`
	TickInterval time.Duration `env:"REPLICA_TICK_INTERVAL" envDefault:"50ms"`
	MaxClients   int           `env:"REPLICA_MAX_CLIENTS"`

	DemoEntities int `env:"REPLICA_DEMO_ENTITIES"    envDefault:"32"`
	DemoChurn    int `env:"REPLICA_DEMO_CHURN_EVERY" envDefault:"120"`

	SnapshotBackend  string        `env:"REPLICA_SNAPSHOT_BACKEND"`
	SnapshotName     string        `env:"REPLICA_SNAPSHOT_NAME"     envDefault:"world"`
	SnapshotInterval time.Duration `env:"REPLICA_SNAPSHOT_INTERVAL" envDefault:"30s"`
	SnapshotDir      string        `env:"REPLICA_SNAPSHOT_DIR"      envDefault:"snapshots"`
	SQLitePath       string        `env:"REPLICA_SQLITE_PATH"       envDefault:"replica.db"`
	RedisAddr        string        `env:"REPLICA_REDIS_ADDR"        envDefault:"localhost:6379"`

	S3Bucket    string `env:"REPLICA_S3_BUCKET"`
	S3Region    string `env:"REPLICA_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"REPLICA_S3_ENDPOINT"`
	S3AccessKey string `env:"REPLICA_S3_ACCESS_KEY"`
	S3SecretKey string `env:"REPLICA_S3_SECRET_KEY"`
}

func serveCmd() *cobra.Command {
	var (
		addr     string
		tick     time.Duration
		maxConns int
		entities int
		backend  string
		every    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a replication authority",
		Long: `Run a replication authority serving observers over WebSocket.

The server ticks the authority at a fixed interval, flushing replication
events to every connected observer. A demo world of moving entities
keeps traffic flowing; set --entities=0 to serve an empty world driven
by snapshots alone.

With a snapshot backend configured, the world is restored on boot and
persisted periodically and on shutdown, so observers survive a restart
without a full teardown.

Endpoints:
  /replica   WebSocket replication stream
  /metrics   Prometheus metrics
  /healthz   liveness probe
  /status    world summary as JSON

Examples:
  replica serve
  replica serve --addr=:9000 --tick=20ms
  replica serve --snapshot=sqlite
  REPLICA_S3_BUCKET=worlds replica serve --snapshot=s3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &serveConfig{}
			if err := env.Parse(cfg); err != nil {
				return fmt.Errorf("parse env: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if tick > 0 {
				cfg.TickInterval = tick
			}
			if maxConns > 0 {
				cfg.MaxClients = maxConns
			}
			if cmd.Flags().Changed("entities") {
				cfg.DemoEntities = entities
			}
			if backend != "" {
				cfg.SnapshotBackend = backend
			}
			if every > 0 {
				cfg.SnapshotInterval = every
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default :8472)")
	cmd.Flags().DurationVar(&tick, "tick", 0, "Authority tick interval (default 50ms)")
	cmd.Flags().IntVar(&maxConns, "max-clients", 0, "Maximum concurrent observers (default unlimited)")
	cmd.Flags().IntVar(&entities, "entities", 0, "Demo world population (default 32, 0 disables)")
	cmd.Flags().StringVar(&backend, "snapshot", "", "Snapshot backend: memory, disk, sqlite, redis, s3")
	cmd.Flags().DurationVar(&every, "snapshot-every", 0, "Snapshot interval (default 30s)")

	return cmd
}

func runServe(cfg *serveConfig) error {
	logger := slog.Default().With("component", "replica.serve")
	metrics.Init()

	store, err := openSnapshotStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	srv := transport.NewServer(&transport.ServerConfig{
		TickInterval: cfg.TickInterval,
		MaxClients:   cfg.MaxClients,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	restored := false
	if store != nil {
		data, err := store.Load(ctx, cfg.SnapshotName)
		metrics.RecordSnapshotOp("load", err)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if data != nil {
			if err := srv.Restore(data); err != nil {
				return fmt.Errorf("restore snapshot: %w", err)
			}
			restored = true
		}
	}

	srv.Start()

	var world *demo.World
	if cfg.DemoEntities > 0 {
		world = demo.NewWorld(&demo.Config{
			Entities:   cfg.DemoEntities,
			ChurnEvery: cfg.DemoChurn,
		})
		srv.Do(world.Adopt)
		go runWorld(ctx, srv, world, cfg.TickInterval)
	}

	if store != nil {
		go runSnapshots(ctx, store, cfg.SnapshotName, cfg.SnapshotInterval, srv, world, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/status", statusHandler(srv, world))
	r.Handle("/metrics", promhttp.Handler())
	r.Handle(cfg.WSPath, srv)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	info("Listening on %s", cfg.Addr)
	info("Replication stream at ws://%s%s", displayAddr(cfg.Addr), cfg.WSPath)
	if restored {
		success("Restored %q from %s snapshot", cfg.SnapshotName, cfg.SnapshotBackend)
	}
	if world != nil {
		info("Demo world: %d entities", cfg.DemoEntities)
	}
	fmt.Println()

	errc := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	fmt.Println("\n  Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if store != nil {
		if err := saveSnapshot(shutdownCtx, store, cfg.SnapshotName, srv, world); err != nil {
			logger.Error("final snapshot failed", "error", err)
		} else {
			success("Saved %q snapshot", cfg.SnapshotName)
		}
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("authority stop", "error", err)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return nil
}

// runWorld steps the demo world once per interval on the authority goroutine.
func runWorld(ctx context.Context, srv *transport.Server, world *demo.World, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !srv.Do(world.Step) {
				return
			}
		}
	}
}

// runSnapshots persists the world periodically until ctx ends.
func runSnapshots(ctx context.Context, store snapshot.Store, name string, interval time.Duration, srv *transport.Server, world *demo.World, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveSnapshot(ctx, store, name, srv, world); err != nil {
				logger.Error("snapshot save failed", "name", name, "error", err)
			}
		}
	}
}

// saveSnapshot captures the authority state and persists it. Backends with a
// tick-aware save keep the world step alongside the payload.
func saveSnapshot(ctx context.Context, store snapshot.Store, name string, srv *transport.Server, world *demo.World) error {
	var data []byte
	var steps uint64
	ok := srv.Do(func(a *replica.Authority) {
		data = a.Snapshot()
		if world != nil {
			steps = world.Steps()
		}
	})
	if !ok {
		return nil
	}

	type tickSaver interface {
		SaveTick(ctx context.Context, name string, tick uint64, data []byte) error
	}
	var err error
	if ts, isTick := store.(tickSaver); isTick {
		err = ts.SaveTick(ctx, name, steps, data)
	} else {
		err = store.Save(ctx, name, data)
	}
	metrics.RecordSnapshotOp("save", err)
	return err
}

// openSnapshotStore builds the configured snapshot backend, or nil when
// snapshotting is disabled.
func openSnapshotStore(cfg *serveConfig) (snapshot.Store, error) {
	switch cfg.SnapshotBackend {
	case "", "none":
		return nil, nil
	case "memory":
		return snapshot.NewMemoryStore(), nil
	case "disk":
		return snapshot.NewDiskStore(cfg.SnapshotDir)
	case "sqlite":
		return snapshot.NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return snapshot.NewRedisStore(client), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("snapshot backend s3 requires REPLICA_S3_BUCKET")
		}
		return snapshot.NewS3Store(newS3Client(cfg), cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}

// newS3Client builds an S3 client from static configuration. An endpoint
// switches on path-style addressing for S3-compatible object stores.
func newS3Client(cfg *serveConfig) *s3.Client {
	opts := s3.Options{Region: cfg.S3Region}
	if cfg.S3AccessKey != "" {
		key, secret := cfg.S3AccessKey, cfg.S3SecretKey
		opts.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: key, SecretAccessKey: secret}, nil
		})
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func statusHandler(srv *transport.Server, world *demo.World) http.HandlerFunc {
	type status struct {
		Signature uint32 `json:"signature"`
		Objects   int    `json:"objects"`
		Peers     int    `json:"peers"`
		Steps     uint64 `json:"steps,omitempty"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		var st status
		ok := srv.Do(func(a *replica.Authority) {
			st.Signature = a.Signature()
			st.Objects = a.NumObjects()
			if world != nil {
				st.Steps = world.Steps()
			}
		})
		if !ok {
			http.Error(w, "authority stopped", http.StatusServiceUnavailable)
			return
		}
		st.Peers = srv.NumPeers()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}
}

// displayAddr rewrites a bind address into something dialable for display.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
