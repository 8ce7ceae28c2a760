// Package metrics exposes Prometheus collectors for the replication layer:
// table and connection gauges, flush and receive counters, tick timing and
// decode failures. Recording is a no-op until Init installs the collectors,
// so library code can call the Record helpers unconditionally.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "replica").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// TickBuckets are the histogram buckets for tick duration seconds.
	// Default: sub-millisecond to one second.
	TickBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the Prometheus collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithTickBuckets sets the tick duration histogram buckets.
func WithTickBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.TickBuckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace:   "replica",
		TickBuckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		Registry:    prometheus.DefaultRegisterer,
	}
}

// collectors holds the Prometheus collectors for the replication layer.
type collectors struct {
	objectsLive     prometheus.Gauge
	connectionsOpen prometheus.Gauge
	flushesTotal    prometheus.Counter
	flushedBytes    prometheus.Counter
	receivedBytes   prometheus.Counter
	decodeFailures  prometheus.Counter
	tickDuration    prometheus.Histogram
	snapshotOps     *prometheus.CounterVec
}

var (
	global   *collectors
	globalMu sync.Mutex
)

// Init installs the collectors against the configured registry. The first
// call wins; later calls are no-ops.
//
// Metrics collected:
//   - replica_objects_live: Gauge of objects in the authority table
//   - replica_connections_open: Gauge of open replication connections
//   - replica_flushes_total: Counter of non-empty buffer flushes
//   - replica_flushed_bytes_total: Counter of bytes flushed to observers
//   - replica_received_bytes_total: Counter of bytes fed to observers
//   - replica_decode_failures_total: Counter of invalid received buffers
//   - replica_tick_duration_seconds: Histogram of authority tick duration
//   - replica_snapshot_ops_total: Counter of snapshot store operations
func Init(opts ...Option) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = initCollectors(config)
	}
}

func initCollectors(config Config) *collectors {
	factory := promauto.With(config.Registry)

	return &collectors{
		objectsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "objects_live",
			Help:        "Number of objects in the authority table",
			ConstLabels: config.ConstLabels,
		}),

		connectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_open",
			Help:        "Number of open replication connections",
			ConstLabels: config.ConstLabels,
		}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total non-empty buffer flushes to observers",
			ConstLabels: config.ConstLabels,
		}),

		flushedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushed_bytes_total",
			Help:        "Total bytes flushed to observers",
			ConstLabels: config.ConstLabels,
		}),

		receivedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "received_bytes_total",
			Help:        "Total bytes fed to observers",
			ConstLabels: config.ConstLabels,
		}),

		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "decode_failures_total",
			Help:        "Total received buffers that failed to decode",
			ConstLabels: config.ConstLabels,
		}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tick_duration_seconds",
			Help:        "Authority tick duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.TickBuckets,
		}),

		snapshotOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "snapshot_ops_total",
			Help:        "Total snapshot store operations by op and status",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "status"}),
	}
}

// SetObjects records the current authority table size.
func SetObjects(n int) {
	if global != nil {
		global.objectsLive.Set(float64(n))
	}
}

// SetConnections records the current number of open connections.
func SetConnections(n int) {
	if global != nil {
		global.connectionsOpen.Set(float64(n))
	}
}

// RecordFlush records one non-empty buffer flush of the given size.
func RecordFlush(bytes int) {
	if global != nil {
		global.flushesTotal.Inc()
		global.flushedBytes.Add(float64(bytes))
	}
}

// RecordReceive records one received buffer of the given size.
func RecordReceive(bytes int) {
	if global != nil {
		global.receivedBytes.Add(float64(bytes))
	}
}

// RecordDecodeFailure records a received buffer that failed to decode.
func RecordDecodeFailure() {
	if global != nil {
		global.decodeFailures.Inc()
	}
}

// RecordTick records one authority tick duration.
func RecordTick(d time.Duration) {
	if global != nil {
		global.tickDuration.Observe(d.Seconds())
	}
}

// RecordSnapshotOp records one snapshot store operation.
func RecordSnapshotOp(op string, err error) {
	if global != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		global.snapshotOps.WithLabelValues(op, status).Inc()
	}
}
