package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/replica-dev/replica/internal/demo"
	"github.com/replica-dev/replica/pkg/replica"
	"github.com/replica-dev/replica/pkg/transport"
	"github.com/replica-dev/replica/pkg/wire"
)

func benchCmd() *cobra.Command {
	var (
		observers int
		duration  time.Duration
		tick      time.Duration
		entities  int
		churn     int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure flush latency and throughput",
		Long: `Run an in-process authority with a demo world and N observers over
real loopback WebSockets, then report flush latency percentiles and
allocation behavior.

The authority replicates a nanosecond clock in a dedicated object every
tick; each observer measures the spread between that clock and its own
apply time. Authority and observers share a process, so the clocks are
directly comparable.

Examples:
  replica bench
  replica bench --observers=200 --duration=30s --tick=10ms
  replica bench --entities=256 --churn=60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(observers, duration, tick, entities, churn)
		},
	}

	cmd.Flags().IntVar(&observers, "observers", 50, "Number of concurrent observers")
	cmd.Flags().DurationVar(&duration, "duration", 15*time.Second, "How long to run the load")
	cmd.Flags().DurationVar(&tick, "tick", 20*time.Millisecond, "Authority tick interval")
	cmd.Flags().IntVar(&entities, "entities", 64, "Demo world population")
	cmd.Flags().IntVar(&churn, "churn", 120, "Steps between entity churn")

	return cmd
}

func runBench(observers int, duration, tick time.Duration, entities, churn int) error {
	if observers <= 0 {
		return fmt.Errorf("--observers must be > 0")
	}
	if duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if entities < 0 {
		return fmt.Errorf("--entities must be >= 0")
	}

	// Reduce incidental variability a bit.
	debug.SetGCPercent(100)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := transport.NewServer(&transport.ServerConfig{
		TickInterval: tick,
		Logger:       quiet,
	})
	srv.Start()

	world := demo.NewWorld(&demo.Config{Entities: entities, ChurnEvery: churn, Seed: 1})
	var clock *replica.Object
	srv.Do(func(a *replica.Authority) {
		clock = a.Create()
		clock.SetInitData([]byte("clock"))
		clock.SetSyncData(clockPayload())
		world.Populate(a)
	})

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{Handler: srv}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = httpServer.Shutdown(context.Background())
	}()

	url := "ws://" + ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	// Advance the world and restamp the clock between flushes.
	go func() {
		stepper := time.NewTicker(tick)
		defer stepper.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stepper.C:
				ok := srv.Do(func(a *replica.Authority) {
					world.Step(a)
					clock.SetSyncData(clockPayload())
				})
				if !ok {
					return
				}
			}
		}
	}()

	samplesCh := make(chan time.Duration, 1024)
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for lat := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, lat)
			samplesMu.Unlock()
		}
	}()

	var (
		totalFlushes atomic.Uint64
		totalDrops   atomic.Uint64
	)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	var wg sync.WaitGroup
	wg.Add(observers)
	for i := 0; i < observers; i++ {
		go func() {
			defer wg.Done()
			runBenchObserver(ctx, url, quiet, samplesCh, &totalFlushes, &totalDrops)
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop authority: %w", err)
	}

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	flushes := totalFlushes.Load()
	drops := totalDrops.Load()
	runSeconds := math.Max(0.001, duration.Seconds())

	fmt.Println("=== Replica Flush Benchmark ===")
	fmt.Printf("Observers: %d\n", observers)
	fmt.Printf("Duration: %s\n", duration)
	fmt.Printf("Tick interval: %s\n", tick)
	fmt.Printf("Entities: %d (churn every %d steps)\n", entities, churn)
	fmt.Printf("Flushes applied: %d\n", flushes)
	fmt.Printf("Connection drops: %d\n", drops)
	fmt.Printf("Throughput: %.1f flushes/s (%.1f per observer)\n",
		float64(flushes)/runSeconds, float64(flushes)/runSeconds/float64(observers))
	fmt.Println()

	if len(latencies) == 0 {
		fmt.Println("No latency samples recorded.")
	} else {
		fmt.Println("Flush latency (authority stamp → observer apply):")
		fmt.Printf("  min: %s\n", latencies[0])
		fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
		fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
		fmt.Printf("  p99: %s\n", percentile(latencies, 0.99))
		fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	}
	fmt.Println()

	fmt.Println("Go runtime / GC (process-wide):")
	fmt.Printf("  alloc:     %.2f MB\n", float64(after.TotalAlloc-before.TotalAlloc)/(1024*1024))
	fmt.Printf("  heap_live: %.2f MB\n", float64(after.HeapAlloc)/(1024*1024))
	fmt.Printf("  num_gc:    %d\n", after.NumGC-before.NumGC)
	fmt.Printf("  gc_pause:  %s (total)\n", time.Duration(after.PauseTotalNs-before.PauseTotalNs))
	fmt.Printf("  gc_pause:  %s (avg)\n", avgPause(after, before))
	fmt.Printf("  gc_cpu:    %.2f%%\n", 100*cpuFraction(afterMetrics, beforeMetrics))
	fmt.Printf("  allocs:    %.2f M objects\n", float64(afterMetrics.heapAllocsObjects-beforeMetrics.heapAllocsObjects)/1_000_000)
	return nil
}

// runBenchObserver mirrors the world until ctx ends, sampling the clock
// object's latency on every applied flush.
func runBenchObserver(ctx context.Context, url string, logger *slog.Logger, samplesCh chan<- time.Duration, flushes, drops *atomic.Uint64) {
	var last uint64
	config := &transport.ClientConfig{
		URL:               url,
		ReconnectMinDelay: 50 * time.Millisecond,
		Logger:            logger,
		OnSync: func(obs *replica.Observer) {
			for obs.PumpCreate() != nil {
			}
			flushes.Add(1)

			obj := obs.GetObject(obs.LocalIDOf(1))
			if obj == nil {
				return
			}
			sent, err := wire.NewReader(obj.SyncData()).ReadUint64()
			if err != nil || sent == last {
				return
			}
			last = sent
			lat := time.Duration(time.Now().UnixNano() - int64(sent))
			if lat >= 0 {
				select {
				case samplesCh <- lat:
				default:
				}
			}
		},
		OnDisconnect: func(error) { drops.Add(1) },
	}
	c := transport.NewClient(config)
	_ = c.Run(ctx)
}

// clockPayload stamps the current time as a sync payload.
func clockPayload() []byte {
	w := wire.NewWriterWithCap(8)
	w.WriteUint64(uint64(time.Now().UnixNano()))
	return w.Bytes()
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64

	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}
