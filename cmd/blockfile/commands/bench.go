package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/blockfile/internal/bytesize"
	"github.com/marmos91/blockfile/internal/cli/output"
	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/pkg/blockfile"
	"github.com/marmos91/blockfile/pkg/blockfile/batch"
)

var (
	benchDuration time.Duration
	benchClients  int
	benchSize     string
	benchPath     string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a write/read/delete load through the IO cycle queue",
	Long: `Run concurrent clients that each write a random payload, read it back,
verify it and delete it, with all requests served by the IO cycle queue.

The load runs against a temporary file unless --path is given. When
metrics.enabled is set, Prometheus metrics are served on metrics.port
under /metrics for the duration of the run.

Examples:
  blockfile bench --duration 30s --clients 16 --size 64Ki`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 10*time.Second, "How long to run")
	benchCmd.Flags().IntVar(&benchClients, "clients", 8, "Concurrent clients")
	benchCmd.Flags().StringVar(&benchSize, "size", "16Ki", "Payload size per request")
	benchCmd.Flags().StringVar(&benchPath, "path", "", "Storage file to use (default: a temporary file)")
}

type benchResult struct {
	Duration time.Duration `json:"duration" yaml:"duration"`
	Clients  int           `json:"clients" yaml:"clients"`
	Rounds   int64         `json:"rounds" yaml:"rounds"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Cycles   int64         `json:"cycles" yaml:"cycles"`
	Blocks   uint32        `json:"blocks" yaml:"blocks"`
}

func (r benchResult) Headers() []string {
	return []string{"Duration", "Clients", "Rounds", "Rounds/s", "Throughput", "File blocks"}
}

func (r benchResult) Rows() [][]string {
	secs := r.Duration.Seconds()
	if secs == 0 {
		secs = 1
	}
	return [][]string{{
		r.Duration.Round(time.Millisecond).String(),
		strconv.Itoa(r.Clients),
		strconv.FormatInt(r.Rounds, 10),
		strconv.FormatFloat(float64(r.Rounds)/secs, 'f', 1, 64),
		output.Bytes(int64(float64(r.Bytes)/secs)) + "/s",
		strconv.FormatUint(uint64(r.Blocks), 10),
	}}
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	size, err := bytesize.Parse(benchSize)
	if err != nil {
		return fmt.Errorf("--size: %w", err)
	}
	if benchClients < 1 {
		return errors.New("--clients must be at least 1")
	}

	ctx := cmd.Context()
	shutdown, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	ec, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	ec.Path = benchPath
	if ec.Path == "" {
		dir, err := os.MkdirTemp("", "blockfile-bench-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		ec.Path = filepath.Join(dir, "bench.blk")
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		ec.Metrics = blockfile.NewMetrics(registry)

		stop := serveMetrics(registry, cfg.Metrics.Port)
		defer stop()
	}

	engine, err := blockfile.Open(ec)
	if err != nil {
		return err
	}
	defer engine.Close()

	queue := batch.New(engine, batch.Config{
		Concurrency: cfg.Batch.Concurrency,
		Interval:    cfg.Batch.Interval,
	})

	runCtx, cancel := context.WithTimeout(ctx, benchDuration)
	defer cancel()

	queueDone := make(chan error, 1)
	go func() { queueDone <- queue.Run(runCtx) }()

	var rounds, transferred atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(runCtx)
	for i := range benchClients {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(i), uint64(start.UnixNano())))
			payload := make([]byte, size)
			for gctx.Err() == nil {
				for j := range payload {
					payload[j] = byte(rng.Uint32())
				}
				if err := benchRound(gctx, queue, payload); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
				rounds.Add(1)
				transferred.Add(2 * int64(len(payload)))
			}
			return nil
		})
	}

	benchErr := g.Wait()
	cancel()
	if err := <-queueDone; err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("IO cycle loop ended with error", logger.Err(err))
	}
	if benchErr != nil {
		return benchErr
	}

	st, err := engine.Stat()
	if err != nil {
		return err
	}
	return out.Print(benchResult{
		Duration: time.Since(start),
		Clients:  benchClients,
		Rounds:   rounds.Load(),
		Bytes:    transferred.Load(),
		Blocks:   st.BlockCount,
	})
}

// benchRound writes payload, reads it back, compares and deletes it.
func benchRound(ctx context.Context, q *batch.Queue, payload []byte) error {
	res, err := q.SubmitWrite(payload).Wait(ctx)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	got, err := q.SubmitRead(res.Indices).Wait(ctx)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if !bytes.Equal(bytes.Join(got.Blocks, nil), payload) {
		return fmt.Errorf("read back mismatch on blocks %s", output.Indices(res.Indices))
	}

	if _, err := q.SubmitDelete(res.Indices).Wait(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// serveMetrics exposes registry on port until the returned function is called.
func serveMetrics(registry *prometheus.Registry, port int) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logger.Err(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
