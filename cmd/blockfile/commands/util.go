package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/cli/output"
	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
	"github.com/marmos91/blockfile/pkg/blockfile"
	"github.com/marmos91/blockfile/pkg/catalog"
	"github.com/marmos91/blockfile/pkg/config"
)

// InitLogger initializes the structured logger from configuration. Output
// configured as "stderr" goes to the command's error stream.
func InitLogger(cfg *config.Config, stderr io.Writer) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if verbose {
		loggerCfg.Level = "DEBUG"
	}
	if strings.EqualFold(loggerCfg.Output, "stderr") && stderr != nil && stderr != os.Stderr {
		logger.InitWithWriter(stderr, loggerCfg.Level, loggerCfg.Format, false)
		return nil
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration named by --config, or the defaults
// when no file exists, and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newPrinter returns a printer for the command's stdout honoring --output
// and --no-color.
func newPrinter(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, !noColor), nil
}

// engineConfig maps the storage section onto an engine configuration.
func engineConfig(cfg *config.Config) (blockfile.Config, error) {
	blockLen, err := cfg.Storage.BlockLen.Uint32()
	if err != nil {
		return blockfile.Config{}, fmt.Errorf("storage.block_len: %w", err)
	}
	ec := blockfile.DefaultConfig(cfg.Storage.Path)
	ec.BlockLen = blockLen
	ec.SecureErase = cfg.Storage.SecureErase
	ec.SyncWrites = cfg.Storage.SyncWrites
	return ec, nil
}

// session bundles what a command needs to work on the configured store.
type session struct {
	cfg     *config.Config
	engine  *blockfile.Engine
	catalog *catalog.Catalog
	out     *output.Printer
}

type sessionOptions struct {
	catalog bool
	metrics *blockfile.Metrics
}

func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	out, err := newPrinter(cmd)
	if err != nil {
		return nil, err
	}

	ec, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}
	ec.Metrics = opts.metrics
	if err := os.MkdirAll(filepath.Dir(ec.Path), 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	engine, err := blockfile.Open(ec)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, engine: engine, out: out}
	if opts.catalog {
		s.catalog, err = catalog.Open(catalog.Options{
			Path:       cfg.Catalog.Path,
			SyncWrites: cfg.Catalog.SyncWrites,
		})
		if err != nil {
			_ = engine.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.catalog != nil {
		errs = append(errs, s.catalog.Close())
	}
	errs = append(errs, s.engine.Close())
	return errors.Join(errs...)
}

// startTelemetry initializes tracing and profiling from cfg. The returned
// function shuts both down.
func startTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	tcfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if telemetry.IsEnabled() {
		logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint,
			"sample_rate", cfg.Telemetry.SampleRate)
	}

	prof := cfg.Telemetry.Profiling
	profilingStop, err := telemetry.InitProfiling(tcfg.Profiling(prof.Enabled, prof.Endpoint, prof.ProfileTypes))
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	return func() {
		if err := profilingStop(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}, nil
}

// parseIndices parses block index arguments.
func parseIndices(args []string) ([]uint32, error) {
	indices := make([]uint32, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid block index %q", arg)
		}
		indices = append(indices, uint32(v))
	}
	return indices, nil
}

// readInput reads the payload named by args: a file path, "-" or nothing
// for stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// openOutput returns the destination for payload output: the file at path,
// or the command's stdout when path is empty or "-".
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
