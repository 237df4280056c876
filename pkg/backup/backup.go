// Package backup uploads consistent snapshots of a block file.
//
// A snapshot is first spooled to a local temporary file, so the engine is
// paused only for a local copy and never for the duration of a network
// upload.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/blockfile/internal/logger"
	"github.com/marmos91/blockfile/internal/telemetry"
)

// Uploader stores a snapshot under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error
}

// Source produces snapshots. *blockfile.Engine satisfies it.
type Source interface {
	Snapshot(ctx context.Context, w io.Writer) (int64, error)
	Path() string
}

// Result describes a completed backup.
type Result struct {
	Key      string        `json:"key" yaml:"key"`
	Size     int64         `json:"size" yaml:"size"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Options tunes Run.
type Options struct {
	// SpoolDir holds the temporary snapshot copy. Defaults to os.TempDir().
	SpoolDir string
}

// Run snapshots src and uploads it under key.
func Run(ctx context.Context, src Source, up Uploader, key string, opts Options) (res Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBackupUpload,
		telemetry.Path(src.Path()), telemetry.Key(key))
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()

	spool, err := os.CreateTemp(opts.SpoolDir, "blockfile-snapshot-*")
	if err != nil {
		return Result{}, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := src.Snapshot(ctx, spool)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind spool file: %w", err)
	}

	logger.DebugCtx(ctx, "Snapshot spooled", logger.KeyPath, src.Path(), logger.KeyBytes, size)

	if err := up.Upload(ctx, key, spool, size); err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", key, err)
	}

	res = Result{Key: key, Size: size, Duration: time.Since(start)}
	logger.InfoCtx(ctx, "Backup uploaded",
		"key", key, logger.KeyBytes, size, logger.KeyDuration, res.Duration.Milliseconds())
	return res, nil
}

// DefaultKey names a snapshot of path taken at t, e.g.
// "data-20260102T030405Z.blk".
func DefaultKey(path string, t time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".blk"
	}
	return strings.TrimSuffix(base, ext) + "-" + t.UTC().Format("20060102T150405Z") + ext
}
