package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/blockfile/internal/cli/output"
	"github.com/marmos91/blockfile/pkg/backup"
)

var (
	backupKey    string
	backupBucket string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of the storage file to S3",
	Long: `Take a consistent snapshot of the storage file and upload it to the
bucket configured under backup.s3.

Operations on the storage file are paused only while the snapshot is copied
to a local temporary file, not during the upload.

Examples:
  # Upload with a timestamped key
  blockfile backup

  # Upload to a MinIO bucket under a fixed key
  BLOCKFILE_BACKUP_S3_ENDPOINT=http://localhost:9000 \
    blockfile backup --bucket snapshots --key latest.blk`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupKey, "key", "", "Object key (default: <name>-<timestamp>.blk)")
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "Bucket override")
}

type backupView struct {
	backup.Result `yaml:",inline"`
	Location      string `json:"location" yaml:"location"`
}

func (v backupView) Headers() []string { return []string{"Location", "Size", "Duration"} }

func (v backupView) Rows() [][]string {
	return [][]string{{v.Location, output.Bytes(v.Size), v.Duration.Round(time.Millisecond).String()}}
}

func runBackup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	shutdown, err := startTelemetry(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	s3cfg := s.cfg.Backup.S3
	if backupBucket != "" {
		s3cfg.Bucket = backupBucket
	}
	target, err := backup.NewS3TargetFromConfig(ctx, backup.S3Config{
		Bucket:          s3cfg.Bucket,
		Region:          s3cfg.Region,
		Endpoint:        s3cfg.Endpoint,
		KeyPrefix:       s3cfg.KeyPrefix,
		ForcePathStyle:  s3cfg.ForcePathStyle,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
	})
	if err != nil {
		return err
	}

	key := backupKey
	if key == "" {
		key = backup.DefaultKey(s.engine.Path(), time.Now())
	}

	res, err := backup.Run(ctx, s.engine, target, key, backup.Options{})
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return s.out.Print(backupView{Result: res, Location: target.Location(key)})
}
