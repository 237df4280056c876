package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blockfile/pkg/blockfile"
)

type memUploader struct {
	key  string
	size int64
	data []byte
	err  error
}

func (m *memUploader) Upload(_ context.Context, key string, body io.ReadSeeker, size int64) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.key, m.size, m.data = key, size, data
	return nil
}

func openEngine(t *testing.T) *blockfile.Engine {
	t.Helper()
	e, err := blockfile.OpenPath(filepath.Join(t.TempDir(), "data.blk"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestRun(t *testing.T) {
	e := openEngine(t)
	_, err := e.Write(context.Background(), bytes.Repeat([]byte("snap"), 20))
	require.NoError(t, err)

	spool := t.TempDir()
	up := &memUploader{}
	res, err := Run(context.Background(), e, up, "data.blk", Options{SpoolDir: spool})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(e.Path())
	require.NoError(t, err)

	assert.Equal(t, "data.blk", res.Key)
	assert.Equal(t, int64(len(onDisk)), res.Size)
	assert.Equal(t, res.Size, up.size)
	assert.Equal(t, onDisk, up.data)

	left, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, left, "spool file should be removed")
}

func TestRun_UploadFailure(t *testing.T) {
	e := openEngine(t)
	spool := t.TempDir()

	_, err := Run(context.Background(), e, &memUploader{err: errors.New("denied")}, "k", Options{SpoolDir: spool})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	left, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRun_ClosedEngine(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.Close())

	_, err := Run(context.Background(), e, &memUploader{}, "k", Options{SpoolDir: t.TempDir()})
	assert.ErrorIs(t, err, blockfile.ErrClosed)
}

func TestDefaultKey(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "data-20260102T030405Z.blk", DefaultKey("/var/lib/data.blk", at))
	assert.Equal(t, "store-20260102T030405Z.blk", DefaultKey("store", at))
}

type fakePutObject struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutObject) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Target_Upload(t *testing.T) {
	fake := &fakePutObject{}
	target := &S3Target{client: fake, bucket: "snapshots", keyPrefix: "nightly/"}

	err := target.Upload(context.Background(), "a.blk", bytes.NewReader([]byte("abc")), 3)
	require.NoError(t, err)

	assert.Equal(t, "snapshots", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "nightly/a.blk", aws.ToString(fake.input.Key))
	assert.Equal(t, int64(3), aws.ToInt64(fake.input.ContentLength))
	assert.Equal(t, []byte("abc"), fake.body)
	assert.Equal(t, "s3://snapshots/nightly/a.blk", target.Location("a.blk"))
}

func TestNewS3TargetFromConfig_RequiresBucket(t *testing.T) {
	_, err := NewS3TargetFromConfig(context.Background(), S3Config{})
	assert.Error(t, err)
}
