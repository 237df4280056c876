package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/blockfile/pkg/catalog"
)

// resetFlags restores flag variables between invocations; cobra keeps the
// values of the previous parse.
func resetFlags() {
	configFile, outputFormat, noColor, verbose = "", "table", true, false
	initForce = false
	formatBlockLen, formatWipe, formatForce = "", false, false
	getOutput, rmErase = "", false
	readOutput, deleteErase = "", false
	statCatalog = false
	versionShort = false
}

// testEnv writes a config rooted in a temp dir and returns its path.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := map[string]any{
		"logging": map[string]any{"level": "ERROR", "format": "text", "output": "stderr"},
		"storage": map[string]any{"path": filepath.Join(dir, "data.blk"), "block_len": "16"},
		"catalog": map[string]any{"path": filepath.Join(dir, "catalog")},
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// execute runs one invocation and returns what it wrote to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	root := GetRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, _, err := execute(t, stdin, args...)
	require.NoError(t, err, "blockfile %s", strings.Join(args, " "))
	return out
}

func runErr(t *testing.T, args ...string) error {
	t.Helper()
	_, _, err := execute(t, "", args...)
	return err
}

func TestObjectLifecycle(t *testing.T) {
	cfg := testEnv(t)
	payload := "a payload spanning several sixteen byte blocks"

	run(t, payload, "put", "notes.txt", "-", "--config", cfg)

	got := run(t, "", "get", "notes.txt", "--config", cfg)
	assert.Equal(t, payload, got)

	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "ls", "-o", "json", "--config", cfg)), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name)
	assert.Equal(t, int64(len(payload)), entries[0].Size)
	assert.Equal(t, []uint32{0, 1, 2}, entries[0].Indices)

	err := runErr(t, "put", "notes.txt", "-", "--config", cfg)
	assert.ErrorIs(t, err, catalog.ErrExists)

	run(t, "", "rm", "notes.txt", "--config", cfg)

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "stat", "--catalog", "-o", "json", "--config", cfg)), &st))
	assert.EqualValues(t, 3, st["block_count"])
	assert.EqualValues(t, 3, st["free_count"])
	assert.EqualValues(t, 0, st["objects"])
	assert.EqualValues(t, 0, st["unreferenced"])
}

func TestRawBlocks(t *testing.T) {
	cfg := testEnv(t)

	var written indicesView
	require.NoError(t, json.Unmarshal([]byte(run(t, "0123456789abcdefXYZ", "write", "-o", "json", "--config", cfg)), &written))
	assert.Equal(t, []uint32{0, 1}, written.Indices)
	assert.Equal(t, 19, written.Bytes)

	assert.Equal(t, "XYZ0123456789abcdef", run(t, "", "read", "1", "0", "--config", cfg))

	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "stat", "-o", "json", "--config", cfg)), &st))
	assert.EqualValues(t, 2, st["occupied_count"])
	assert.NotContains(t, st, "objects")

	run(t, "", "delete", "0", "--config", cfg)
	assert.Error(t, runErr(t, "delete", "0", "--config", cfg), "double free")
	assert.Error(t, runErr(t, "read", "7", "--config", cfg), "out of range")
	assert.Error(t, runErr(t, "read", "x", "--config", cfg))
}

func TestInspect_ShowsOwners(t *testing.T) {
	cfg := testEnv(t)
	run(t, strings.Repeat("z", 20), "put", "zz", "--config", cfg)
	run(t, "loose", "write", "--config", cfg)

	var blocks []blockView
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "inspect", "-o", "json", "--config", cfg)), &blocks))
	require.Len(t, blocks, 3)
	assert.Equal(t, "zz", blocks[0].Owner)
	assert.Equal(t, uint32(16), blocks[0].DataLength)
	assert.Equal(t, "zz", blocks[1].Owner)
	assert.Equal(t, uint32(4), blocks[1].DataLength)
	assert.Empty(t, blocks[2].Owner)
	assert.Equal(t, uint32(5), blocks[2].DataLength)
}

func TestFormat_BlockLenMismatch(t *testing.T) {
	cfg := testEnv(t)
	run(t, "", "format", "--config", cfg)

	err := runErr(t, "format", "--block-len", "32", "--config", cfg)
	assert.Error(t, err)

	run(t, "", "format", "--wipe", "--force", "--block-len", "32", "--config", cfg)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "format", "-o", "json", "--block-len", "32", "--config", cfg)), &st))
	assert.EqualValues(t, 32, st["block_len"])
}

func TestRm_ReportsSkippedNames(t *testing.T) {
	cfg := testEnv(t)
	run(t, "keep me short", "put", "a", "--config", cfg)

	out, _, err := execute(t, "", "rm", "missing", "a", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Contains(t, out, "Skipped missing")
	assert.Contains(t, out, "Removed a (1 blocks)")

	assert.Error(t, runErr(t, "get", "a", "--config", cfg))
}

func TestStat_Table(t *testing.T) {
	cfg := testEnv(t)
	run(t, strings.Repeat("q", 40), "put", "q", "--config", cfg)

	out := run(t, "", "stat", "--catalog", "--config", cfg)
	assert.Contains(t, out, "Objects")
	assert.Contains(t, out, "Unreferenced blocks")

	out = run(t, "", "stat", "--config", cfg)
	assert.Contains(t, out, "Occupied")
	assert.NotContains(t, out, "Objects")
}

func TestLogsFollowCommandStderr(t *testing.T) {
	cfg := testEnv(t)

	_, stderr, err := execute(t, "", "stat", "-v", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Block file opened")

	_, stderr, err = execute(t, "", "stat", "--config", cfg)
	require.NoError(t, err)
	assert.Empty(t, stderr, "configured level is ERROR")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	out := run(t, "", "init", "--config", path)
	assert.Contains(t, out, path)

	_, err := os.Stat(path)
	require.NoError(t, err)

	shown := run(t, "", "config", "show", "--config", path)
	assert.Contains(t, shown, "block_len:")
	assert.Contains(t, run(t, "", "config", "validate", "--config", path), "Validation: OK")

	var shownJSON map[string]any
	require.NoError(t, json.Unmarshal([]byte(run(t, "", "config", "show", "-o", "json", "--config", path)), &shownJSON))
	assert.Contains(t, shownJSON, "Storage")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, Version+"\n", run(t, "", "version", "--short"))
	assert.Contains(t, run(t, "", "version"), "blockfile "+Version)
}

func TestParseIndices(t *testing.T) {
	got, err := parseIndices([]string{"3", "0", "4294967295"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 0, 4294967295}, got)

	for _, bad := range []string{"-1", "4294967296", "abc", ""} {
		_, err := parseIndices([]string{bad})
		assert.Error(t, err, bad)
	}
}
