package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Index", "Length")
	assert.Equal(t, []string{"Index", "Length"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("0", "16")
	table.AddRow("1", "0")
	assert.Equal(t, [][]string{{"0", "16"}, {"1", "0"}}, table.Rows())

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))
	assert.Contains(t, buf.String(), "INDEX")
	assert.Contains(t, buf.String(), "LENGTH")
	assert.Contains(t, buf.String(), "16")
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"Blocks", "12"}, {"Free", "3"}}))
	assert.Contains(t, buf.String(), "Blocks")
	assert.Contains(t, buf.String(), "12")
	assert.Contains(t, buf.String(), "Free")
}

func TestIndices(t *testing.T) {
	tests := []struct {
		in   []uint32
		want string
	}{
		{nil, "-"},
		{[]uint32{5}, "5"},
		{[]uint32{0, 1, 2, 3, 7, 9, 10}, "0-3,7,9-10"},
		{[]uint32{4, 5, 1, 2}, "4-5,1-2"},
		{[]uint32{3, 3}, "3,3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Indices(tt.in))
	}
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "512B", Bytes(512))
	assert.Equal(t, "1.50KiB", Bytes(1536))
	assert.Equal(t, "-1B", Bytes(-1))
}

func TestTime(t *testing.T) {
	assert.Equal(t, "-", Time(time.Time{}))
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "Sun Mar 1 12:00:00 2026", Time(ts))
}
