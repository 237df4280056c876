package bytesize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain", "4096", 4096, false},
		{"bytes suffix", "512B", 512, false},
		{"kibibytes", "4Ki", 4 * KiB, false},
		{"kibibytes long", "4KiB", 4 * KiB, false},
		{"mebibytes", "2MiB", 2 * MiB, false},
		{"decimal kilobytes", "8KB", 8000, false},
		{"case insensitive", "4ki", 4 * KiB, false},
		{"surrounding space", "  64 Ki ", 64 * KiB, false},
		{"fraction", "1.5Ki", 1536, false},
		{"empty", "", 0, true},
		{"unit only", "Ki", 0, true},
		{"unknown unit", "3Xi", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("8Ki")))
	assert.Equal(t, 8*KiB, b)

	text, err := b.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "8192", string(text))
}

func TestUint32(t *testing.T) {
	v, err := (4 * KiB).Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), v)

	_, err = ByteSize(math.MaxUint32 + 1).Uint32()
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "4.00KiB", (4 * KiB).String())
	assert.Equal(t, "1.50MiB", ByteSize(1536*KiB).String())
	assert.Equal(t, "2.00GiB", (2 * GiB).String())
}
