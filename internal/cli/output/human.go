package output

import (
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/blockfile/internal/bytesize"
)

// LocalTimeFormat is the layout used for timestamps in tables.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// Bytes formats n with binary units, e.g. "1.50KiB".
func Bytes(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10) + "B"
	}
	return bytesize.ByteSize(n).String()
}

// Time formats t in local time. The zero time prints as "-".
func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// Indices renders an index list compactly, collapsing ascending runs:
// [0 1 2 3 7 9 10] becomes "0-3,7,9-10". Order is preserved, so a list that
// is not ascending renders run by run.
func Indices(indices []uint32) string {
	if len(indices) == 0 {
		return "-"
	}

	var b strings.Builder
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(indices[i]), 10))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.FormatUint(uint64(indices[j]), 10))
		}
		i = j + 1
	}
	return b.String()
}
