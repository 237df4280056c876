// Package freelist tracks which blocks of a block file are free.
//
// A block is free when its stored data length is zero. The Registry is the
// in-memory mirror of that set: it is rebuilt from a full scan when a file is
// opened and afterwards mutated only through Acquire and Release.
//
// Thread Safety:
// All methods are safe for concurrent use. The internal lock covers only
// registry bookkeeping; callers perform block I/O outside of it.
package freelist

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/marmos91/blockfile/pkg/blockfile/layout"
)

// ErrInvalidBlock indicates a release of an index that is already free.
var ErrInvalidBlock = errors.New("invalid block")

// scanBufSize bounds the buffer used to read consecutive block headers.
const scanBufSize = 1 << 20

// Registry is the set of free block indices of one open block file.
//
// Membership is kept in a map for O(1) checks; a min-heap over the same
// indices lets Acquire hand out the lowest free blocks first so reuse stays
// close to the start of the file.
type Registry struct {
	mu      sync.Mutex
	members map[uint32]struct{}
	order   indexHeap
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{members: make(map[uint32]struct{})}
}

// InitializeFromScan reads the length prefix of every block in r and
// registers each block whose length is zero. Any previous content of the
// registry is discarded. It returns the number of free blocks found.
func (r *Registry) InitializeFromScan(src io.ReaderAt, g layout.Geometry, blockCount uint32) (int, error) {
	free := make([]uint32, 0)

	frame := g.FrameSize()
	perRead := int64(scanBufSize) / frame
	if perRead < 1 {
		perRead = 1
	}

	var buf []byte
	if perRead > 1 {
		buf = make([]byte, perRead*frame)
	} else {
		buf = make([]byte, layout.BlockHeaderSize)
	}

	for start := uint32(0); start < blockCount; {
		n := min(int64(blockCount-start), perRead)

		var chunk []byte
		if perRead > 1 {
			chunk = buf[:n*frame]
		} else {
			chunk = buf
		}
		read, err := src.ReadAt(chunk, g.Offset(start))
		if err != nil && !(errors.Is(err, io.EOF) && read == len(chunk)) {
			return 0, fmt.Errorf("read block headers at index %d: %w", start, err)
		}

		for k := int64(0); k < n; k++ {
			index := start + uint32(k)
			length, err := g.DecodeBlockHeader(chunk[k*frame:])
			if err != nil {
				return 0, fmt.Errorf("block %d: %w", index, err)
			}
			if length == 0 {
				free = append(free, index)
			}
		}
		start += uint32(n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[uint32]struct{}, len(free))
	for _, index := range free {
		r.members[index] = struct{}{}
	}
	// Indices were collected in ascending order, which is already a valid heap.
	r.order = indexHeap(free)

	return len(free), nil
}

// Acquire removes and returns up to n free indices, lowest first.
// When fewer than n are free it returns all of them together with the
// number still missing; the caller closes the gap by growing the file.
func (r *Registry) Acquire(n int) (indices []uint32, deficit int) {
	if n <= 0 {
		return nil, 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	take := min(n, len(r.order))
	indices = make([]uint32, 0, take)
	for range take {
		index := heap.Pop(&r.order).(uint32)
		delete(r.members, index)
		indices = append(indices, index)
	}

	return indices, n - take
}

// Release returns indices to the registry. It fails with ErrInvalidBlock,
// leaving the registry unchanged, if any index is already free or appears
// twice in the slice.
func (r *Registry) Release(indices ...uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint32]struct{}, len(indices))
	for _, index := range indices {
		if _, ok := r.members[index]; ok {
			return fmt.Errorf("%w: block %d is already free", ErrInvalidBlock, index)
		}
		if _, ok := seen[index]; ok {
			return fmt.Errorf("%w: block %d released twice", ErrInvalidBlock, index)
		}
		seen[index] = struct{}{}
	}

	for _, index := range indices {
		r.members[index] = struct{}{}
		heap.Push(&r.order, index)
	}
	return nil
}

// Contains reports whether index is currently free.
func (r *Registry) Contains(index uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[index]
	return ok
}

// Len returns the number of free blocks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

// Snapshot returns the free indices in ascending order.
func (r *Registry) Snapshot() []uint32 {
	r.mu.Lock()
	out := make([]uint32, 0, len(r.members))
	for index := range r.members {
		out = append(out, index)
	}
	r.mu.Unlock()

	slices.Sort(out)
	return out
}

// indexHeap is a min-heap of block indices.
type indexHeap []uint32

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) { *h = append(*h, x.(uint32)) }

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
