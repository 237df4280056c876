// Package bufpool recycles fixed-size frame buffers for block I/O.
//
// Every block of a file has the same physical size, so an engine needs
// exactly one buffer size for the lifetime of the file. A Pool hands out
// buffers of that size and takes them back after each block read or write,
// which keeps batch I/O from allocating one frame per block.
//
// Frames larger than MaxPooledSize are allocated on demand and dropped on
// Put so a handful of huge blocks cannot pin memory indefinitely.
//
// # Usage
//
//	p := bufpool.New(frameSize)
//	buf := p.Get()
//	defer p.Put(buf)
package bufpool

import "sync"

// MaxPooledSize is the largest buffer size kept for reuse (16MB).
const MaxPooledSize = 16 << 20

// Pool hands out byte slices of one fixed size. Safe for concurrent use.
type Pool struct {
	size   int
	pooled bool
	pool   sync.Pool
}

// New creates a pool of size-byte buffers.
func New(size int) *Pool {
	p := &Pool{
		size:   size,
		pooled: size > 0 && size <= MaxPooledSize,
	}
	p.pool.New = func() any {
		buf := make([]byte, p.size)
		return &buf
	}
	return p
}

// Size returns the length of the buffers returned by Get.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a buffer of exactly Size bytes. Its content is unspecified.
// The caller must call Put when finished with it.
func (p *Pool) Get() []byte {
	if !p.pooled {
		return make([]byte, p.size)
	}
	return *p.pool.Get().(*[]byte)
}

// Put returns buf to the pool. Buffers whose capacity does not match the
// pool size are ignored, as is everything when pooling is disabled.
func (p *Pool) Put(buf []byte) {
	if !p.pooled || cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
