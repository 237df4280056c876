package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Run("ReturnsFullSize", func(t *testing.T) {
		p := New(4100)
		buf := p.Get()
		defer p.Put(buf)

		assert.Len(t, buf, 4100)
		assert.Equal(t, 4100, p.Size())
	})

	t.Run("OversizedNotPooled", func(t *testing.T) {
		p := New(MaxPooledSize + 1)
		buf := p.Get()
		assert.Len(t, buf, MaxPooledSize+1)
		require.NotPanics(t, func() { p.Put(buf) })
	})
}

func TestPut(t *testing.T) {
	t.Run("RestoresLength", func(t *testing.T) {
		p := New(64)
		buf := p.Get()
		p.Put(buf[:10])

		again := p.Get()
		assert.Len(t, again, 64)
	})

	t.Run("IgnoresForeignBuffers", func(t *testing.T) {
		p := New(64)
		require.NotPanics(t, func() {
			p.Put(nil)
			p.Put(make([]byte, 128))
		})
		assert.Len(t, p.Get(), 64)
	})
}

func TestConcurrentAccess(t *testing.T) {
	p := New(512)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := p.Get()
				buf[0] = byte(id)
				buf[len(buf)-1] = byte(j)
				p.Put(buf)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	p := New(4096 + 4)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := p.Get()
		p.Put(buf)
	}
}
