package stack

import "sync"

type fixedPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool returns a pool of buffers of the given size.
func NewBufferPool(size int) BufferPool {

	p := &fixedPool{size: size}
	p.pool.New = func() interface{} {
		return make([]byte, size)
	}

	return p
}

func (p *fixedPool) Get() []byte {
	return p.pool.Get().([]byte)[:p.size]
}

func (p *fixedPool) Put(b []byte) {

	if cap(b) < p.size {
		return
	}

	p.pool.Put(b[:p.size]) // nolint: staticcheck
}
