package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/metrics"
)

// Size thresholds for pool categories.
const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 100         // Max buffers per category
)

// sizeCategory buckets buffers for pooling.
type sizeCategory int

const (
	smallBuffer sizeCategory = iota
	mediumBuffer
	largeBuffer
)

// pooledBuffer wraps a GPU buffer with the metadata needed for reuse.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// BufferPool reuses GPU buffers to reduce allocation overhead for the
// short-lived buffers tensor workloads churn through. Buffers are
// categorized by size and matched on usage flags.
type BufferPool struct {
	device *wgpu.Device

	small  []*pooledBuffer
	medium []*pooledBuffer
	large  []*pooledBuffer

	mu sync.Mutex
}

// NewBufferPool creates a buffer pool for the given device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		small:  make([]*pooledBuffer, 0, maxPoolSize),
		medium: make([]*pooledBuffer, 0, maxPoolSize),
		large:  make([]*pooledBuffer, 0, maxPoolSize),
	}
}

// Acquire returns a pooled buffer that matches or exceeds the requested
// size and usage, or creates a new one.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	category := categorize(size)
	pool := p.getPool(category)

	for i, pb := range pool {
		if pb.size >= size && pb.usage&usage == usage {
			buffer := pb.buffer
			p.removeFromPool(category, i)
			metrics.BufferPoolHits.Inc()
			return buffer
		}
	}

	metrics.BufferPoolMisses.Inc()
	buffer, err := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
	if err != nil {
		return nil
	}
	return buffer
}

// Release returns a buffer to the pool for reuse. If the pool category
// is full the buffer is released immediately.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	category := categorize(size)
	if len(p.getPool(category)) >= maxPoolSize {
		buffer.Release()
		return
	}

	p.addToPool(category, &pooledBuffer{buffer: buffer, size: size, usage: usage})
}

// Clear releases all pooled buffers. Called when the context is
// released.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pb := range p.small {
		pb.buffer.Release()
	}
	p.small = p.small[:0]

	for _, pb := range p.medium {
		pb.buffer.Release()
	}
	p.medium = p.medium[:0]

	for _, pb := range p.large {
		pb.buffer.Release()
	}
	p.large = p.large[:0]
}

// PooledCount returns the number of buffers currently held by the pool.
func (p *BufferPool) PooledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.small) + len(p.medium) + len(p.large)
}

func categorize(size uint64) sizeCategory {
	if size < smallThreshold {
		return smallBuffer
	}
	if size < mediumThreshold {
		return mediumBuffer
	}
	return largeBuffer
}

func (p *BufferPool) getPool(category sizeCategory) []*pooledBuffer {
	switch category {
	case smallBuffer:
		return p.small
	case mediumBuffer:
		return p.medium
	case largeBuffer:
		return p.large
	default:
		return nil
	}
}

func (p *BufferPool) addToPool(category sizeCategory, pb *pooledBuffer) {
	switch category {
	case smallBuffer:
		p.small = append(p.small, pb)
	case mediumBuffer:
		p.medium = append(p.medium, pb)
	case largeBuffer:
		p.large = append(p.large, pb)
	}
}

func (p *BufferPool) removeFromPool(category sizeCategory, i int) {
	switch category {
	case smallBuffer:
		p.small = append(p.small[:i], p.small[i+1:]...)
	case mediumBuffer:
		p.medium = append(p.medium[:i], p.medium[i+1:]...)
	case largeBuffer:
		p.large = append(p.large[:i], p.large[i+1:]...)
	}
}
