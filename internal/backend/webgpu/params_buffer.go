package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"
)

// BufferBindInfo describes how to bind a slice of a buffer to a shader:
// the buffer handle plus the byte offset and length of the bound range.
type BufferBindInfo struct {
	Buffer *Buffer
	Offset uint64
	Range  uint64
}

// ParamsBuffer is a small owned uniform buffer used to pass parameters
// such as tensor metadata to compute shaders. Contents are updated in
// place through the context's queue.
type ParamsBuffer struct {
	ctx Context
	buf *Buffer
}

// NewParamsBuffer allocates a uniform buffer of the given byte size.
func NewParamsBuffer(ctx Context, size uint64) (*ParamsBuffer, error) {
	buf, err := ctx.NewBuffer(size, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, true)
	if err != nil {
		return nil, fmt.Errorf("params buffer: %w", err)
	}
	return &ParamsBuffer{ctx: ctx, buf: buf}, nil
}

// Update overwrites len(data) bytes at the given byte offset.
func (p *ParamsBuffer) Update(data []byte, offset uint32) error {
	if uint64(offset)+uint64(len(data)) > p.buf.Size() {
		return fmt.Errorf("params buffer write of %d bytes at offset %d exceeds size %d: %w",
			len(data), offset, p.buf.Size(), ErrOutOfBounds)
	}
	return p.ctx.WriteBuffer(p.buf, uint64(offset), data)
}

// BindInfo returns a binding descriptor for a range of the buffer.
func (p *ParamsBuffer) BindInfo(offset uint32, size uint32) BufferBindInfo {
	return BufferBindInfo{Buffer: p.buf, Offset: uint64(offset), Range: uint64(size)}
}

// Buffer returns the underlying buffer wrapper.
func (p *ParamsBuffer) Buffer() *Buffer {
	return p.buf
}

// Destroy registers the backing buffer for deferred destruction.
func (p *ParamsBuffer) Destroy() {
	if p.buf != nil {
		buf := p.buf
		p.buf = nil
		p.ctx.DeferRelease(buf.Destroy)
	}
}
