package webgpu

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/tensor"
)

// fakeContext implements Context without a GPU. Resources stay unbound
// (nil native handles); allocations, writes and deferred releases are
// recorded for inspection.
type fakeContext struct {
	buffers  int
	images   int
	writes   []fakeWrite
	deferred []func()
}

type fakeWrite struct {
	buf    *Buffer
	offset uint64
	data   []byte
}

func newFakeContext() *fakeContext {
	return &fakeContext{}
}

func (c *fakeContext) NewBuffer(size uint64, usage wgpu.BufferUsage, allocate bool) (*Buffer, error) {
	c.buffers++
	return &Buffer{size: size, usage: usage}, nil
}

func (c *fakeContext) NewImage(extents tensor.Extents, format wgpu.TextureFormat, allocate bool) (*Image, error) {
	c.images++
	return &Image{extents: extents, format: format}, nil
}

func (c *fakeContext) BindBuffer(b *Buffer) error {
	return nil
}

func (c *fakeContext) BindImage(im *Image) error {
	return nil
}

func (c *fakeContext) WriteBuffer(b *Buffer, offset uint64, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, fakeWrite{buf: b, offset: offset, data: cp})
	return nil
}

func (c *fakeContext) DeferRelease(release func()) {
	c.deferred = append(c.deferred, release)
}

func (c *fakeContext) MinUniformAlignment() uint32 {
	return minUniformAlignment
}

// writesTo filters recorded writes down to one destination buffer.
func (c *fakeContext) writesTo(buf *Buffer) []fakeWrite {
	var out []fakeWrite
	for _, w := range c.writes {
		if w.buf == buf {
			out = append(out, w)
		}
	}
	return out
}
