package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/tensor"
)

// Image wraps a 3D storage texture together with its immutable sizing.
// The wgpu handle may be nil when physical binding was deferred at
// construction; Bound reports whether the texture is materialized.
type Image struct {
	texture *wgpu.Texture
	extents tensor.Extents
	format  wgpu.TextureFormat
	destroy func()
}

// NewExternalImage wraps a caller-owned texture so it can back a
// tensor. The wrapper never destroys an external texture.
func NewExternalImage(texture *wgpu.Texture, extents tensor.Extents, format wgpu.TextureFormat) *Image {
	return &Image{texture: texture, extents: extents, format: format}
}

// Extents returns the texel-space extents the image was created with.
func (im *Image) Extents() tensor.Extents {
	return im.extents
}

// Format returns the texture format.
func (im *Image) Format() wgpu.TextureFormat {
	return im.format
}

// Handle returns the underlying wgpu texture, or nil if binding was
// deferred or the image has been destroyed.
func (im *Image) Handle() *wgpu.Texture {
	return im.texture
}

// Bound reports whether the image has physical GPU memory behind it.
func (im *Image) Bound() bool {
	return im.texture != nil
}

// Destroy releases the underlying texture through the teardown hook
// installed by the creating context. Safe to call more than once;
// external images are left untouched.
func (im *Image) Destroy() {
	if im.destroy != nil {
		im.destroy()
		im.destroy = nil
	}
	im.texture = nil
}

// Buffer wraps a linear GPU buffer together with its immutable sizing.
// The wgpu handle may be nil when physical binding was deferred.
type Buffer struct {
	handle  *wgpu.Buffer
	size    uint64
	offset  uint64
	usage   wgpu.BufferUsage
	destroy func()
}

// Size returns the buffer's byte size.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Offset returns the byte offset of this buffer within its allocation.
func (b *Buffer) Offset() uint64 {
	return b.offset
}

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() wgpu.BufferUsage {
	return b.usage
}

// Handle returns the underlying wgpu buffer, or nil if binding was
// deferred or the buffer has been destroyed.
func (b *Buffer) Handle() *wgpu.Buffer {
	return b.handle
}

// Bound reports whether the buffer has physical GPU memory behind it.
func (b *Buffer) Bound() bool {
	return b.handle != nil
}

// Destroy releases the underlying buffer through the teardown hook
// installed by the creating context. Safe to call more than once.
func (b *Buffer) Destroy() {
	if b.destroy != nil {
		b.destroy()
		b.destroy = nil
	}
	b.handle = nil
}

// texelFormatFor maps an element type to the texture format whose
// texels bundle four elements of that type.
func texelFormatFor(dt tensor.DataType) (wgpu.TextureFormat, error) {
	switch dt {
	case tensor.Float32:
		return wgpu.TextureFormatRGBA32Float, nil
	case tensor.Int32:
		return wgpu.TextureFormatRGBA32Sint, nil
	case tensor.Uint8:
		return wgpu.TextureFormatRGBA8Uint, nil
	default:
		return 0, fmt.Errorf("no texel format for %s: %w", dt, ErrUnsupportedDType)
	}
}

// dtypeForFormat is the inverse of texelFormatFor, used when adopting
// an externally created image.
func dtypeForFormat(format wgpu.TextureFormat) (tensor.DataType, error) {
	switch format {
	case wgpu.TextureFormatRGBA32Float:
		return tensor.Float32, nil
	case wgpu.TextureFormatRGBA32Sint:
		return tensor.Int32, nil
	case wgpu.TextureFormatRGBA8Uint:
		return tensor.Uint8, nil
	default:
		return 0, fmt.Errorf("no element type for texture format %d: %w", format, ErrUnsupportedDType)
	}
}
