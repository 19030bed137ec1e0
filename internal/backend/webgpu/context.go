package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/logger"
	"github.com/tessera-ml/tessera/internal/metrics"
	"github.com/tessera-ml/tessera/internal/tensor"
)

// minUniformAlignment is WebGPU's minimum uniform buffer offset
// alignment. Metadata uniform fields are spaced at this stride so each
// can be bound at a dynamic offset.
const minUniformAlignment = 256

// Context is the narrow interface tensors consume from the surrounding
// compute context: resource allocation, uniform content updates, and
// deferred destruction. DeviceContext implements it on a real device;
// tests substitute a recording fake.
type Context interface {
	// NewBuffer allocates a linear buffer. When allocate is false the
	// physical binding is deferred: the returned wrapper carries sizing
	// only and must be passed to BindBuffer before first use.
	NewBuffer(size uint64, usage wgpu.BufferUsage, allocate bool) (*Buffer, error)

	// NewImage allocates a 3D storage texture. Deferred binding works as
	// for NewBuffer.
	NewImage(extents tensor.Extents, format wgpu.TextureFormat, allocate bool) (*Image, error)

	// BindBuffer materializes a buffer whose binding was deferred.
	BindBuffer(b *Buffer) error

	// BindImage materializes an image whose binding was deferred.
	BindImage(im *Image) error

	// WriteBuffer copies data into a buffer at the given byte offset.
	WriteBuffer(b *Buffer, offset uint64, data []byte) error

	// DeferRelease registers a teardown to run once the GPU is known to
	// be done with the resource. Callers must not touch the resource
	// after registering it.
	DeferRelease(release func())

	// MinUniformAlignment returns the byte stride at which uniform
	// fields must be spaced to be individually bindable.
	MinUniformAlignment() uint32
}

// DeviceContext implements Context on a WebGPU device. It owns the
// instance/adapter/device/queue chain, pools buffer allocations, and
// drains deferred destructions when the caller signals GPU completion.
type DeviceContext struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterInfo *wgpu.AdapterInfoGo

	bufferPool *BufferPool

	// Deferred destruction queue, drained by FlushDeferred.
	pending   []func()
	pendingMu sync.Mutex
}

// NewDeviceContext creates a context on the best available adapter.
// Returns an error if WebGPU is not available or initialization fails.
func NewDeviceContext() (ctx *DeviceContext, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo, infoErr := adapter.Info()
	if infoErr != nil {
		adapterInfo = &wgpu.AdapterInfoGo{}
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.Queue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	logger.Log.Debug("webgpu context created",
		"adapter", adapterInfo.Device, "vendor", adapterInfo.Vendor)

	return &DeviceContext{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		adapterInfo: adapterInfo,
		bufferPool:  NewBufferPool(device),
	}, nil
}

// NewBuffer implements Context.
func (c *DeviceContext) NewBuffer(size uint64, usage wgpu.BufferUsage, allocate bool) (*Buffer, error) {
	b := &Buffer{size: size, usage: usage}
	if !allocate {
		return b, nil
	}
	if err := c.BindBuffer(b); err != nil {
		return nil, err
	}
	return b, nil
}

// BindBuffer implements Context.
func (c *DeviceContext) BindBuffer(b *Buffer) error {
	if b.Bound() {
		return nil
	}
	handle := c.bufferPool.Acquire(b.size, b.usage)
	if handle == nil {
		return fmt.Errorf("webgpu: failed to create buffer of %d bytes", b.size)
	}

	size, usage := b.size, b.usage
	b.handle = handle
	b.destroy = func() {
		c.bufferPool.Release(handle, size, usage)
		metrics.GPUBuffersActive.Dec()
		metrics.GPUBytesAllocated.Sub(float64(size))
	}

	metrics.GPUBuffersActive.Inc()
	metrics.GPUBytesAllocated.Add(float64(size))
	return nil
}

// NewImage implements Context.
func (c *DeviceContext) NewImage(extents tensor.Extents, format wgpu.TextureFormat, allocate bool) (*Image, error) {
	im := &Image{extents: extents, format: format}
	if !allocate {
		return im, nil
	}
	if err := c.BindImage(im); err != nil {
		return nil, err
	}
	return im, nil
}

// BindImage implements Context.
func (c *DeviceContext) BindImage(im *Image) error {
	if im.Bound() {
		return nil
	}
	texture, textureErr := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "tensor_image",
		Size: wgpu.Extent3D{
			Width:              im.extents[0],
			Height:             im.extents[1],
			DepthOrArrayLayers: im.extents[2],
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension3D,
		Format:        im.format,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if textureErr != nil || texture == nil {
		return fmt.Errorf("webgpu: failed to create %v texture", im.extents)
	}

	im.texture = texture
	im.destroy = func() {
		texture.Release()
		metrics.GPUImagesActive.Dec()
	}

	metrics.GPUImagesActive.Inc()
	return nil
}

// WriteBuffer implements Context.
func (c *DeviceContext) WriteBuffer(b *Buffer, offset uint64, data []byte) error {
	if !b.Bound() {
		return fmt.Errorf("webgpu: write to unbound buffer: %w", ErrInvalidResource)
	}
	c.queue.WriteBuffer(b.handle, b.offset+offset, data)
	return nil
}

// DeferRelease implements Context.
func (c *DeviceContext) DeferRelease(release func()) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, release)
}

// MinUniformAlignment implements Context.
func (c *DeviceContext) MinUniformAlignment() uint32 {
	return minUniformAlignment
}

// FlushDeferred runs all registered teardowns. Call it only after the
// GPU has finished the work that referenced the destroyed resources,
// e.g. after waiting on the queue.
func (c *DeviceContext) FlushDeferred() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	for _, release := range pending {
		release()
	}
	if len(pending) > 0 {
		metrics.DeferredReleases.Add(float64(len(pending)))
		logger.Log.Debug("flushed deferred releases", "count", len(pending))
	}
}

// AdapterInfo returns information about the GPU adapter.
func (c *DeviceContext) AdapterInfo() *wgpu.AdapterInfoGo {
	return c.adapterInfo
}

// Device returns the underlying wgpu device for callers that encode
// their own command buffers.
func (c *DeviceContext) Device() *wgpu.Device {
	return c.device
}

// Queue returns the underlying wgpu queue.
func (c *DeviceContext) Queue() *wgpu.Queue {
	return c.queue
}

// Release tears down the context. All tensors created against it must
// have been released first; pending deferred destructions are drained.
func (c *DeviceContext) Release() {
	c.FlushDeferred()

	if c.bufferPool != nil {
		c.bufferPool.Clear()
		c.bufferPool = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return false
	}
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// ListAdapters returns information about available GPU adapters.
func ListAdapters() (adapters []*wgpu.AdapterInfoGo, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			adapters = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instanceErr)
	}
	defer instance.Release()

	adapter, adapterErr := instance.RequestAdapter(nil)
	if adapterErr != nil {
		return nil, fmt.Errorf("webgpu: no adapters available: %w", adapterErr)
	}
	defer adapter.Release()

	info, infoErr := adapter.Info()
	if infoErr != nil {
		return nil, fmt.Errorf("webgpu: failed to get adapter info: %w", infoErr)
	}
	return []*wgpu.AdapterInfoGo{info}, nil
}
