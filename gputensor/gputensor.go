// Package gputensor provides the public API for GPU-resident tensor
// containers in the Tessera framework.
//
// The package re-exports the core types for building tensor-backed
// compute pipelines:
//   - Tensor: a logical N-dimensional view over a GPU resource
//   - Storage: the reference-counted resource a tensor is backed by
//   - Context / DeviceContext: resource allocation and deferred release
//   - PipelineBarrier: declarative synchronization between accesses
//
// Example:
//
//	ctx, err := gputensor.NewDeviceContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Release()
//
//	t, err := gputensor.New(ctx, []int64{1, 3, 8, 8}, gputensor.Float32, gputensor.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Release()
//
//	var pb gputensor.PipelineBarrier
//	img := t.ImageAccess(&pb, gputensor.StageCompute, gputensor.AccessWrite)
//	_ = img
package gputensor

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/backend/webgpu"
	"github.com/tessera-ml/tessera/internal/tensor"
)

// Tensor is a logical N-dimensional view over a GPU storage resource.
type Tensor = webgpu.Tensor

// Options selects construction-time choices for a tensor.
type Options = webgpu.Options

// Storage owns exactly one GPU allocation shared by aliasing tensors.
type Storage = webgpu.Storage

// UniformData is the packed metadata block passed to shaders.
type UniformData = webgpu.UniformData

// Attribute names one field of the packed tensor metadata block.
type Attribute = webgpu.Attribute

// Metadata attributes.
const (
	AttrSizes         = webgpu.AttrSizes
	AttrStrides       = webgpu.AttrStrides
	AttrLogicalLimits = webgpu.AttrLogicalLimits
	AttrNumel         = webgpu.AttrNumel
)

// Context is the interface tensors consume for resource allocation and
// deferred destruction.
type Context = webgpu.Context

// DeviceContext implements Context on a WebGPU device.
type DeviceContext = webgpu.DeviceContext

// ParamsBuffer is a small owned uniform buffer for shader parameters.
type ParamsBuffer = webgpu.ParamsBuffer

// BufferBindInfo describes how to bind a slice of a buffer to a shader.
type BufferBindInfo = webgpu.BufferBindInfo

// Image and Buffer wrap the underlying GPU resources.
type (
	Image  = webgpu.Image
	Buffer = webgpu.Buffer
)

// PipelineBarrier accumulates the barriers one dispatch requires.
type PipelineBarrier = webgpu.PipelineBarrier

// PipelineStage identifies where in the pipeline an access happens.
type PipelineStage = webgpu.PipelineStage

// Pipeline stages.
const (
	StageNone     = webgpu.StageNone
	StageCompute  = webgpu.StageCompute
	StageHost     = webgpu.StageHost
	StageTransfer = webgpu.StageTransfer
)

// MemoryAccess identifies how an access touches memory.
type MemoryAccess = webgpu.MemoryAccess

// Access kinds.
const (
	AccessNone  = webgpu.AccessNone
	AccessRead  = webgpu.AccessRead
	AccessWrite = webgpu.AccessWrite
)

// DataType represents runtime type information for tensor elements.
type DataType = tensor.DataType

// Supported element types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
)

// StorageType selects the kind of GPU resource backing a tensor.
type StorageType = tensor.StorageType

// Storage kinds.
const (
	StorageTexture3D = tensor.StorageTexture3D
	StorageBuffer    = tensor.StorageBuffer
)

// MemoryLayout names which logical dimension of a tensor is packed.
type MemoryLayout = tensor.MemoryLayout

// Named memory layouts.
const (
	WidthPacked    = tensor.WidthPacked
	HeightPacked   = tensor.HeightPacked
	ChannelsPacked = tensor.ChannelsPacked
)

// Extents is a 3-component texel-space extent (X, Y, Z).
type Extents = tensor.Extents

// AxisMapLayout selects the initial texture-axis assignment.
type AxisMapLayout = tensor.AxisMapLayout

// Axis map layouts.
const (
	AxisMapDefault  = tensor.AxisMapDefault
	AxisMapIdentity = tensor.AxisMapIdentity
)

// New creates a tensor of the given sizes and element type, allocating
// a fresh storage resource per opts.
func New(ctx Context, sizes []int64, dtype DataType, opts Options) (*Tensor, error) {
	return webgpu.New(ctx, sizes, dtype, opts)
}

// NewFromImage adopts an externally created image as tensor storage.
func NewFromImage(ctx Context, image *Image, layout MemoryLayout, axisMap AxisMapLayout) (*Tensor, error) {
	return webgpu.NewFromImage(ctx, image, layout, axisMap)
}

// NewExternalImage wraps a caller-owned texture so it can back a
// tensor via NewFromImage. The wrapper never destroys the texture.
func NewExternalImage(texture *wgpu.Texture, extents Extents, format wgpu.TextureFormat) *Image {
	return webgpu.NewExternalImage(texture, extents, format)
}

// NewView creates a tensor sharing other's buffer storage with
// identical metadata.
func NewView(other *Tensor) (*Tensor, error) {
	return webgpu.NewView(other)
}

// NewReinterpretedView creates a tensor sharing other's buffer storage
// under new sizes and dim order at an element offset.
func NewReinterpretedView(other *Tensor, sizes, dimOrder []int64, offsetNumel int64) (*Tensor, error) {
	return webgpu.NewReinterpretedView(other, sizes, dimOrder, offsetNumel)
}

// NewDeviceContext creates a context on the best available adapter.
//
// Returns an error if WebGPU is not available or initialization fails.
// Call Release when done to free GPU resources.
func NewDeviceContext() (*DeviceContext, error) {
	return webgpu.NewDeviceContext()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It attempts to initialize a WebGPU adapter to verify that a
// compatible GPU and drivers are present.
func IsAvailable() bool {
	return webgpu.IsAvailable()
}
