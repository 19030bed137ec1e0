package webgpu

import (
	"fmt"

	"github.com/tessera-ml/tessera/internal/tensor"
)

// maxMetadataFieldCount is the number of distinct metadata fields the
// uniform buffer can hold, and so determines its allocated size.
const maxMetadataFieldCount = 4

// uniformOffset tracks a lazily assigned byte offset within the
// metadata uniform buffer. The explicit flag marks assignment; no
// offset value is reserved as a sentinel.
type uniformOffset struct {
	value    uint32
	assigned bool
}

// Options selects construction-time choices for a tensor. The zero
// value requests an eagerly allocated, width-packed 3D texture with the
// default axis map.
type Options struct {
	// Storage selects texture or buffer backing.
	Storage tensor.StorageType
	// Layout selects which dimension is packed.
	Layout tensor.MemoryLayout
	// AxisMap selects the initial texture-axis assignment.
	AxisMap tensor.AxisMapLayout
	// DeferAllocation skips physical binding; the caller must invoke
	// BindAllocation before the tensor is used in a dispatch.
	DeferAllocation bool
}

// Tensor is a logical N-dimensional view over a GPU storage resource.
//
// Only the core metadata (dtype, sizes, packed dim) and the layout
// metadata (dim order, axis map) are authoritative; strides, padded
// sizes and the uniform metadata block are derived from them and kept
// synchronized by updateMetadata across virtual mutations. The storage
// resource is shared between aliasing tensors and is never touched by
// virtual operations.
type Tensor struct {
	ctx Context

	// Core metadata.
	dtype     tensor.DataType
	sizes     []int64
	packedDim int32

	// Layout metadata. The dim order is the source of truth for
	// strides; the axis map lets texture tensors be permuted without
	// moving texture data.
	dimOrder []int64
	axisMap  []int64

	// Derived metadata.
	strides           []int64
	paddedSizes       []int64
	unsqueezedStrides []int64
	numel             int64
	paddedNumel       int64

	// Element offset of this view into shared buffer storage.
	offsetNumel int64

	storage *Storage

	uniformData *UniformData

	// Metadata uniform buffer, materialized on the first UBO request.
	// Each field is assigned a fixed byte offset on first use and is
	// rewritten in place by updateMetadata afterwards.
	uniforms      *ParamsBuffer
	uniformsSize  uint32
	sizesOffset   uniformOffset
	stridesOffset uniformOffset
	limitsOffset  uniformOffset
	numelOffset   uniformOffset

	released bool
}

// New creates a tensor of the given sizes and element type, allocating
// a fresh storage resource per opts.
func New(ctx Context, sizes []int64, dtype tensor.DataType, opts Options) (*Tensor, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("tensor requires rank >= 1: %w", ErrInvalidRank)
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("size %d at dim %d: %w", s, i, ErrInvalidRank)
		}
	}
	if opts.Storage == tensor.StorageTexture3D && len(sizes) > 4 {
		return nil, fmt.Errorf("texture storage supports rank <= 4, got %d: %w", len(sizes), ErrInvalidRank)
	}

	packedDim := opts.Layout.PackedDim()
	t := &Tensor{
		ctx:       ctx,
		dtype:     dtype,
		sizes:     cloneInt64(sizes),
		packedDim: packedDim,
		dimOrder:  tensor.CalculateDimOrder(len(sizes), packedDim),
		// The identity assignment is the construction-time map under
		// both axis-map layouts.
		axisMap:     tensor.DefaultAxisMap(),
		uniformData: &UniformData{},
	}
	t.paddedSizes = tensor.CalculatePaddedSizes(t.sizes, t.packedDim)

	storage, err := newStorage(ctx, opts.Storage, t.axisMap, t.packedDim, t.paddedSizes, dtype, !opts.DeferAllocation)
	if err != nil {
		return nil, err
	}
	t.storage = storage

	if err := t.updateMetadata(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewFromImage adopts an externally created image as tensor storage,
// inferring sizes and element type from its extents and format. The
// wrapped texture remains owned by the caller.
func NewFromImage(ctx Context, image *Image, layout tensor.MemoryLayout, _ tensor.AxisMapLayout) (*Tensor, error) {
	dtype, err := dtypeForFormat(image.Format())
	if err != nil {
		return nil, err
	}

	packedDim := layout.PackedDim()
	ext := image.Extents()
	// A 3D texture of extents (X, Y, Z) holds a rank-3 tensor of sizes
	// (Z, Y, X) with the packed dimension expanded by the texel width.
	sizes := []int64{int64(ext[2]), int64(ext[1]), int64(ext[0])}
	sizes[tensor.NCHWDim(packedDim, 3)] *= 4

	t := &Tensor{
		ctx:         ctx,
		dtype:       dtype,
		sizes:       sizes,
		packedDim:   packedDim,
		dimOrder:    tensor.CalculateDimOrder(len(sizes), packedDim),
		axisMap:     tensor.DefaultAxisMap(),
		uniformData: &UniformData{},
	}
	t.paddedSizes = tensor.CalculatePaddedSizes(t.sizes, t.packedDim)

	storage, err := newStorageFromImage(ctx, image)
	if err != nil {
		return nil, err
	}
	t.storage = storage

	if err := t.updateMetadata(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewView creates a tensor that shares other's storage with identical
// metadata. Only buffer-backed tensors can be aliased.
func NewView(other *Tensor) (*Tensor, error) {
	if !other.HasBufferStorage() {
		return nil, fmt.Errorf("aliasing requires buffer storage: %w", ErrStorageType)
	}

	t := &Tensor{
		ctx:         other.ctx,
		dtype:       other.dtype,
		sizes:       cloneInt64(other.sizes),
		packedDim:   other.packedDim,
		dimOrder:    cloneInt64(other.dimOrder),
		axisMap:     cloneInt64(other.axisMap),
		offsetNumel: other.offsetNumel,
		storage:     other.storage,
		uniformData: &UniformData{},
	}
	other.storage.retain()
	t.paddedSizes = tensor.CalculatePaddedSizes(t.sizes, t.packedDim)

	if err := t.updateMetadata(); err != nil {
		other.storage.release()
		return nil, err
	}
	return t, nil
}

// NewReinterpretedView creates a tensor that shares other's buffer
// storage under new sizes and dim order, beginning offsetNumel elements
// into the buffer. The dim order is the source of truth: strides are
// recomputed from the new sizes and dim order rather than supplied.
func NewReinterpretedView(other *Tensor, sizes, dimOrder []int64, offsetNumel int64) (*Tensor, error) {
	if !other.HasBufferStorage() {
		return nil, fmt.Errorf("aliasing requires buffer storage: %w", ErrStorageType)
	}
	if len(sizes) == 0 || len(dimOrder) != len(sizes) {
		return nil, fmt.Errorf("dim order of length %d for %d sizes: %w", len(dimOrder), len(sizes), ErrInvalidRank)
	}
	if !isPermutation(dimOrder) {
		return nil, fmt.Errorf("dim order %v is not a permutation: %w", dimOrder, ErrInvalidRank)
	}
	if offsetNumel < 0 || tensor.Numel(sizes)+offsetNumel > other.storage.bufferLength {
		return nil, fmt.Errorf("sizes %v at offset %d exceed storage of %d elements: %w",
			sizes, offsetNumel, other.storage.bufferLength, ErrStorageCapacity)
	}

	packedDim := tensor.WHCNDim(int(dimOrder[len(dimOrder)-1]), len(sizes))
	t := &Tensor{
		ctx:         other.ctx,
		dtype:       other.dtype,
		sizes:       cloneInt64(sizes),
		packedDim:   packedDim,
		dimOrder:    cloneInt64(dimOrder),
		axisMap:     tensor.DefaultAxisMap(),
		offsetNumel: offsetNumel,
		storage:     other.storage,
		uniformData: &UniformData{},
	}
	other.storage.retain()
	t.paddedSizes = tensor.CalculatePaddedSizes(t.sizes, t.packedDim)

	if err := t.updateMetadata(); err != nil {
		other.storage.release()
		return nil, err
	}
	return t, nil
}

// Release drops this tensor's reference to its storage and registers
// its uniform buffer for deferred destruction. The storage itself is
// flushed when its last referencing tensor is released.
func (t *Tensor) Release() {
	if t.released {
		return
	}
	t.released = true

	if t.uniforms != nil {
		t.uniforms.Destroy()
		t.uniforms = nil
	}
	if t.storage != nil {
		t.storage.release()
	}
}

/*
	Resource access
*/

// Image returns the backing image without hazard tracking. Panics for
// buffer-backed tensors.
func (t *Tensor) Image() *Image {
	if t.storage.storageType != tensor.StorageTexture3D {
		panic("webgpu: image of buffer-backed tensor")
	}
	return t.storage.image
}

// ImageAccess returns the backing image after recording the caller's
// access intent, appending barriers to pb as required.
func (t *Tensor) ImageAccess(pb *PipelineBarrier, stage PipelineStage, access MemoryAccess) *Image {
	im := t.Image()
	t.storage.transition(pb, stage, access)
	return im
}

// Buffer returns the backing buffer without hazard tracking. Panics for
// texture-backed tensors.
func (t *Tensor) Buffer() *Buffer {
	if t.storage.storageType != tensor.StorageBuffer {
		panic("webgpu: buffer of texture-backed tensor")
	}
	return t.storage.buffer
}

// BufferAccess returns the backing buffer after recording the caller's
// access intent, appending barriers to pb as required.
func (t *Tensor) BufferAccess(pb *PipelineBarrier, stage PipelineStage, access MemoryAccess) *Buffer {
	b := t.Buffer()
	t.storage.transition(pb, stage, access)
	return b
}

// BindAllocation materializes storage whose physical binding was
// deferred at construction.
func (t *Tensor) BindAllocation() error {
	switch t.storage.storageType {
	case tensor.StorageTexture3D:
		return t.ctx.BindImage(t.storage.image)
	case tensor.StorageBuffer:
		return t.ctx.BindBuffer(t.storage.buffer)
	default:
		return fmt.Errorf("unknown storage type: %w", ErrInvalidResource)
	}
}

/*
	Metadata
*/

// DType returns the element type.
func (t *Tensor) DType() tensor.DataType {
	return t.dtype
}

// StorageType returns the kind of resource backing this tensor.
func (t *Tensor) StorageType() tensor.StorageType {
	return t.storage.storageType
}

// HasBufferStorage reports whether the tensor is buffer backed.
func (t *Tensor) HasBufferStorage() bool {
	return t.storage.storageType == tensor.StorageBuffer
}

// Sizes returns the tensor's sizes in outer-to-inner order. The caller
// must not modify the returned slice.
func (t *Tensor) Sizes() []int64 {
	return t.sizes
}

// Size returns the extent of one dimension.
func (t *Tensor) Size(dim int) int64 {
	return t.sizes[dim]
}

// Dim returns the tensor's rank.
func (t *Tensor) Dim() int {
	return len(t.sizes)
}

// DimOrder returns the dim order. The caller must not modify the
// returned slice.
func (t *Tensor) DimOrder() []int64 {
	return t.dimOrder
}

// AxisMap returns the axis map. The caller must not modify the
// returned slice.
func (t *Tensor) AxisMap() []int64 {
	return t.axisMap
}

// Strides returns the strides in outer-to-inner order.
func (t *Tensor) Strides() []int64 {
	return t.strides
}

// UnsqueezedStrides returns the strides padded to a rank that is a
// multiple of 4.
func (t *Tensor) UnsqueezedStrides() []int64 {
	return t.unsqueezedStrides
}

// PackedDim returns the WHCN index of the packed dimension.
func (t *Tensor) PackedDim() int32 {
	return t.packedDim
}

// ConcatDim returns the WHCN index of the dimension along which batches
// are concatenated in texture storage.
func (t *Tensor) ConcatDim() int32 {
	return int32(t.axisMap[3])
}

// Numel returns the number of elements according to the canonical
// sizes.
func (t *Tensor) Numel() int64 {
	return t.numel
}

// NBytes returns the byte size of the tensor's elements.
func (t *Tensor) NBytes() int64 {
	return t.numel * int64(t.dtype.Size())
}

// PaddedNumel returns the number of elements according to the padded
// sizes.
func (t *Tensor) PaddedNumel() int64 {
	return t.paddedNumel
}

// StagingBufferNumel returns the element count a staging buffer needs
// to cover the tensor's storage: the padded count for texture storage,
// where texel padding is physically present, and the exact count for
// buffer storage.
func (t *Tensor) StagingBufferNumel() int64 {
	if t.storage.storageType == tensor.StorageTexture3D {
		return t.paddedNumel
	}
	return t.numel
}

// StagingBufferNBytes returns StagingBufferNumel in bytes.
func (t *Tensor) StagingBufferNBytes() int64 {
	return t.StagingBufferNumel() * int64(t.dtype.Size())
}

// OffsetNumel returns the element offset of this view into its buffer
// storage.
func (t *Tensor) OffsetNumel() int64 {
	return t.offsetNumel
}

// LogicalLimits returns the texture-space upper bound shaders should
// treat as valid. It may be smaller than the allocated image extents
// after a virtual resize.
func (t *Tensor) LogicalLimits() [3]int32 {
	return t.uniformData.LogicalLimits()
}

// UniformData returns the tensor's shared packed metadata block.
func (t *Tensor) UniformData() *UniformData {
	return t.uniformData
}

// HashedLayout packs the four axis map entries and the packed dimension
// into one int32, 4 bits per field, for use as a shader specialization
// constant: axis map entries occupy bits 0-15 and the packed dimension
// bits 16-19.
func (t *Tensor) HashedLayout() int32 {
	return int32(t.axisMap[0]) + int32(t.axisMap[1])<<4 + int32(t.axisMap[2])<<8 +
		int32(t.axisMap[3])<<12 + t.packedDim<<16
}

// HasStandardAxisMap reports whether the first three texture axes
// represent the width, height and channels dimensions in that order.
func (t *Tensor) HasStandardAxisMap() bool {
	return t.axisMap[0] == 0 && t.axisMap[1] == 1 && t.axisMap[2] == 2
}

// EstimateMemoryLayout returns the named layout that best matches this
// tensor's current metadata. Virtual mutations can produce axis-map
// states with no exact named equivalent; the returned layout is the one
// producing the same packed dimension, which is exact because named
// layouts are in bijection with packed dimensions.
func (t *Tensor) EstimateMemoryLayout() tensor.MemoryLayout {
	ml, ok := tensor.LayoutForPackedDim(t.packedDim)
	if !ok {
		panic(fmt.Sprintf("webgpu: no memory layout for packed dim %d", t.packedDim))
	}
	return ml
}

// IsViewOf reports whether both tensors share one storage resource.
func (t *Tensor) IsViewOf(other *Tensor) bool {
	return t.storage == other.storage
}

/*
	Uniform buffer accessors
*/

// SizesUBO returns a binding descriptor for the tensor's sizes in WHCN
// order. Dimensions beyond the rank read as 1.
func (t *Tensor) SizesUBO() (BufferBindInfo, error) {
	return t.metadataUBO(&t.sizesOffset, AttrSizes)
}

// StridesUBO returns a binding descriptor for the tensor's strides in
// WHCN order. Dimensions beyond the rank read as numel, a stride no
// valid index can reach.
func (t *Tensor) StridesUBO() (BufferBindInfo, error) {
	return t.metadataUBO(&t.stridesOffset, AttrStrides)
}

// LogicalLimitsUBO returns a binding descriptor for the tensor's
// logical limits.
func (t *Tensor) LogicalLimitsUBO() (BufferBindInfo, error) {
	return t.metadataUBO(&t.limitsOffset, AttrLogicalLimits)
}

// NumelUBO returns a binding descriptor for the tensor's element count.
func (t *Tensor) NumelUBO() (BufferBindInfo, error) {
	return t.metadataUBO(&t.numelOffset, AttrNumel)
}

// metadataUBO materializes the uniform buffer on first use, assigns the
// field a fixed offset on its first request, and returns its binding
// descriptor. Later calls reuse the assigned offset; updateMetadata
// rewrites the value in place.
func (t *Tensor) metadataUBO(offset *uniformOffset, attr Attribute) (BufferBindInfo, error) {
	if t.uniforms == nil {
		fieldStride := uint64(t.ctx.MinUniformAlignment())
		p, err := NewParamsBuffer(t.ctx, fieldStride*maxMetadataFieldCount)
		if err != nil {
			return BufferBindInfo{}, err
		}
		t.uniforms = p
	}

	if !offset.assigned {
		fieldStride := t.ctx.MinUniformAlignment()
		if t.uniformsSize+fieldStride > fieldStride*maxMetadataFieldCount {
			return BufferBindInfo{}, fmt.Errorf("no uniform slot left for %s: %w", attr, ErrOutOfBounds)
		}
		offset.value = t.uniformsSize
		offset.assigned = true
		t.uniformsSize += fieldStride

		if err := t.uniforms.Update(t.uniformData.attributeBytes(attr), offset.value); err != nil {
			return BufferBindInfo{}, err
		}
	}

	return t.uniforms.BindInfo(offset.value, attr.ByteSize()), nil
}

/*
	Virtual mutation
*/

// VirtualResize replaces the tensor's sizes without changing its rank
// or touching its storage. The new sizes must fit the capacity the
// storage was allocated with; over-allocating at construction is what
// makes later growth legal.
func (t *Tensor) VirtualResize(newSizes []int64) error {
	if len(newSizes) != len(t.sizes) {
		return fmt.Errorf("resize from rank %d to %d: %w", len(t.sizes), len(newSizes), ErrInvalidRank)
	}
	if err := t.checkSizes(newSizes); err != nil {
		return err
	}

	t.sizes = cloneInt64(newSizes)
	return t.updateMetadata()
}

// VirtualTranspose swaps two dimensions in place by relabeling
// metadata; no data moves. Applying the same transpose twice restores
// the original metadata. Texture-backed tensors support swaps among
// the width, height and channels dims only.
func (t *Tensor) VirtualTranspose(dim0, dim1 int) error {
	ndim := len(t.sizes)
	if dim0 < 0 || dim0 >= ndim || dim1 < 0 || dim1 >= ndim {
		return fmt.Errorf("transpose dims (%d, %d) for rank %d: %w", dim0, dim1, ndim, ErrInvalidRank)
	}

	whcn0 := int64(tensor.WHCNDim(dim0, ndim))
	whcn1 := int64(tensor.WHCNDim(dim1, ndim))

	// Texture storage folds batches into the concat axis, so a swap
	// involving the batch dim cannot be expressed by relabeling the
	// axis map. Only the width, height and channels dims may trade
	// places.
	if t.storage.storageType == tensor.StorageTexture3D && (whcn0 >= 3 || whcn1 >= 3) {
		return fmt.Errorf("transpose of the batch dim on texture storage: %w", ErrStorageType)
	}

	t.sizes[dim0], t.sizes[dim1] = t.sizes[dim1], t.sizes[dim0]
	if t.packedDim == int32(whcn0) {
		t.packedDim = int32(whcn1)
	} else if t.packedDim == int32(whcn1) {
		t.packedDim = int32(whcn0)
	}

	if t.storage.storageType == tensor.StorageBuffer {
		for i, d := range t.dimOrder {
			if d == int64(dim0) {
				t.dimOrder[i] = int64(dim1)
			} else if d == int64(dim1) {
				t.dimOrder[i] = int64(dim0)
			}
		}
	} else {
		// Texture data stays put; the axes tracking the swapped dims
		// trade labels instead.
		for i, d := range t.axisMap {
			if d == whcn0 {
				t.axisMap[i] = whcn1
			} else if d == whcn1 {
				t.axisMap[i] = whcn0
			}
		}
	}

	return t.updateMetadata()
}

// VirtualReconfigure replaces both sizes and dim order, possibly
// changing rank. Only buffer-backed tensors support it; texture
// storage cannot change dimensionality without moving data.
func (t *Tensor) VirtualReconfigure(newSizes, newDimOrder []int64) error {
	if !t.HasBufferStorage() {
		return fmt.Errorf("reconfigure of texture-backed tensor: %w", ErrStorageType)
	}
	if len(newSizes) == 0 || len(newDimOrder) != len(newSizes) {
		return fmt.Errorf("dim order of length %d for %d sizes: %w", len(newDimOrder), len(newSizes), ErrInvalidRank)
	}
	if !isPermutation(newDimOrder) {
		return fmt.Errorf("dim order %v is not a permutation: %w", newDimOrder, ErrInvalidRank)
	}
	if err := t.checkSizes(newSizes); err != nil {
		return err
	}

	t.sizes = cloneInt64(newSizes)
	t.dimOrder = cloneInt64(newDimOrder)
	// Keep the buffer invariant: the packed dim is the stride-1 dim.
	t.packedDim = tensor.WHCNDim(int(newDimOrder[len(newDimOrder)-1]), len(newSizes))
	return t.updateMetadata()
}

// VirtualClone copies all of other's metadata onto this tensor without
// touching either storage reference. The element offset is metadata
// too: capacity checks after the clone account for other's offset
// against this tensor's own storage.
func (t *Tensor) VirtualClone(other *Tensor) error {
	t.dtype = other.dtype
	t.sizes = cloneInt64(other.sizes)
	t.packedDim = other.packedDim
	t.dimOrder = cloneInt64(other.dimOrder)
	t.axisMap = cloneInt64(other.axisMap)
	t.offsetNumel = other.offsetNumel
	return t.updateMetadata()
}

// updateMetadata recomputes all derived metadata after a mutation of
// sizes, dim order or axis map, and rewrites any already materialized
// uniform fields in place.
func (t *Tensor) updateMetadata() error {
	t.strides = tensor.CalculateStrides(t.sizes, t.dimOrder)
	t.numel = tensor.Numel(t.sizes)
	t.paddedSizes = tensor.CalculatePaddedSizes(t.sizes, t.packedDim)
	t.unsqueezedStrides = tensor.UnsqueezeStrides(t.strides, t.numel)
	t.paddedNumel = tensor.Numel(t.paddedSizes)

	var limits [3]int32
	if t.storage.storageType == tensor.StorageTexture3D {
		ext := tensor.CalculateImageExtents(t.paddedSizes, t.axisMap, t.packedDim)
		// Permute extents so limits[0] bounds the axis representing the
		// width dim, limits[1] the height dim, limits[2] the channels dim.
		for d := int64(0); d < 3; d++ {
			if axis := tensor.TextureAxisOf(t.axisMap, d); axis >= 0 {
				limits[d] = int32(ext[axis])
			}
		}
	}
	t.uniformData.update(t.sizes, t.strides, limits, t.numel)

	if t.uniforms == nil {
		return nil
	}
	fields := []struct {
		offset uniformOffset
		attr   Attribute
	}{
		{t.sizesOffset, AttrSizes},
		{t.stridesOffset, AttrStrides},
		{t.limitsOffset, AttrLogicalLimits},
		{t.numelOffset, AttrNumel},
	}
	for _, f := range fields {
		if !f.offset.assigned {
			continue
		}
		if err := t.uniforms.Update(t.uniformData.attributeBytes(f.attr), f.offset.value); err != nil {
			return err
		}
	}
	return nil
}

// checkSizes validates that sizes fit the physical capacity of the
// existing storage resource.
func (t *Tensor) checkSizes(sizes []int64) error {
	for i, s := range sizes {
		if s <= 0 {
			return fmt.Errorf("size %d at dim %d: %w", s, i, ErrInvalidRank)
		}
	}

	if t.storage.storageType == tensor.StorageBuffer {
		if need := tensor.Numel(sizes) + t.offsetNumel; need > t.storage.bufferLength {
			return fmt.Errorf("sizes %v need %d elements but storage holds %d: %w",
				sizes, need, t.storage.bufferLength, ErrStorageCapacity)
		}
		return nil
	}

	padded := tensor.CalculatePaddedSizes(sizes, t.packedDim)
	ext := tensor.CalculateImageExtents(padded, t.axisMap, t.packedDim)
	if !ext.FitsIn(t.storage.imageExtents) {
		return fmt.Errorf("sizes %v need extents %v but storage has %v: %w",
			sizes, ext, t.storage.imageExtents, ErrStorageCapacity)
	}
	return nil
}

func cloneInt64(vals []int64) []int64 {
	out := make([]int64, len(vals))
	copy(out, vals)
	return out
}

// isPermutation reports whether vals contains each index in [0, len)
// exactly once.
func isPermutation(vals []int64) bool {
	seen := make([]bool, len(vals))
	for _, v := range vals {
		if v < 0 || v >= int64(len(vals)) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
