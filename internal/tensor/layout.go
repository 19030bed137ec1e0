package tensor

// Dimension index conventions:
//
// Tensor sizes are listed outer-to-inner following the NCHW convention,
// i.e. for a 4D tensor index 0 is batch, 1 is channels, 2 is height and
// 3 is width. The packed dimension and axis map entries instead use the
// WHCN convention, i.e. 0 is width, 1 is height, 2 is channels and 3 is
// batch, because that is the index space compute shaders work in.

// StorageType selects the kind of GPU resource backing a tensor.
type StorageType int

// Supported storage kinds.
const (
	// StorageTexture3D stores the tensor as a 3D image texture, with
	// elements of the packed dimension grouped four at a time into texels.
	StorageTexture3D StorageType = iota
	// StorageBuffer stores the tensor as a linear buffer.
	StorageBuffer
)

// String returns a human-readable storage kind name.
func (st StorageType) String() string {
	switch st {
	case StorageTexture3D:
		return "texture3d"
	case StorageBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// MemoryLayout names which logical dimension of a tensor is packed.
// For texture storage the packed dimension is vectorized four-wide into
// texels; for buffer storage it is the dimension with stride 1.
type MemoryLayout int

// Named memory layouts.
const (
	WidthPacked MemoryLayout = iota
	HeightPacked
	ChannelsPacked
)

// PackedDim returns the WHCN index of the dimension packed by this layout.
func (ml MemoryLayout) PackedDim() int32 {
	return int32(ml)
}

// String returns a human-readable layout name.
func (ml MemoryLayout) String() string {
	switch ml {
	case WidthPacked:
		return "width_packed"
	case HeightPacked:
		return "height_packed"
	case ChannelsPacked:
		return "channels_packed"
	default:
		return "unknown"
	}
}

// LayoutForPackedDim returns the named layout whose packed dimension is
// packedDim. The named layouts are in bijection with packed dimensions
// 0 through 2, so the result is exact whenever ok is true.
func LayoutForPackedDim(packedDim int32) (ml MemoryLayout, ok bool) {
	if packedDim < 0 || packedDim > 2 {
		return 0, false
	}
	return MemoryLayout(packedDim), true
}

// AxisMapLayout selects the initial texture-axis assignment for a tensor.
type AxisMapLayout int

const (
	// AxisMapDefault assigns each of the first three texture axes to the
	// logical dimension with the same WHCN index and folds batches onto
	// the axis representing the channels dimension.
	AxisMapDefault AxisMapLayout = iota
	// AxisMapIdentity forces the standard identity assignment. Tensors
	// are constructed with the identity assignment under both layouts;
	// the distinction only matters to callers that must rule out a
	// permuted default in the future.
	AxisMapIdentity
)

// DefaultAxisMap returns the standard axis map {0, 1, 2, 2}: texture
// axis X represents the width dimension, Y the height dimension, Z the
// channels dimension, and batches are concatenated along the axis
// representing the channels dimension.
func DefaultAxisMap() []int64 {
	return []int64{0, 1, 2, 2}
}

// Extents is a 3-component texel-space extent (X, Y, Z).
type Extents [3]uint32

// NonZero reports whether all three components are positive.
func (e Extents) NonZero() bool {
	return e[0] > 0 && e[1] > 0 && e[2] > 0
}

// FitsIn reports whether e does not exceed other on any axis.
func (e Extents) FitsIn(other Extents) bool {
	return e[0] <= other[0] && e[1] <= other[1] && e[2] <= other[2]
}

// Numel returns the product of the given sizes. An empty size list
// describes a scalar, which has one element.
func Numel(sizes []int64) int64 {
	n := int64(1)
	for _, s := range sizes {
		n *= s
	}
	return n
}

// WHCNDim converts an outer-to-inner dimension index to its WHCN index
// for a tensor of the given rank.
func WHCNDim(nchwDim int, ndim int) int32 {
	return int32(ndim - 1 - nchwDim)
}

// NCHWDim converts a WHCN dimension index to its outer-to-inner position
// for a tensor of the given rank.
func NCHWDim(whcnDim int32, ndim int) int {
	return ndim - 1 - int(whcnDim)
}

// CalculateDimOrder returns the canonical dim order for a tensor of the
// given rank with the given packed dimension. The result is a
// permutation of [0, ndim) in outer-to-inner index space whose final
// element is the packed dimension, making it the dimension with stride 1.
// A packed dimension not present in the tensor (packedDim >= ndim) falls
// back to packing the innermost dimension.
func CalculateDimOrder(ndim int, packedDim int32) []int64 {
	last := NCHWDim(packedDim, ndim)
	if last < 0 {
		last = ndim - 1
	}

	dimOrder := make([]int64, ndim)
	cur := int64(0)
	for i := 0; i < ndim-1; i++ {
		if cur == int64(last) {
			cur++
		}
		dimOrder[i] = cur
		cur++
	}
	dimOrder[ndim-1] = int64(last)
	return dimOrder
}

// CalculateStrides returns contiguous strides consistent with dimOrder:
// the dimension listed last gets stride 1, and each preceding dimension's
// stride is the product of the sizes of all dimensions after it in the
// dim order.
func CalculateStrides(sizes, dimOrder []int64) []int64 {
	strides := make([]int64, len(sizes))
	stride := int64(1)
	for i := len(dimOrder) - 1; i >= 0; i-- {
		strides[dimOrder[i]] = stride
		stride *= sizes[dimOrder[i]]
	}
	return strides
}

// UnsqueezeStrides pads a stride sequence to a rank that is a multiple
// of 4 by inserting outer entries equal to numel. A stride of numel can
// never be reached by a valid index, so the padded dimensions act as
// sentinels in shaders.
func UnsqueezeStrides(strides []int64, numel int64) []int64 {
	ndim := len(strides)
	ndimUp4 := alignUp4(maxInt(ndim, 1))

	unsqueezed := make([]int64, ndimUp4)
	for i := 0; i < ndimUp4-ndim; i++ {
		unsqueezed[i] = numel
	}
	copy(unsqueezed[ndimUp4-ndim:], strides)
	return unsqueezed
}

// CalculatePaddedSizes pads the rank of sizes to a multiple of 4 by
// prepending size-1 dimensions, then rounds the packed dimension's
// extent up to the next multiple of 4. Texture storage requires both
// paddings: metadata is passed to shaders as ivec4s, and texels bundle
// 4 elements of the packed dimension.
func CalculatePaddedSizes(sizes []int64, packedDim int32) []int64 {
	ndim := maxInt(len(sizes), 1)
	ndimUp4 := alignUp4(ndim)

	padded := make([]int64, ndimUp4)
	for i := range padded {
		padded[i] = 1
	}
	copy(padded[ndimUp4-len(sizes):], sizes)

	packedIdx := NCHWDim(packedDim, ndimUp4)
	padded[packedIdx] = alignUp4(padded[packedIdx])
	return padded
}

// CalculateImageExtents produces the texel-space extents required to
// store a tensor with the given padded sizes under the given axis map.
// Each texture axis takes the padded size of the logical dimension the
// axis map assigns to it; batches are folded onto the axis representing
// the concatenation dimension; and the axis representing the packed
// dimension is divided by 4, since each texel holds 4 elements.
// Requires padded sizes of rank exactly 4.
func CalculateImageExtents(paddedSizes, axisMap []int64, packedDim int32) Extents {
	if len(paddedSizes) != 4 {
		panic("image extents require padded sizes of rank 4")
	}
	if len(axisMap) != 4 {
		panic("axis map must have 4 entries")
	}

	var extents Extents
	for axis := 0; axis < 3; axis++ {
		dim := axisMap[axis]
		extents[axis] = uint32(paddedSizes[NCHWDim(int32(dim), 4)])
	}

	if concatAxis := TextureAxisOf(axisMap, axisMap[3]); concatAxis >= 0 {
		extents[concatAxis] *= uint32(paddedSizes[0])
	}

	if packedAxis := TextureAxisOf(axisMap, int64(packedDim)); packedAxis >= 0 {
		extents[packedAxis] = (extents[packedAxis] + 3) / 4
	}
	return extents
}

// TextureAxisOf returns the texture axis (0, 1 or 2) that currently
// represents the given logical dimension under axisMap, or -1 if no
// axis represents it.
func TextureAxisOf(axisMap []int64, dim int64) int {
	for axis := 0; axis < 3; axis++ {
		if axisMap[axis] == dim {
			return axis
		}
	}
	return -1
}

// alignUp4 rounds n up to the next multiple of 4.
func alignUp4[T int | int64](n T) T {
	return (n + 3) &^ 3
}

// maxInt returns the maximum of two integers.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
