package webgpu

import (
	"encoding/binary"
	"fmt"
)

// Attribute names one field of the packed tensor metadata block.
type Attribute uint8

// Metadata attributes.
const (
	AttrSizes Attribute = iota
	AttrStrides
	AttrLogicalLimits
	AttrNumel
)

// ByteSize returns the packed size of the attribute: 16 bytes for the
// ivec4 fields (the 3-component limits field pads to 16 to satisfy the
// base alignment rule for vec3 uniform members), 4 bytes for numel.
func (a Attribute) ByteSize() uint32 {
	switch a {
	case AttrSizes, AttrStrides, AttrLogicalLimits:
		return 16
	case AttrNumel:
		return 4
	default:
		panic("unknown tensor attribute")
	}
}

// String returns a human-readable attribute name.
func (a Attribute) String() string {
	switch a {
	case AttrSizes:
		return "sizes"
	case AttrStrides:
		return "strides"
	case AttrLogicalLimits:
		return "logical_limits"
	case AttrNumel:
		return "numel"
	default:
		return "unknown"
	}
}

// UniformData is the fixed-size, GPU-layout-compatible metadata block
// for one tensor: sizes and strides as WHCN ivec4s, the texture-space
// logical limits, and the element count. A tensor keeps its block
// synchronized across virtual mutations and serializes single fields
// into uniform buffers on demand.
type UniformData struct {
	sizesV   [4]int32
	stridesV [4]int32
	// logicalLimits is an ivec3; the fourth component only pads the
	// field to 16-byte base alignment.
	logicalLimits [4]int32
	numel         int32
}

// update refreshes all fields from tensor metadata. sizes and strides
// are given outer-to-inner; dimensions beyond the rank are filled with
// 1 for sizes and with numel, an unreachable stride, for strides.
func (u *UniformData) update(sizes, strides []int64, limits [3]int32, numel int64) {
	u.sizesV = whcnIVec4(sizes, 1)
	u.stridesV = whcnIVec4(strides, numel)
	u.logicalLimits = [4]int32{limits[0], limits[1], limits[2], 0}
	if numel > int64(maxInt32) {
		panic(fmt.Sprintf("tensor numel %d overflows int32", numel))
	}
	u.numel = int32(numel)
}

// SizesV returns the sizes field in WHCN order.
func (u *UniformData) SizesV() [4]int32 {
	return u.sizesV
}

// StridesV returns the strides field in WHCN order.
func (u *UniformData) StridesV() [4]int32 {
	return u.stridesV
}

// LogicalLimits returns the texture-space upper bound shaders should
// treat as valid.
func (u *UniformData) LogicalLimits() [3]int32 {
	return [3]int32{u.logicalLimits[0], u.logicalLimits[1], u.logicalLimits[2]}
}

// Numel returns the element count according to the canonical sizes.
func (u *UniformData) Numel() int32 {
	return u.numel
}

// WriteAttribute copies the named attribute's packed bytes into dst at
// dstOffset. maxDstSize is the declared capacity of dst; the write
// fails rather than truncating when the attribute does not fit. Returns
// the number of bytes written, so callers can pack several attributes
// contiguously.
func (u *UniformData) WriteAttribute(dst []byte, dstOffset, maxDstSize uint32, attr Attribute) (uint32, error) {
	size := attr.ByteSize()
	if uint64(dstOffset)+uint64(size) > uint64(maxDstSize) || int(dstOffset)+int(size) > len(dst) {
		return 0, fmt.Errorf("%s needs %d bytes at offset %d in destination of %d: %w",
			attr, size, dstOffset, maxDstSize, ErrOutOfBounds)
	}

	copy(dst[dstOffset:], u.attributeBytes(attr))
	return size, nil
}

// attributeBytes returns the little-endian packing of one attribute.
func (u *UniformData) attributeBytes(attr Attribute) []byte {
	switch attr {
	case AttrSizes:
		return packIVec4(u.sizesV)
	case AttrStrides:
		return packIVec4(u.stridesV)
	case AttrLogicalLimits:
		return packIVec4(u.logicalLimits)
	case AttrNumel:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(u.numel))
		return out
	default:
		panic("unknown tensor attribute")
	}
}

const maxInt32 = 1<<31 - 1

// whcnIVec4 converts an outer-to-inner int64 sequence into a WHCN
// ivec4, filling dimensions beyond the rank with fill. For ranks above
// 4 the innermost four dimensions are taken.
func whcnIVec4(vals []int64, fill int64) [4]int32 {
	var out [4]int32
	for i := 0; i < 4; i++ {
		v := fill
		if i < len(vals) {
			v = vals[len(vals)-1-i]
		}
		out[i] = int32(v)
	}
	return out
}

// packIVec4 serializes four int32s little-endian.
func packIVec4(v [4]int32) []byte {
	out := make([]byte, 16)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(x))
	}
	return out
}
