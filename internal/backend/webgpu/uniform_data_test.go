package webgpu

import (
	"encoding/binary"
	"errors"
	"testing"
)

func testUniformData() *UniformData {
	u := &UniformData{}
	u.update([]int64{1, 3, 8, 8}, []int64{192, 64, 8, 1}, [3]int32{2, 8, 3}, 192)
	return u
}

func TestUniformDataUpdate(t *testing.T) {
	u := testUniformData()

	if got, want := u.SizesV(), [4]int32{8, 8, 3, 1}; got != want {
		t.Errorf("SizesV = %v, want %v", got, want)
	}
	if got, want := u.StridesV(), [4]int32{1, 8, 64, 192}; got != want {
		t.Errorf("StridesV = %v, want %v", got, want)
	}
	if got, want := u.LogicalLimits(), [3]int32{2, 8, 3}; got != want {
		t.Errorf("LogicalLimits = %v, want %v", got, want)
	}
	if got := u.Numel(); got != 192 {
		t.Errorf("Numel = %d, want 192", got)
	}
}

func TestUniformDataUpdateLowRank(t *testing.T) {
	u := &UniformData{}
	u.update([]int64{5, 7}, []int64{7, 1}, [3]int32{}, 35)

	// Beyond-rank dimensions read as size 1 and stride numel.
	if got, want := u.SizesV(), [4]int32{7, 5, 1, 1}; got != want {
		t.Errorf("SizesV = %v, want %v", got, want)
	}
	if got, want := u.StridesV(), [4]int32{1, 7, 35, 35}; got != want {
		t.Errorf("StridesV = %v, want %v", got, want)
	}
}

func TestWriteAttributeExactFit(t *testing.T) {
	u := testUniformData()
	dst := make([]byte, 16)

	n, err := u.WriteAttribute(dst, 0, 16, AttrSizes)
	if err != nil {
		t.Fatalf("WriteAttribute: %v", err)
	}
	if n != 16 {
		t.Errorf("wrote %d bytes, want 16", n)
	}
	for i, want := range []int32{8, 8, 3, 1} {
		if got := int32(binary.LittleEndian.Uint32(dst[i*4:])); got != want {
			t.Errorf("component %d = %d, want %d", i, got, want)
		}
	}
}

func TestWriteAttributeOneByteShort(t *testing.T) {
	u := testUniformData()
	dst := make([]byte, 16)

	if _, err := u.WriteAttribute(dst, 1, 16, AttrSizes); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := u.WriteAttribute(dst, 0, 15, AttrSizes); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for short declared capacity, got %v", err)
	}
}

func TestWriteAttributeContiguousPacking(t *testing.T) {
	u := testUniformData()
	dst := make([]byte, 52)

	var offset uint32
	for _, attr := range []Attribute{AttrSizes, AttrStrides, AttrLogicalLimits, AttrNumel} {
		n, err := u.WriteAttribute(dst, offset, uint32(len(dst)), attr)
		if err != nil {
			t.Fatalf("WriteAttribute(%v): %v", attr, err)
		}
		offset += n
	}
	if offset != 52 {
		t.Errorf("packed %d bytes, want 52", offset)
	}

	if got := int32(binary.LittleEndian.Uint32(dst[48:])); got != 192 {
		t.Errorf("numel at tail = %d, want 192", got)
	}
	if got := int32(binary.LittleEndian.Uint32(dst[32:])); got != 2 {
		t.Errorf("limits.x = %d, want 2", got)
	}
}

func TestAttributeByteSize(t *testing.T) {
	if got := AttrNumel.ByteSize(); got != 4 {
		t.Errorf("numel byte size = %d, want 4", got)
	}
	for _, attr := range []Attribute{AttrSizes, AttrStrides, AttrLogicalLimits} {
		if got := attr.ByteSize(); got != 16 {
			t.Errorf("%v byte size = %d, want 16", attr, got)
		}
	}
}
