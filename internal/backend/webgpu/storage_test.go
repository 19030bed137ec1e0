package webgpu

import (
	"errors"
	"testing"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/tensor"
)

func newTestStorage(t *testing.T, ctx Context, storageType tensor.StorageType) *Storage {
	t.Helper()
	s, err := newStorage(ctx, storageType, tensor.DefaultAxisMap(), 0, []int64{1, 1, 4, 8}, tensor.Float32, true)
	if err != nil {
		t.Fatalf("newStorage: %v", err)
	}
	return s
}

func TestTransitionFirstAccessEmitsNoBarrier(t *testing.T) {
	ctx := newFakeContext()
	s := newTestStorage(t, ctx, tensor.StorageBuffer)

	var pb PipelineBarrier
	s.transition(&pb, StageCompute, AccessRead)

	if !pb.Empty() {
		t.Errorf("expected no barrier on first access, got %d buffer barriers", len(pb.BufferBarriers))
	}
	if got := s.LastAccess(); got.Stage != StageCompute || got.Access != AccessRead {
		t.Errorf("last access not recorded: %+v", got)
	}
}

func TestTransitionReadAfterRead(t *testing.T) {
	ctx := newFakeContext()
	s := newTestStorage(t, ctx, tensor.StorageBuffer)

	var pb PipelineBarrier
	s.transition(&pb, StageCompute, AccessRead)
	s.transition(&pb, StageTransfer, AccessRead)

	if !pb.Empty() {
		t.Error("read after read must not emit a barrier")
	}
	// The later read still becomes the recorded access.
	if got := s.LastAccess(); got.Stage != StageTransfer {
		t.Errorf("last access stage = %v, want %v", got.Stage, StageTransfer)
	}
}

func TestTransitionWriteHazards(t *testing.T) {
	tests := []struct {
		name        string
		firstAccess MemoryAccess
		thenAccess  MemoryAccess
	}{
		{"write after read", AccessRead, AccessWrite},
		{"read after write", AccessWrite, AccessRead},
		{"write after write", AccessWrite, AccessWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newFakeContext()
			s := newTestStorage(t, ctx, tensor.StorageBuffer)

			var pb PipelineBarrier
			s.transition(&pb, StageHost, tt.firstAccess)
			s.transition(&pb, StageCompute, tt.thenAccess)

			if len(pb.BufferBarriers) != 1 {
				t.Fatalf("expected 1 buffer barrier, got %d", len(pb.BufferBarriers))
			}
			b := pb.BufferBarriers[0]
			if b.SrcStage != StageHost || b.SrcAccess != tt.firstAccess {
				t.Errorf("source side = (%v, %v), want (%v, %v)", b.SrcStage, b.SrcAccess, StageHost, tt.firstAccess)
			}
			if b.DstStage != StageCompute || b.DstAccess != tt.thenAccess {
				t.Errorf("destination side = (%v, %v), want (%v, %v)", b.DstStage, b.DstAccess, StageCompute, tt.thenAccess)
			}
			if b.Buffer != s.buffer {
				t.Error("barrier does not reference the storage buffer")
			}
		})
	}
}

func TestTransitionImageBarrier(t *testing.T) {
	ctx := newFakeContext()
	s := newTestStorage(t, ctx, tensor.StorageTexture3D)

	var pb PipelineBarrier
	s.transition(&pb, StageTransfer, AccessWrite)
	s.transition(&pb, StageCompute, AccessRead)

	if len(pb.ImageBarriers) != 1 {
		t.Fatalf("expected 1 image barrier, got %d", len(pb.ImageBarriers))
	}
	if pb.ImageBarriers[0].Image != s.image {
		t.Error("barrier does not reference the storage image")
	}
	if len(pb.BufferBarriers) != 0 {
		t.Error("image storage must not emit buffer barriers")
	}
}

func TestBarrierReset(t *testing.T) {
	ctx := newFakeContext()
	s := newTestStorage(t, ctx, tensor.StorageBuffer)

	var pb PipelineBarrier
	s.transition(&pb, StageCompute, AccessWrite)
	s.transition(&pb, StageCompute, AccessWrite)
	if pb.Empty() {
		t.Fatal("expected a barrier before reset")
	}

	pb.Reset()
	if !pb.Empty() {
		t.Error("reset barrier is not empty")
	}
}

func TestStorageReleaseFlushesOnce(t *testing.T) {
	ctx := newFakeContext()
	s := newTestStorage(t, ctx, tensor.StorageBuffer)

	s.retain()
	s.release()
	if len(ctx.deferred) != 0 {
		t.Fatal("storage flushed while references remain")
	}

	s.release()
	if len(ctx.deferred) != 1 {
		t.Fatalf("expected 1 deferred release, got %d", len(ctx.deferred))
	}
}

func TestExternalImageNotReleased(t *testing.T) {
	ctx := newFakeContext()
	im, err := ctx.NewImage(tensor.Extents{2, 4, 1}, wgpu.TextureFormatRGBA32Float, true)
	if err != nil {
		t.Fatal(err)
	}

	s, err := newStorageFromImage(ctx, im)
	if err != nil {
		t.Fatal(err)
	}
	s.release()

	if len(ctx.deferred) != 0 {
		t.Error("external image must not enter the deferred queue")
	}
}

func TestNewStorageUnknownType(t *testing.T) {
	ctx := newFakeContext()
	_, err := newStorage(ctx, tensor.StorageType(99), tensor.DefaultAxisMap(), 0, []int64{1, 1, 4, 8}, tensor.Float32, true)
	if !errors.Is(err, ErrInvalidResource) {
		t.Errorf("expected ErrInvalidResource, got %v", err)
	}
}

func TestTexelFormatRoundTrip(t *testing.T) {
	tests := []struct {
		dtype  tensor.DataType
		format wgpu.TextureFormat
	}{
		{tensor.Float32, wgpu.TextureFormatRGBA32Float},
		{tensor.Int32, wgpu.TextureFormatRGBA32Sint},
		{tensor.Uint8, wgpu.TextureFormatRGBA8Uint},
	}

	for _, tt := range tests {
		format, err := texelFormatFor(tt.dtype)
		if err != nil {
			t.Fatalf("texelFormatFor(%v): %v", tt.dtype, err)
		}
		if format != tt.format {
			t.Errorf("texelFormatFor(%v) = %v, want %v", tt.dtype, format, tt.format)
		}
		dtype, err := dtypeForFormat(format)
		if err != nil {
			t.Fatalf("dtypeForFormat(%v): %v", format, err)
		}
		if dtype != tt.dtype {
			t.Errorf("dtypeForFormat(%v) = %v, want %v", format, dtype, tt.dtype)
		}
	}

	if _, err := texelFormatFor(tensor.Float64); !errors.Is(err, ErrUnsupportedDType) {
		t.Errorf("expected ErrUnsupportedDType for float64, got %v", err)
	}
}
