package webgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/tessera-ml/tessera/internal/tensor"
)

// LastAccess records the most recent pipeline stage and access kind
// that touched a storage resource. It is the sole synchronization state
// kept per resource; comparing against it decides whether a barrier is
// required before the next access.
type LastAccess struct {
	Stage  PipelineStage
	Access MemoryAccess
}

// Storage owns exactly one GPU allocation, either a 3D storage texture
// or a linear buffer. Sizing is immutable after construction; resizing
// a tensor never grows its storage. Storage is reference counted so
// that multiple tensors can alias one allocation, and the underlying
// resource is handed to the context's deferred-destruction queue when
// the last reference is released.
type Storage struct {
	ctx Context

	storageType tensor.StorageType

	// Resource sizing. imageExtents is set for texture storage,
	// bufferLength/bufferOffset (in elements) for buffer storage.
	imageExtents tensor.Extents
	bufferLength int64
	bufferOffset int64

	image  *Image
	buffer *Buffer

	lastAccess LastAccess

	// external marks storage wrapping a caller-owned image, which is
	// never destroyed by flush.
	external bool

	refs    atomic.Int32
	flushed bool
}

// newStorage allocates a storage resource sized for the given padded
// sizes. When allocate is false the physical binding is deferred.
func newStorage(
	ctx Context,
	storageType tensor.StorageType,
	axisMap []int64,
	packedDim int32,
	paddedSizes []int64,
	dtype tensor.DataType,
	allocate bool,
) (*Storage, error) {
	s := &Storage{ctx: ctx, storageType: storageType}
	s.refs.Store(1)

	switch storageType {
	case tensor.StorageTexture3D:
		format, err := texelFormatFor(dtype)
		if err != nil {
			return nil, err
		}
		s.imageExtents = tensor.CalculateImageExtents(paddedSizes, axisMap, packedDim)
		s.image, err = ctx.NewImage(s.imageExtents, format, allocate)
		if err != nil {
			return nil, err
		}
	case tensor.StorageBuffer:
		s.bufferLength = tensor.Numel(paddedSizes)
		byteSize := uint64(s.bufferLength) * uint64(dtype.Size())
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
		var err error
		s.buffer, err = ctx.NewBuffer(byteSize, usage, allocate)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage type %d: %w", storageType, ErrInvalidResource)
	}

	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// newStorageFromImage wraps an externally created image. The wrapper
// tracks access hazards but never destroys the caller's texture.
func newStorageFromImage(ctx Context, image *Image) (*Storage, error) {
	s := &Storage{
		ctx:          ctx,
		storageType:  tensor.StorageTexture3D,
		imageExtents: image.Extents(),
		image:        image,
		external:     true,
	}
	s.refs.Store(1)

	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// StorageType returns the kind of resource backing this storage.
func (s *Storage) StorageType() tensor.StorageType {
	return s.storageType
}

// ImageExtents returns the allocated texel-space extents. Zero for
// buffer storage.
func (s *Storage) ImageExtents() tensor.Extents {
	return s.imageExtents
}

// BufferLength returns the allocated element count. Zero for texture
// storage.
func (s *Storage) BufferLength() int64 {
	return s.bufferLength
}

// LastAccess returns the most recent recorded access.
func (s *Storage) LastAccess() LastAccess {
	return s.lastAccess
}

// TextureFormat returns the format of the backing image. Panics for
// buffer storage.
func (s *Storage) TextureFormat() wgpu.TextureFormat {
	if s.image == nil {
		panic("webgpu: texture format of buffer-backed storage")
	}
	return s.image.Format()
}

// retain adds a reference for a new aliasing tensor.
func (s *Storage) retain() {
	s.refs.Add(1)
}

// release drops a reference and flushes the resource when the last one
// is gone.
func (s *Storage) release() {
	if s.refs.Add(-1) == 0 {
		s.flush()
	}
}

// transition compares the requested access against the last recorded
// one and appends a barrier description when they conflict. Two reads
// never conflict; any write, previous or requested, orders the new
// access behind the old one. The last access is updated regardless.
func (s *Storage) transition(pb *PipelineBarrier, stage PipelineStage, access MemoryAccess) {
	prev := s.lastAccess

	if prev.Stage != StageNone && (prev.Access.Writes() || access.Writes()) {
		if s.storageType == tensor.StorageBuffer {
			pb.addBufferBarrier(BufferMemoryBarrier{
				SrcStage:  prev.Stage,
				SrcAccess: prev.Access,
				DstStage:  stage,
				DstAccess: access,
				Buffer:    s.buffer,
			})
		} else {
			pb.addImageBarrier(ImageMemoryBarrier{
				SrcStage:  prev.Stage,
				SrcAccess: prev.Access,
				DstStage:  stage,
				DstAccess: access,
				Image:     s.image,
			})
		}
	}

	s.lastAccess = LastAccess{Stage: stage, Access: access}
}

// flush hands the GPU handles to the context's deferred-destruction
// queue. Invoked exactly once, when the last reference is released.
func (s *Storage) flush() {
	if s.flushed {
		return
	}
	s.flushed = true

	if s.image != nil && !s.external {
		s.ctx.DeferRelease(s.image.Destroy)
	}
	if s.buffer != nil {
		s.ctx.DeferRelease(s.buffer.Destroy)
	}
}

// verify validates that the resource's sizing is consistent with its
// storage type. Failures indicate programming errors.
func (s *Storage) verify() error {
	switch s.storageType {
	case tensor.StorageTexture3D:
		if s.buffer != nil {
			return fmt.Errorf("texture storage carries a buffer: %w", ErrInvalidResource)
		}
		if s.image == nil {
			return fmt.Errorf("texture storage has no image: %w", ErrInvalidResource)
		}
		if !s.imageExtents.NonZero() {
			return fmt.Errorf("texture storage with extents %v: %w", s.imageExtents, ErrInvalidResource)
		}
	case tensor.StorageBuffer:
		if s.image != nil {
			return fmt.Errorf("buffer storage carries an image: %w", ErrInvalidResource)
		}
		if s.bufferLength < 0 || s.bufferOffset < 0 {
			return fmt.Errorf("buffer storage with length %d offset %d: %w",
				s.bufferLength, s.bufferOffset, ErrInvalidResource)
		}
	default:
		return fmt.Errorf("unknown storage type %d: %w", s.storageType, ErrInvalidResource)
	}
	return nil
}
