package webgpu

// PipelineStage identifies the pipeline stage of an access to a GPU
// resource. Stages are opaque tokens used for hazard comparison; the
// surrounding command recorder translates them when submitting barriers.
type PipelineStage uint32

// Pipeline stages.
const (
	StageNone     PipelineStage = 0
	StageCompute  PipelineStage = 1 << 0
	StageHost     PipelineStage = 1 << 1
	StageTransfer PipelineStage = 1 << 2
)

// String returns a human-readable stage name.
func (s PipelineStage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageCompute:
		return "compute"
	case StageHost:
		return "host"
	case StageTransfer:
		return "transfer"
	default:
		return "mixed"
	}
}

// MemoryAccess describes how a pipeline stage touches a resource.
type MemoryAccess uint32

// Access kinds. Read and write may be combined.
const (
	AccessNone  MemoryAccess = 0
	AccessRead  MemoryAccess = 1 << 0
	AccessWrite MemoryAccess = 1 << 1
)

// Reads reports whether the access includes a read.
func (a MemoryAccess) Reads() bool {
	return a&AccessRead != 0
}

// Writes reports whether the access includes a write.
func (a MemoryAccess) Writes() bool {
	return a&AccessWrite != 0
}

// String returns a human-readable access name.
func (a MemoryAccess) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessRead | AccessWrite:
		return "read|write"
	default:
		return "unknown"
	}
}

// BufferMemoryBarrier describes an ordering requirement between two
// accesses to a buffer resource.
type BufferMemoryBarrier struct {
	SrcStage  PipelineStage
	SrcAccess MemoryAccess
	DstStage  PipelineStage
	DstAccess MemoryAccess
	Buffer    *Buffer
}

// ImageMemoryBarrier describes an ordering requirement between two
// accesses to an image resource.
type ImageMemoryBarrier struct {
	SrcStage  PipelineStage
	SrcAccess MemoryAccess
	DstStage  PipelineStage
	DstAccess MemoryAccess
	Image     *Image
}

// PipelineBarrier accumulates barrier descriptions emitted by hazard
// tracking. It is filled by Storage.transition and consumed by the
// surrounding command recorder before the next dispatch is encoded.
type PipelineBarrier struct {
	BufferBarriers []BufferMemoryBarrier
	ImageBarriers  []ImageMemoryBarrier
}

// Empty reports whether no barriers have been accumulated.
func (pb *PipelineBarrier) Empty() bool {
	return len(pb.BufferBarriers) == 0 && len(pb.ImageBarriers) == 0
}

// Reset clears the accumulator for reuse across dispatches.
func (pb *PipelineBarrier) Reset() {
	pb.BufferBarriers = pb.BufferBarriers[:0]
	pb.ImageBarriers = pb.ImageBarriers[:0]
}

func (pb *PipelineBarrier) addBufferBarrier(b BufferMemoryBarrier) {
	pb.BufferBarriers = append(pb.BufferBarriers, b)
}

func (pb *PipelineBarrier) addImageBarrier(b ImageMemoryBarrier) {
	pb.ImageBarriers = append(pb.ImageBarriers, b)
}
