package webgpu

import "errors"

// Precondition failures detected eagerly on the host. None of these are
// retried internally and none reflect GPU-side error state.
var (
	// ErrInvalidRank reports a size list whose rank is not usable for the
	// requested operation, e.g. a resize that would change dimensionality.
	ErrInvalidRank = errors.New("webgpu: invalid tensor rank")

	// ErrStorageCapacity reports requested sizes that exceed the physical
	// capacity of the existing storage resource.
	ErrStorageCapacity = errors.New("webgpu: storage capacity exceeded")

	// ErrStorageType reports an operation that is not supported for the
	// tensor's storage kind, e.g. reconfiguring a texture-backed tensor.
	ErrStorageType = errors.New("webgpu: operation not supported for storage type")

	// ErrOutOfBounds reports a destination too small for the requested
	// write.
	ErrOutOfBounds = errors.New("webgpu: destination out of bounds")

	// ErrInvalidResource reports a storage resource whose sizing is
	// inconsistent with its storage type. It indicates a programming
	// error, not a recoverable condition.
	ErrInvalidResource = errors.New("webgpu: invalid storage resource")

	// ErrUnsupportedDType reports an element type that cannot be stored
	// in the requested resource kind.
	ErrUnsupportedDType = errors.New("webgpu: unsupported data type")
)
