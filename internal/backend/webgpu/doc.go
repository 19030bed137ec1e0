// Package webgpu implements GPU-resident tensor storage on top of
// go-webgpu (github.com/go-webgpu/webgpu) zero-CGO WebGPU bindings.
//
// The package centers on three types:
//
//   - Storage: a reference-counted wrapper around exactly one GPU
//     resource (3D storage texture or linear buffer) that tracks the
//     last pipeline access for hazard detection.
//   - Tensor: a logical N-dimensional view over a Storage. All shape
//     metadata (sizes, dim order, axis map, strides) lives on the
//     Tensor, so multiple Tensors can reinterpret one allocation
//     without copying data.
//   - UniformData: the fixed-size packed metadata block (sizes,
//     strides, logical limits, element count) handed to compute
//     shaders through a small uniform buffer.
//
// Synchronization is declarative: Storage.transition compares a
// requested access against the previous one and appends barrier
// descriptions to a PipelineBarrier accumulator. The surrounding
// command recorder decides when and how to submit them; this package
// never waits on the GPU.
package webgpu
