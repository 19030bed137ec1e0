package metrics

import "testing"

func TestGaugesExist(t *testing.T) {
	// Verify the exported gauges exist and don't panic
	GPUBytesAllocated.Add(1024)
	GPUBytesAllocated.Sub(1024)
	GPUBuffersActive.Inc()
	GPUBuffersActive.Dec()
	GPUImagesActive.Inc()
	GPUImagesActive.Dec()
}

func TestCountersExist(t *testing.T) {
	DeferredReleases.Add(3)
	BufferPoolHits.Inc()
	BufferPoolMisses.Inc()
}
