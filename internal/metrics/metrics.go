// Package metrics exposes Prometheus instrumentation for GPU resource
// lifecycles: allocation gauges, the deferred-destruction queue, and
// buffer pool effectiveness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GPUBytesAllocated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpu_bytes_allocated",
		Help: "Current bytes held by live GPU buffer allocations",
	})

	GPUBuffersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpu_buffers_active",
		Help: "Number of live GPU buffer allocations",
	})

	GPUImagesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpu_images_active",
		Help: "Number of live GPU texture allocations",
	})

	DeferredReleases = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpu_deferred_releases_total",
		Help: "Total resource destructions drained from the deferred queue",
	})

	BufferPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpu_buffer_pool_hits_total",
		Help: "Buffer acquisitions satisfied from the pool",
	})

	BufferPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpu_buffer_pool_misses_total",
		Help: "Buffer acquisitions that required a fresh allocation",
	})
)
