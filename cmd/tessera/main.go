// Package main provides the Tessera CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tessera-ml/tessera/gputensor"
	"github.com/tessera-ml/tessera/internal/logger"
)

const version = "v0.0.1-dev"

func main() {
	logger.Setup(os.Getenv("TESSERA_LOG_LEVEL"), os.Getenv("TESSERA_LOG_FORMAT"))

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Tessera %s\n", version)
			return
		case "gpu-info":
			gpuInfo()
			return
		}
	}

	fmt.Println("Tessera - GPU Tensor Containers for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  gpu-info   Probe the WebGPU adapter and print tensor layout info")
}

func gpuInfo() {
	if !gputensor.IsAvailable() {
		fmt.Println("WebGPU is not available on this system")
		os.Exit(1)
	}

	ctx, err := gputensor.NewDeviceContext()
	if err != nil {
		logger.Log.Error("context init failed", "error", err)
		os.Exit(1)
	}
	defer ctx.Release()

	info := ctx.AdapterInfo()
	fmt.Printf("Adapter: %s (%s)\n", info.Device, info.Vendor)

	t, err := gputensor.New(ctx, []int64{1, 3, 8, 8}, gputensor.Float32, gputensor.Options{})
	if err != nil {
		logger.Log.Error("tensor allocation failed", "error", err)
		os.Exit(1)
	}
	defer t.Release()

	fmt.Printf("Sample tensor %v (%s, %s)\n", t.Sizes(), t.DType(), t.StorageType())
	fmt.Printf("  strides:        %v\n", t.Strides())
	fmt.Printf("  image extents:  %v\n", t.Image().Extents())
	fmt.Printf("  logical limits: %v\n", t.LogicalLimits())
	fmt.Printf("  hashed layout:  0x%05x\n", t.HashedLayout())
}
