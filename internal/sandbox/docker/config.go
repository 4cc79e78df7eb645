package docker

import (
	"time"
)

// Config holds the configuration for Docker execution. Resource limits are
// fixed per deployment; callers submitting jobs cannot override them.
type Config struct {
	// Image is the Docker image to use for execution. It must carry the
	// Python scientific stack (numpy, pandas, matplotlib, scipy, seaborn).
	Image string
	// PullOnStart pulls the image during New. Leave false when the image is
	// built locally rather than published to a registry.
	PullOnStart bool
	// MemoryLimit is the hard memory ceiling for the container (in bytes).
	MemoryLimit int64
	// PidsLimit is the hard process-count ceiling inside the container.
	PidsLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the wall-clock budget; the container is force-killed past it.
	Timeout time.Duration
	// MaxConcurrent caps how many containers this runner drives at once.
	MaxConcurrent int
}

// DefaultConfig provides the defaults for the analysis sandbox.
func DefaultConfig() Config {
	return Config{
		Image: "analysis-plotter",
		// 4 GB memory: pandas loads whole datasets into memory
		MemoryLimit: 4 * 1024 * 1024 * 1024,
		PidsLimit:   128,
		CPULimit:    2.0,
		// Generated scripts read full datasets; 30s covers that with margin
		Timeout:       30 * time.Second,
		MaxConcurrent: 4,
	}
}
