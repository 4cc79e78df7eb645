// Package sandbox defines the contract for running untrusted, generated
// Python code inside an isolated execution backend, plus the source-level
// instrumentation that makes such code safe to run there.
package sandbox

import (
	"context"
	"time"
)

// Mode selects how a job's output is interpreted.
type Mode string

const (
	// ModeCompute runs the script silently; the captured combined log is the
	// authoritative result. No figure artifacts are collected.
	ModeCompute Mode = "compute"
	// ModePlot auto-persists every figure the script opens and collects the
	// resulting images as artifacts. The script itself must not save or show.
	ModePlot Mode = "plot"
)

// Job describes one sandboxed run. Code is untrusted and is instrumented
// before execution; InputFiles are host paths copied read-only into the
// sandbox's data mount in order.
type Job struct {
	Code       string
	Mode       Mode
	InputFiles []string
	// OutputDir and OutputName control where Plot-mode artifacts land on the
	// host: {OutputDir}/{OutputName}_{i}.png, i starting at 1 in scan order.
	// Ignored in Compute mode.
	OutputDir  string
	OutputName string
}

// Outcome is the immutable result of one Job.
// Invariants: Succeeded == (ExitCode == 0); Artifacts is non-empty only for
// a succeeded Plot-mode job.
type Outcome struct {
	Succeeded   bool          `json:"succeeded"`
	ExitCode    int           `json:"exitCode"`
	CombinedLog string        `json:"combinedLog"`
	Artifacts   []string      `json:"artifacts,omitempty"`
	TimedOut    bool          `json:"timedOut,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Runner executes one job in an isolated environment. Implementations own
// all isolation, resource-limit, and artifact-collection policy, and must
// tear down every resource they acquire on all exit paths before returning.
// Run blocks for up to the backend's wall-clock budget and honours ctx
// cancellation. Runners must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, job Job) (*Outcome, error)
}
