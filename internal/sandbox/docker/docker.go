// Package docker implements the sandbox.Runner interface using Docker.
//
// Each run gets three fresh host directories bound into the container:
//
//	/in    read-only   the instrumented script
//	/out   read-write  scratch and artifact area, also the working directory
//	/data  read-only   copies of the job's input files
//
// The container has no network, a read-only root filesystem outside /out,
// and hard memory/pids/CPU ceilings. Everything acquired during a run, the
// temp directories and the container itself, is released before Run returns,
// on every exit path.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/analysis-engine/internal/metrics"
	"github.com/sakif/analysis-engine/internal/sandbox"
)

// timeoutExitCode mirrors the unix timeout command's convention.
const timeoutExitCode = 124

// Runner implements the sandbox.Runner interface using Docker.
type Runner struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	// slots bounds concurrent container runs across all sessions sharing
	// this runner. A buffered channel doubles as the counting semaphore.
	slots chan struct{}
}

var _ sandbox.Runner = (*Runner)(nil)

// New creates a new Docker Runner and verifies the daemon is reachable.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon not reachable: %w", err)
	}

	if cfg.PullOnStart {
		logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
		reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
		if err != nil {
			cli.Close()
			return nil, fmt.Errorf("failed to pull image: %w", err)
		}
		// Read everything to block until the pull is complete
		io.Copy(io.Discard, reader)
		reader.Close()
		logger.Info("docker image is ready")
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}

	return &Runner{
		cli:    cli,
		config: cfg,
		logger: logger,
		slots:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Close shuts down the docker client.
func (r *Runner) Close() error {
	return r.cli.Close()
}

// Run executes one job inside a fresh container.
//
// Non-zero exits and timeouts are not Go errors; they come back as a failed
// Outcome with the partial log retained. An error return means the run could
// not be carried out at all (daemon gone, mounts failed, context canceled).
func (r *Runner) Run(ctx context.Context, job sandbox.Job) (*sandbox.Outcome, error) {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()

	outcome, err := r.run(ctx, job)
	if err != nil {
		metrics.SandboxRun(string(job.Mode), "error", time.Since(start))
		return nil, err
	}

	status := "succeeded"
	switch {
	case outcome.TimedOut:
		status = "timeout"
	case !outcome.Succeeded:
		status = "failed"
	}
	metrics.SandboxRun(string(job.Mode), status, outcome.Duration)
	return outcome, nil
}

func (r *Runner) run(ctx context.Context, job sandbox.Job) (*sandbox.Outcome, error) {
	start := time.Now()

	inDir, outDir, dataDir, cleanup, err := r.prepareMounts(job)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	containerID, err := r.createContainer(ctx, inDir, outDir, dataDir)
	if err != nil {
		return nil, err
	}

	// Always remove the container we created, on a fresh context so removal
	// still happens after a timeout or caller cancellation.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error("failed to remove container",
				slog.String("id", containerID),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	exitCode, timedOut, err := r.waitForExit(ctx, containerID)
	if err != nil {
		return nil, err
	}

	combinedLog, err := r.collectLogs(containerID)
	if err != nil {
		r.logger.Error("failed to collect container logs",
			slog.String("id", containerID),
			slog.String("error", err.Error()),
		)
		combinedLog = ""
	}
	if timedOut {
		combinedLog += "\nExecution timed out.\n"
	}

	outcome := &sandbox.Outcome{
		Succeeded:   exitCode == 0,
		ExitCode:    exitCode,
		CombinedLog: combinedLog,
		TimedOut:    timedOut,
		Duration:    time.Since(start),
	}

	if job.Mode == sandbox.ModePlot && outcome.Succeeded {
		artifacts, err := r.collectArtifacts(outDir, job.OutputDir, job.OutputName)
		if err != nil {
			return nil, err
		}
		outcome.Artifacts = artifacts
	}

	return outcome, nil
}

// prepareMounts builds the per-run host directories and returns their paths
// plus a cleanup function that removes all of them.
func (r *Runner) prepareMounts(job sandbox.Job) (inDir, outDir, dataDir string, cleanup func(), err error) {
	root, err := os.MkdirTemp("", "analysis-sandbox-")
	if err != nil {
		return "", "", "", nil, fmt.Errorf("creating sandbox temp dir: %w", err)
	}
	cleanup = func() {
		if err := os.RemoveAll(root); err != nil {
			r.logger.Error("failed to remove sandbox temp dir",
				slog.String("dir", root),
				slog.String("error", err.Error()),
			)
		}
	}

	inDir = filepath.Join(root, "in")
	outDir = filepath.Join(root, "out")
	dataDir = filepath.Join(root, "data")
	for _, dir := range []string{inDir, outDir, dataDir} {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			cleanup()
			return "", "", "", nil, fmt.Errorf("creating sandbox dir %s: %w", dir, err)
		}
	}
	// The container process is unprivileged; the scratch area must stay
	// writable for it regardless of the host umask.
	if err := os.Chmod(outDir, 0o777); err != nil {
		cleanup()
		return "", "", "", nil, fmt.Errorf("chmod scratch dir: %w", err)
	}

	script := sandbox.Instrument(job.Code, job.Mode)
	if err := os.WriteFile(filepath.Join(inDir, "run.py"), []byte(script), 0o644); err != nil {
		cleanup()
		return "", "", "", nil, fmt.Errorf("writing sandbox script: %w", err)
	}

	for _, src := range job.InputFiles {
		if err := copyFile(src, filepath.Join(dataDir, filepath.Base(src))); err != nil {
			// Missing or unreadable inputs get reported inside the sandbox
			// (the script will fail to find them), not here.
			r.logger.Warn("failed to copy input file into sandbox",
				slog.String("file", src),
				slog.String("error", err.Error()),
			)
		}
	}

	return inDir, outDir, dataDir, cleanup, nil
}

func (r *Runner) createContainer(ctx context.Context, inDir, outDir, dataDir string) (string, error) {
	pids := r.config.PidsLimit
	hostConfig := &container.HostConfig{
		Binds: []string{
			inDir + ":/in:ro",
			outDir + ":/out:rw",
			dataDir + ":/data:ro",
		},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Resources: container.Resources{
			Memory:    r.config.MemoryLimit,
			NanoCPUs:  int64(r.config.CPULimit * 1e9),
			PidsLimit: &pids,
		},
		AutoRemove: false,
	}

	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      r.config.Image,
		Cmd:        []string{"python", "/in/run.py"},
		WorkingDir: "/out",
		Tty:        false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}
	return resp.ID, nil
}

// waitForExit blocks until the container stops or the wall-clock budget
// expires. On timeout the container is killed and the run reports exit 124.
func (r *Runner) waitForExit(ctx context.Context, containerID string) (exitCode int, timedOut bool, err error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	statusCh, errCh := r.cli.ContainerWait(waitCtx, containerID, container.WaitConditionNotRunning)

	select {
	case status := <-statusCh:
		return int(status.StatusCode), false, nil

	case err := <-errCh:
		if waitCtx.Err() == nil {
			return 0, false, fmt.Errorf("waiting for container: %w", err)
		}
		// Budget expired (or the caller canceled): kill the container so it
		// never outlives the run.
		killCtx, killCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer killCancel()
		if err := r.cli.ContainerKill(killCtx, containerID, "KILL"); err != nil {
			r.logger.Error("failed to kill timed-out container",
				slog.String("id", containerID),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return timeoutExitCode, true, nil
	}
}

// collectLogs fetches the container's interleaved stdout+stderr. A fresh
// context is used so logs survive a timed-out run context.
func (r *Runner) collectLogs(containerID string) (string, error) {
	logCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reader, err := r.cli.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	// Demultiplex both streams into one buffer, preserving interleaving.
	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, reader); err != nil {
		return "", err
	}
	return combined.String(), nil
}

// collectArtifacts scans the scratch area for auto-saved figures and moves
// them into destDir under the job's name prefix, in filename order.
func (r *Runner) collectArtifacts(outDir, destDir, outputName string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("scanning sandbox output dir: %w", err)
	}

	var saved []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "output_") && strings.HasSuffix(name, ".png") {
			saved = append(saved, name)
		}
	}
	sort.Strings(saved)

	if len(saved) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}

	artifacts := make([]string, 0, len(saved))
	for idx, name := range saved {
		dest := filepath.Join(destDir, fmt.Sprintf("%s_%d.png", outputName, idx+1))
		if err := moveFile(filepath.Join(outDir, name), dest); err != nil {
			return nil, fmt.Errorf("collecting artifact %s: %w", name, err)
		}
		artifacts = append(artifacts, dest)
	}
	return artifacts, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// moveFile renames when possible and falls back to copy+remove when the
// temp dir and the results dir sit on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}
