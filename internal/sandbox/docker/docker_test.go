package docker_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/analysis-engine/internal/sandbox"
	"github.com/sakif/analysis-engine/internal/sandbox/docker"
)

func countSandboxTempDirs(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "analysis-sandbox-*"))
	require.NoError(t, err)
	return len(matches)
}

// These tests talk to a real Docker daemon and an image with the scientific
// Python stack installed. They are skipped in CI.
func TestDockerRunner(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("Skipping docker test in CI environment")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	runner, err := docker.New(cfg, logger)
	require.NoError(t, err, "Should initialize docker runner without error")
	defer runner.Close()

	t.Run("successful compute run", func(t *testing.T) {
		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code: `print("result:", 21 * 2)`,
			Mode: sandbox.ModeCompute,
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Equal(t, 0, outcome.ExitCode)
		assert.Contains(t, outcome.CombinedLog, "result: 42")
		assert.Empty(t, outcome.Artifacts)
		assert.Greater(t, outcome.Duration, time.Duration(0))
	})

	t.Run("runtime error surfaces in log", func(t *testing.T) {
		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code: `raise ValueError("boom")`,
			Mode: sandbox.ModeCompute,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.NotEqual(t, 0, outcome.ExitCode)
		assert.Contains(t, outcome.CombinedLog, "ValueError")
	})

	t.Run("infinite loop timeout", func(t *testing.T) {
		fastCfg := cfg
		fastCfg.Timeout = 2 * time.Second
		fastRunner, err := docker.New(fastCfg, logger)
		require.NoError(t, err)
		defer fastRunner.Close()

		outcome, err := fastRunner.Run(context.Background(), sandbox.Job{
			Code: `while True: pass`,
			Mode: sandbox.ModeCompute,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
		assert.True(t, outcome.TimedOut)
		assert.Equal(t, 124, outcome.ExitCode)
	})

	t.Run("plot run collects artifacts", func(t *testing.T) {
		outputDir := t.TempDir()

		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code: "plt.figure()\n" +
				"plt.plot([1, 2, 3], [1, 4, 9])\n" +
				"plt.figure()\n" +
				"plt.hist([1, 1, 2, 3])\n",
			Mode:       sandbox.ModePlot,
			OutputDir:  outputDir,
			OutputName: "trend_check",
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		require.Len(t, outcome.Artifacts, 2)
		assert.Equal(t, filepath.Join(outputDir, "trend_check_1.png"), outcome.Artifacts[0])
		assert.Equal(t, filepath.Join(outputDir, "trend_check_2.png"), outcome.Artifacts[1])
		for _, artifact := range outcome.Artifacts {
			info, err := os.Stat(artifact)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		}
	})

	t.Run("input files visible under data mount", func(t *testing.T) {
		dataFile := filepath.Join(t.TempDir(), "values.csv")
		require.NoError(t, os.WriteFile(dataFile, []byte("a,b\n1,2\n3,4\n"), 0o644))

		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code:       `print(pd.read_csv("/data/values.csv")["a"].sum())`,
			Mode:       sandbox.ModeCompute,
			InputFiles: []string{dataFile},
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Contains(t, outcome.CombinedLog, "4")
	})

	t.Run("plot run with no figures yields no artifacts", func(t *testing.T) {
		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code:       `print("computed, nothing drawn")`,
			Mode:       sandbox.ModePlot,
			OutputDir:  t.TempDir(),
			OutputName: "empty",
		})
		require.NoError(t, err)
		assert.True(t, outcome.Succeeded)
		assert.Empty(t, outcome.Artifacts)
	})

	t.Run("temp dirs are cleaned up on every exit path", func(t *testing.T) {
		baseline := countSandboxTempDirs(t)

		runner.Run(context.Background(), sandbox.Job{Code: `print("ok")`, Mode: sandbox.ModeCompute})
		runner.Run(context.Background(), sandbox.Job{Code: `raise RuntimeError("fail")`, Mode: sandbox.ModeCompute})

		assert.Equal(t, baseline, countSandboxTempDirs(t))
	})

	t.Run("no network access", func(t *testing.T) {
		outcome, err := runner.Run(context.Background(), sandbox.Job{
			Code: "import urllib.request\n" +
				`urllib.request.urlopen("http://example.com", timeout=5)`,
			Mode: sandbox.ModeCompute,
		})
		require.NoError(t, err)
		assert.False(t, outcome.Succeeded)
	})
}
