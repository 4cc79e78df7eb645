// Package main is the entry point for the analysis engine server. It reads
// configuration, constructs the sandbox runner and planner client, and
// hands everything to the server package.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/analysis-engine/internal/analysis"
	"github.com/sakif/analysis-engine/internal/config"
	"github.com/sakif/analysis-engine/internal/planner/openai"
	"github.com/sakif/analysis-engine/internal/sandbox/docker"
	"github.com/sakif/analysis-engine/internal/server"
	"github.com/sakif/analysis-engine/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(os.Getenv("SETTINGS_PATH"))
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if level := parseLogLevel(cfg.LogLevel); level != slog.LevelInfo {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.ResultsDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	analyzer, cleanup := buildAnalyzer(cfg, logger)
	defer cleanup()

	srv, err := server.New(cfg, logger, analyzer)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildAnalyzer assembles the orchestrator from the Docker runner and the
// planner client. Either backend being unavailable leaves the server up
// with analysis requests returning 503, so the read-side API keeps working.
// The returned cleanup closes the Docker client.
func buildAnalyzer(cfg *config.Config, logger *slog.Logger) (service.Analyzer, func()) {
	noop := func() {}

	if cfg.PlannerAPIKey == "" {
		logger.Warn("planner API key not set, analysis requests will be unavailable")
		return nil, noop
	}

	dockerCfg := docker.DefaultConfig()
	if cfg.SandboxImage != "" {
		dockerCfg.Image = cfg.SandboxImage
	}
	runner, err := docker.New(dockerCfg, logger)
	if err != nil {
		logger.Warn("Docker sandbox unavailable, analysis requests will be unavailable",
			slog.String("error", err.Error()),
		)
		return nil, noop
	}

	var opts []openai.Option
	if cfg.PlannerBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.PlannerBaseURL))
	}
	plannerClient := openai.NewClient(cfg.PlannerAPIKey, cfg.PlannerModel, logger, opts...)

	orch := analysis.NewOrchestrator(runner, plannerClient, analysis.Config{
		ResultsDir: cfg.ResultsDir,
	}, logger)
	return orch, func() { runner.Close() }
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
