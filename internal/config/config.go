// Package config resolves application configuration through one ordered
// chain: settings file, then environment, then .env file, first present
// value wins. Collapsing the chain into a single resolve function keeps the
// precedence auditable and testable without layering tricks.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port       int
	DBPath     string
	ResultsDir string
	// DataDir is the root all input file paths in API requests must live
	// under; requests referencing paths outside it are rejected.
	DataDir string

	SandboxImage string

	PlannerBaseURL string
	PlannerAPIKey  string
	PlannerModel   string

	LogLevel string
}

// Load resolves the configuration. settingsPath may be empty or point to a
// missing file; both simply skip the settings layer. A .env file in the
// working directory is loaded into the environment without overriding
// variables that are already set, which is what gives env precedence over
// dotenv.
func Load(settingsPath string) (*Config, error) {
	settings, err := loadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	// Best effort: absence of a .env file is the normal case.
	_ = godotenv.Load()

	resolve := func(key, envVar, fallback string) string {
		if v, ok := settings[key]; ok && v != "" {
			return v
		}
		if v := os.Getenv(envVar); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DBPath:         resolve("db_path", "DB_PATH", "data/analysis.db"),
		ResultsDir:     resolve("results_dir", "RESULTS_DIR", "data/results"),
		DataDir:        resolve("data_dir", "DATA_DIR", "data/uploads"),
		SandboxImage:   resolve("sandbox_image", "SANDBOX_IMAGE", ""),
		PlannerBaseURL: resolve("planner_base_url", "PLANNER_BASE_URL", ""),
		PlannerAPIKey:  resolve("planner_api_key", "PLANNER_API_KEY", ""),
		PlannerModel:   resolve("planner_model", "PLANNER_MODEL", "qwen-max"),
		LogLevel:       resolve("log_level", "LOG_LEVEL", "info"),
	}

	portStr := resolve("port", "PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port value %q: %w", portStr, err)
	}
	cfg.Port = port

	return cfg, nil
}

// loadSettings reads the optional YAML settings file into a flat key map.
func loadSettings(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	settings := make(map[string]string, len(raw))
	for key, value := range raw {
		if value != nil {
			settings[key] = fmt.Sprint(value)
		}
	}
	return settings, nil
}
