// Package config holds conductor's runtime configuration: the sessions base
// path, history bounds, gate deadlines, concurrency and token limits, and
// the commands subprocess checks run. Values come from defaults, an optional
// conductor.json (or .yaml) file, then environment overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// CheckCommands configures the subprocess gate checks.
type CheckCommands struct {
	Typecheck string `json:"typecheck,omitempty" yaml:"typecheck,omitempty"`
	Tests     string `json:"tests,omitempty" yaml:"tests,omitempty"`
	Lint      string `json:"lint,omitempty" yaml:"lint,omitempty"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	Debug bool   `json:"debug" yaml:"debug"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// Config is the full runtime configuration.
type Config struct {
	BasePath            string        `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	WorkDir             string        `json:"workDir,omitempty" yaml:"workDir,omitempty"`
	MaxHistoryItems     int           `json:"maxHistoryItems,omitempty" yaml:"maxHistoryItems,omitempty"`
	MaxConcurrentAgents int           `json:"maxConcurrentAgents,omitempty" yaml:"maxConcurrentAgents,omitempty"`
	TokenBudget         int           `json:"tokenBudget,omitempty" yaml:"tokenBudget,omitempty"`
	GateDeadlineSeconds int           `json:"gateDeadlineSeconds,omitempty" yaml:"gateDeadlineSeconds,omitempty"`
	RunnerCommand       string        `json:"runnerCommand,omitempty" yaml:"runnerCommand,omitempty"`
	Checks              CheckCommands `json:"checks,omitempty" yaml:"checks,omitempty"`
	Logging             LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		BasePath:            ".conductor",
		WorkDir:             ".",
		MaxHistoryItems:     50,
		MaxConcurrentAgents: 4,
		GateDeadlineSeconds: 180,
		RunnerCommand:       "agent-runner",
		Logging:             LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path (JSON, or YAML when the extension is
// .yaml/.yml), layered over the defaults. A missing file yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv layers environment overrides onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ORCH_BASE"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("ORCH_WORKDIR"); v != "" {
		c.WorkDir = v
	}
	if v, ok := envInt("ORCH_MAX_AGENTS"); ok {
		c.MaxConcurrentAgents = v
	}
	if v, ok := envInt("ORCH_TOKEN_BUDGET"); ok {
		c.TokenBudget = v
	}
	if v, ok := envInt("ORCH_GATE_DEADLINE_S"); ok {
		c.GateDeadlineSeconds = v
	}
	if v := os.Getenv("ORCH_RUNNER"); v != "" {
		c.RunnerCommand = v
	}
	if v := os.Getenv("ORCH_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.Debug = true
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
