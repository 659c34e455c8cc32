package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user and per-project configuration directory.
const DirName = ".dweebuild"

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed files return an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads .env, then configuration from conventional paths, then
// applies environment overrides.
// Global: ~/.dweebuild/config.{json,yaml,yml}
// Project: .dweebuild/config.{json,yaml,yml} (relative to cwd)
func LoadDefault() (*Config, error) {
	if err := LoadEnv(".env"); err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	cfg, err := Load(FindFile(filepath.Join(homeDir, DirName)), FindFile(DirName))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindFile returns the first config file present in dir, preferring JSON.
// When none exists it returns the JSON path so callers can create it.
func FindFile(dir string) string {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.json")
}

// LoadEnv loads KEY=VALUE pairs from the given dotenv files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables:
// AGENT_TIMEOUT_SECONDS, MAX_CONCURRENT_AGENTS, GIT_AUTO_COMMIT,
// DWEEBUILD_MODE and DWEEBUILD_PROJECT_ROOT.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("AGENT_TIMEOUT_SECONDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Orchestrator.AgentTimeoutSeconds = n
	}
	if v, ok := lookup("MAX_CONCURRENT_AGENTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_CONCURRENT_AGENTS: %w", err)
		}
		cfg.Orchestrator.MaxConcurrentAgents = n
	}
	if v, ok := lookup("GIT_AUTO_COMMIT"); ok && v != "" {
		cfg.Orchestrator.AutoCommit = strings.EqualFold(v, "true")
	}
	if v, ok := lookup("DWEEBUILD_MODE"); ok && v != "" {
		cfg.Orchestrator.Mode = strings.ToUpper(v)
	}
	if v, ok := lookup("DWEEBUILD_PROJECT_ROOT"); ok && v != "" {
		cfg.Workspace.Root = v
	}
	return nil
}

// mergeConfigFile decodes a config file on top of base. Maps merge key by
// key (a loaded entry replaces the base entry whole), lists replace, and
// scalar fields absent from the file keep their base value.
// Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, base); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
