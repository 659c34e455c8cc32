package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Providers["test"] = ProviderConfig{Type: "openai", BaseURL: "http://localhost:8080/v1"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.Providers["test"].BaseURL != "http://localhost:8080/v1" {
		t.Errorf("Expected provider base_url to be saved, got '%s'", loaded.Providers["test"].BaseURL)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(&Config{}, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := DefaultConfig()
			cfg.Agents["ENGINEER"] = AgentConfig{
				Capability:  "ENGINEER",
				Provider:    "anthropic",
				Tools:       []string{"file_write", "shell_exec"},
				MaxAttempts: 8,
			}
			cfg.Orchestrator.Mode = ModeSupervised
			cfg.Orchestrator.ApprovalRequired = []string{"git"}
			cfg.CustomTools = []CustomToolConfig{{Name: "lint", Command: "ruff check {{.path}}"}}

			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path, "")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			eng := loaded.Agents["ENGINEER"]
			if eng.Provider != "anthropic" || eng.MaxAttempts != 8 || len(eng.Tools) != 2 {
				t.Errorf("ENGINEER mismatch: %+v", eng)
			}
			if loaded.Orchestrator.Mode != ModeSupervised {
				t.Errorf("mode mismatch: got %q", loaded.Orchestrator.Mode)
			}
			if len(loaded.Orchestrator.ApprovalRequired) != 1 || loaded.Orchestrator.ApprovalRequired[0] != "git" {
				t.Errorf("approval list mismatch: %v", loaded.Orchestrator.ApprovalRequired)
			}
			if len(loaded.CustomTools) != 1 || loaded.CustomTools[0].Command != "ruff check {{.path}}" {
				t.Errorf("custom tools mismatch: %+v", loaded.CustomTools)
			}
			if err := loaded.Validate(); err != nil {
				t.Errorf("round-tripped config invalid: %v", err)
			}
		})
	}
}

func TestSaveYAMLIsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("not YAML: %v", err)
	}
	if data[0] == '{' {
		t.Error("expected YAML output, got JSON")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg1 := DefaultConfig()
	cfg1.Workspace.Root = "first-value"
	if err := Save(cfg1, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	cfg2 := DefaultConfig()
	cfg2.Workspace.Root = "second-value"
	if err := Save(cfg2, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Workspace.Root != "second-value" {
		t.Errorf("Expected 'second-value', got '%s'", loaded.Workspace.Root)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, DefaultConfig()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(buf.Bytes(), &loaded); err != nil {
		t.Fatalf("Write produced invalid YAML: %v", err)
	}
	if loaded.Orchestrator.Mode != ModeAutonomous {
		t.Errorf("Expected mode %s, got %q", ModeAutonomous, loaded.Orchestrator.Mode)
	}
	if len(loaded.Roster) != 3 {
		t.Errorf("Expected 3 roster entries, got %d", len(loaded.Roster))
	}
}
