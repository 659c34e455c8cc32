package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name            string
		globalConfig    string
		projectConfig   string
		projectExt      string
		expectProviders int
		expectAgents    int
		checkAgent      string
		expectProvider  string
		expectMode      string
		expectTimeout   int
	}{
		{
			name:            "No config files - returns defaults",
			expectProviders: 5,
			expectAgents:    3,
			expectMode:      ModeAutonomous,
			expectTimeout:   300,
		},
		{
			name:            "Global only - adds new agent",
			globalConfig:    `{"agents": {"REVIEWER": {"capability": "QA", "provider": "openai"}}}`,
			expectProviders: 5,
			expectAgents:    4,
			checkAgent:      "REVIEWER",
			expectProvider:  "openai",
			expectMode:      ModeAutonomous,
			expectTimeout:   300,
		},
		{
			name:            "Project only - overrides agent provider",
			projectConfig:   `{"agents": {"ENGINEER": {"capability": "ENGINEER", "provider": "anthropic"}}}`,
			expectProviders: 5,
			expectAgents:    3,
			checkAgent:      "ENGINEER",
			expectProvider:  "anthropic",
			expectMode:      ModeAutonomous,
			expectTimeout:   300,
		},
		{
			name:            "Project overrides global - project wins",
			globalConfig:    `{"orchestrator": {"mode": "SINGLE", "agent_timeout_seconds": 60}}`,
			projectConfig:   `{"orchestrator": {"mode": "SUPERVISED"}}`,
			expectProviders: 5,
			expectAgents:    3,
			expectMode:      ModeSupervised,
			expectTimeout:   60,
		},
		{
			name: "YAML project config",
			projectConfig: `
providers:
  local:
    type: openai
    base_url: http://localhost:11434/v1
agents:
  ARCHITECT:
    capability: ARCHITECT
    provider: local
orchestrator:
  max_iterations: 7
`,
			projectExt:      ".yaml",
			expectProviders: 6,
			expectAgents:    3,
			checkAgent:      "ARCHITECT",
			expectProvider:  "local",
			expectMode:      ModeAutonomous,
			expectTimeout:   300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != "" {
				globalPath = filepath.Join(tmpDir, "global.json")
				if err := os.WriteFile(globalPath, []byte(tt.globalConfig), 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != "" {
				ext := tt.projectExt
				if ext == "" {
					ext = ".json"
				}
				projectPath = filepath.Join(tmpDir, "project"+ext)
				if err := os.WriteFile(projectPath, []byte(tt.projectConfig), 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Providers); got != tt.expectProviders {
				t.Errorf("providers count = %d, want %d", got, tt.expectProviders)
			}
			if got := len(cfg.Agents); got != tt.expectAgents {
				t.Errorf("agents count = %d, want %d", got, tt.expectAgents)
			}
			if cfg.Orchestrator.Mode != tt.expectMode {
				t.Errorf("mode = %q, want %q", cfg.Orchestrator.Mode, tt.expectMode)
			}
			if cfg.Orchestrator.AgentTimeoutSeconds != tt.expectTimeout {
				t.Errorf("timeout = %d, want %d", cfg.Orchestrator.AgentTimeoutSeconds, tt.expectTimeout)
			}

			if tt.checkAgent != "" {
				agent, exists := cfg.Agents[tt.checkAgent]
				if !exists {
					t.Fatalf("expected agent %q not found", tt.checkAgent)
				}
				if agent.Provider != tt.expectProvider {
					t.Errorf("agent %q provider = %q, want %q", tt.checkAgent, agent.Provider, tt.expectProvider)
				}
			}

			if err := cfg.Validate(); err != nil {
				t.Errorf("merged config should validate: %v", err)
			}
		})
	}
}

func TestLoad_PartialSectionKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(path, []byte(`{"workspace": {"root": "/tmp/snake"}}`), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Workspace.Root != "/tmp/snake" {
		t.Errorf("root = %q", cfg.Workspace.Root)
	}
	if cfg.Workspace.TestCommand != "pytest" {
		t.Errorf("test command = %q, want default pytest", cfg.Workspace.TestCommand)
	}
	if len(cfg.Roster) != 3 {
		t.Errorf("roster = %v, want defaults", cfg.Roster)
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if !strings.Contains(err.Error(), "global.json") {
		t.Errorf("error should mention the file: %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("roster: [unterminated"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	if _, err := Load("", path); err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	if len(cfg.Providers) != 5 {
		t.Errorf("providers count = %d, want 5", len(cfg.Providers))
	}
	if len(cfg.Agents) != 3 {
		t.Errorf("agents count = %d, want 3", len(cfg.Agents))
	}
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	if got := FindFile(dir); got != filepath.Join(dir, "config.json") {
		t.Errorf("empty dir: got %q", got)
	}

	yml := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(yml, []byte("roster: [ARCHITECT]"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := FindFile(dir); got != yml {
		t.Errorf("got %q, want %q", got, yml)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"AGENT_TIMEOUT_SECONDS":  "45",
		"MAX_CONCURRENT_AGENTS":  "1",
		"GIT_AUTO_COMMIT":        "TRUE",
		"DWEEBUILD_MODE":         "single",
		"DWEEBUILD_PROJECT_ROOT": "/work/app",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Orchestrator.AgentTimeoutSeconds != 45 {
		t.Errorf("timeout = %d", cfg.Orchestrator.AgentTimeoutSeconds)
	}
	if cfg.Orchestrator.MaxConcurrentAgents != 1 {
		t.Errorf("concurrency = %d", cfg.Orchestrator.MaxConcurrentAgents)
	}
	if !cfg.Orchestrator.AutoCommit {
		t.Error("auto commit should be enabled")
	}
	if cfg.Orchestrator.Mode != ModeSingle {
		t.Errorf("mode = %q", cfg.Orchestrator.Mode)
	}
	if cfg.Workspace.Root != "/work/app" {
		t.Errorf("root = %q", cfg.Workspace.Root)
	}

	env["AGENT_TIMEOUT_SECONDS"] = "soon"
	if err := ApplyEnv(DefaultConfig(), lookup); err == nil {
		t.Error("expected error for non-numeric timeout")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("# keys\nDWEEBUILD_TEST_KEY=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DWEEBUILD_TEST_KEY", "")
	os.Unsetenv("DWEEBUILD_TEST_KEY")

	if err := LoadEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("DWEEBUILD_TEST_KEY"); got != "from-file" {
		t.Errorf("DWEEBUILD_TEST_KEY = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Orchestrator.Mode = "TURBO" },
			wantErr: "orchestrator.mode",
		},
		{
			name:    "roster references missing agent",
			mutate:  func(c *Config) { c.Roster = append(c.Roster, "DESIGNER") },
			wantErr: `unknown agent "DESIGNER"`,
		},
		{
			name: "unknown capability",
			mutate: func(c *Config) {
				c.Agents["ENGINEER"] = AgentConfig{Capability: "JANITOR", Provider: "groq"}
			},
			wantErr: "unknown capability",
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Agents["ARCHITECT"] = AgentConfig{Capability: "ARCHITECT", Provider: "nowhere"}
			},
			wantErr: `unknown provider "nowhere"`,
		},
		{
			name: "blueprint cycle",
			mutate: func(c *Config) {
				c.Orchestrator.Blueprint = []BlueprintStepConfig{
					{ID: "a", Template: "Implement: a", After: []string{"b"}},
					{ID: "b", Template: "Implement: b", After: []string{"a"}},
				}
			},
			wantErr: "orchestrator.blueprint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestBlueprintSteps(t *testing.T) {
	cfg := DefaultConfig()
	if got := len(cfg.BlueprintSteps()); got != 4 {
		t.Errorf("default blueprint has %d steps, want 4", got)
	}

	cfg.Orchestrator.Blueprint = []BlueprintStepConfig{{ID: "only", Template: "Implement: {{.Subject}}"}}
	steps := cfg.BlueprintSteps()
	if len(steps) != 1 || steps[0].ID != "only" {
		t.Errorf("configured blueprint not used: %+v", steps)
	}
}

func TestDefaultConfigJSONShape(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"agent_timeout_seconds":300`, `"tick_schedule":"@every 2s"`, `"api_key_env":"GROQ_API_KEY"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshaled defaults missing %s", key)
		}
	}
}
