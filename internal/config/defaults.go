package config

// Mode names accepted in OrchestratorSettings.Mode.
const (
	ModeSingle     = "SINGLE"
	ModeAutonomous = "AUTONOMOUS"
	ModeSupervised = "SUPERVISED"
)

// DefaultConfig returns the built-in providers, the three-agent roster and
// the orchestrator defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"groq": {
				Type:      "groq",
				Model:     "llama-3.3-70b-versatile",
				APIKeyEnv: "GROQ_API_KEY",
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"anthropic": {
				Type:      "anthropic",
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			"claude": {
				Type:    "claude-cli",
				Command: "claude",
			},
			"dry-run": {
				Type: "scripted",
			},
		},
		Agents: map[string]AgentConfig{
			"ARCHITECT": {
				Capability: "ARCHITECT",
				Provider:   "groq",
				Role:       "System Architect",
				Tools:      []string{"file_write", "file_read", "list_dir"},
			},
			"ENGINEER": {
				Capability: "ENGINEER",
				Provider:   "groq",
				Role:       "Senior Engineer",
				Tools:      []string{"shell_exec", "file_write", "file_read", "list_dir", "grep", "git"},
			},
			"QA_LEAD": {
				Capability: "QA",
				Provider:   "groq",
				Role:       "QA Lead",
				Strategy:   "test-gate",
				Tools:      []string{"run_tests"},
			},
		},
		Roster: []string{"ARCHITECT", "ENGINEER", "QA_LEAD"},
		Orchestrator: OrchestratorSettings{
			Mode:                ModeAutonomous,
			AgentTimeoutSeconds: 300,
			MaxConcurrentAgents: 3,
			MemoryCapacity:      1000,
			AgentLogSize:        100,
			TickSchedule:        "@every 2s",
		},
		Workspace: WorkspaceConfig{
			Root:        "project",
			TestCommand: "pytest",
			Watch:       true,
			Git:         true,
		},
		Storage: StorageConfig{
			DatabasePath: ".dweebuild/sessions.db",
		},
	}
}
