package config

// ProviderConfig defines how to reach a reasoning backend.
type ProviderConfig struct {
	Type        string  `json:"type" yaml:"type"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv   string  `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Command     string  `json:"command,omitempty" yaml:"command,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// AgentConfig defines an agent's capability, provider and toolset.
type AgentConfig struct {
	Capability   string   `json:"capability" yaml:"capability"`
	Provider     string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Role         string   `json:"role,omitempty" yaml:"role,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Strategy     string   `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	MaxAttempts  int      `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
}

// BlueprintStepConfig is one follow-up task an ARCHITECT completion expands to.
type BlueprintStepConfig struct {
	ID       string   `json:"id" yaml:"id"`
	Template string   `json:"template" yaml:"template"`
	After    []string `json:"after,omitempty" yaml:"after,omitempty"`
}

// OrchestratorSettings controls the tick loop and mode policy.
type OrchestratorSettings struct {
	Mode          string `json:"mode" yaml:"mode"`
	MaxIterations int    `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	// ApprovalRequired overrides the mode's default list of gated tools.
	// "all" gates every tool.
	ApprovalRequired    []string              `json:"approval_required,omitempty" yaml:"approval_required,omitempty"`
	AutoCommit          bool                  `json:"auto_commit" yaml:"auto_commit"`
	AgentTimeoutSeconds int                   `json:"agent_timeout_seconds" yaml:"agent_timeout_seconds"`
	MaxConcurrentAgents int                   `json:"max_concurrent_agents" yaml:"max_concurrent_agents"`
	MemoryCapacity      int                   `json:"memory_capacity" yaml:"memory_capacity"`
	AgentLogSize        int                   `json:"agent_log_size" yaml:"agent_log_size"`
	TickSchedule        string                `json:"tick_schedule" yaml:"tick_schedule"`
	RequeueOnTimeout    bool                  `json:"requeue_on_timeout" yaml:"requeue_on_timeout"`
	Blueprint           []BlueprintStepConfig `json:"blueprint,omitempty" yaml:"blueprint,omitempty"`
}

// WorkspaceConfig locates the project the agents work on.
type WorkspaceConfig struct {
	Root        string `json:"root" yaml:"root"`
	TestCommand string `json:"test_command" yaml:"test_command"`
	Watch       bool   `json:"watch" yaml:"watch"`
	Git         bool   `json:"git" yaml:"git"`
}

// CustomToolConfig declares a shell-command tool. Command is a text/template
// rendered with the call's args.
type CustomToolConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Command     string `json:"command" yaml:"command"`
}

// StorageConfig locates the session database.
type StorageConfig struct {
	DatabasePath string `json:"database_path" yaml:"database_path"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Providers    map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Agents       map[string]AgentConfig    `json:"agents" yaml:"agents"`
	Roster       []string                  `json:"roster" yaml:"roster"`
	Orchestrator OrchestratorSettings      `json:"orchestrator" yaml:"orchestrator"`
	Workspace    WorkspaceConfig           `json:"workspace" yaml:"workspace"`
	CustomTools  []CustomToolConfig        `json:"custom_tools,omitempty" yaml:"custom_tools,omitempty"`
	Storage      StorageConfig             `json:"storage" yaml:"storage"`
	Metrics      MetricsConfig             `json:"metrics" yaml:"metrics"`
}
