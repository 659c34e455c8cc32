package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dweebuild/dweebuild/internal/process"
)

// ClaudeCLI runs the claude command-line tool once per completion.
// Every call is a fresh print-mode session.
type ClaudeCLI struct {
	name    string
	command string
	model   string
	workDir string
	procMgr *process.Manager
	logger  *zap.Logger
}

// claudeResponse is the JSON printed by `claude -p --output-format json`.
// Older releases nest the text under result.content; newer ones print it
// directly as a string result.
type claudeResponse struct {
	SessionID string          `json:"session_id"`
	IsError   bool            `json:"is_error"`
	Result    json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeCLI creates a CLI-backed provider. pm is optional.
func NewClaudeCLI(cfg Config, pm *process.Manager, logger *zap.Logger) *ClaudeCLI {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	name := cfg.Name
	if name == "" {
		name = TypeClaudeCLI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaudeCLI{
		name:    name,
		command: command,
		model:   cfg.Model,
		workDir: workDir,
		procMgr: pm,
		logger:  logger,
	}
}

// Name returns the configured provider name.
func (c *ClaudeCLI) Name() string { return c.name }

// Complete runs the CLI in print mode. Temperature is not supported by the
// CLI and is ignored.
func (c *ClaudeCLI) Complete(ctx context.Context, system, user string, _ float64) (string, error) {
	cmd := process.Command(ctx, c.workDir, c.command, c.buildArgs(system, user)...)

	res, err := process.Run(cmd, c.procMgr)
	if err != nil {
		c.logger.Debug("claude cli failed", zap.String("provider", c.name), zap.ByteString("stderr", res.Stderr))
		return "", fmt.Errorf("claude command failed: %w", err)
	}

	text, err := parseClaudeResponse(res.Stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, res.Stderr)
	}
	return text, nil
}

func (c *ClaudeCLI) buildArgs(system, user string) []string {
	args := []string{"-p", user, "--output-format", "json"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}
	return args
}

func parseClaudeResponse(data []byte) (string, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var text string
	if err := json.Unmarshal(cr.Result, &text); err != nil {
		var nested claudeContent
		if err := json.Unmarshal(cr.Result, &nested); err != nil {
			return "", fmt.Errorf("unexpected result shape: %w", err)
		}
		for _, item := range nested.Content {
			if item.Type == "text" {
				text += item.Text
			}
		}
	}

	if cr.IsError {
		return "", fmt.Errorf("claude reported error: %s", text)
	}
	return text, nil
}
