package tools

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/dweebuild/dweebuild/internal/process"
)

// DefaultTestCommand runs the project's test suite.
const DefaultTestCommand = "pytest"

// ShellExec runs a shell command in the project root. A non-zero exit is an
// observation for the agent, not a tool failure.
func ShellExec(root Root, pm *process.Manager) Tool {
	return Func{
		ToolName: "shell_exec",
		Desc:     `run a shell command in the project root. args: {"cmd": "..."}`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			line, err := requireArg(args, "cmd")
			if err != nil {
				return "", err
			}
			return runShell(ctx, root, pm, line)
		},
	}
}

// RunTests runs the configured test command, optionally narrowed to a
// target. The combined output is returned even when tests fail.
func RunTests(root Root, pm *process.Manager, command string) Tool {
	if strings.TrimSpace(command) == "" {
		command = DefaultTestCommand
	}
	return Func{
		ToolName: "run_tests",
		Desc:     fmt.Sprintf(`run the test suite (%s). args: {"target": "optional path"}`, command),
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			line := command
			if target := strings.TrimSpace(args["target"]); target != "" {
				if _, err := root.Resolve(target); err != nil {
					return "", err
				}
				line += " " + shellQuote(target)
			}
			res, err := process.Run(process.Shell(ctx, root.Dir(), line), pm)
			if err != nil && res.ExitCode < 0 {
				return "", fmt.Errorf("run tests: %w", err)
			}
			return res.Combined(), nil
		},
	}
}

// CommandTool is a tool declared in configuration. Its command is a
// text/template rendered with the call's args, then run through the shell.
type CommandTool struct {
	name string
	desc string
	tmpl *template.Template
	root Root
	pm   *process.Manager
}

// NewCommandTool parses command as a template.
func NewCommandTool(name, description, command string, root Root, pm *process.Manager) (*CommandTool, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(command)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	return &CommandTool{name: name, desc: description, tmpl: tmpl, root: root, pm: pm}, nil
}

func (c *CommandTool) Name() string        { return c.name }
func (c *CommandTool) Description() string { return c.desc }

// Execute renders and runs the command.
func (c *CommandTool) Execute(ctx context.Context, args map[string]string) (string, error) {
	if args == nil {
		args = map[string]string{}
	}
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, args); err != nil {
		return "", fmt.Errorf("render %s: %w", c.name, err)
	}
	return runShell(ctx, c.root, c.pm, buf.String())
}

// IsErrorResult reports whether a tool signalled failure in its result text
// rather than through an error, as shell tools do with "ERROR (Exit N): ...".
func IsErrorResult(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "ERROR") || strings.HasPrefix(s, "Error:")
}

func runShell(ctx context.Context, root Root, pm *process.Manager, line string) (string, error) {
	res, err := process.Run(process.Shell(ctx, root.Dir(), line), pm)
	if err != nil {
		if res.ExitCode < 0 {
			return "", err
		}
		return fmt.Sprintf("ERROR (Exit %d): %s", res.ExitCode, strings.TrimSpace(res.Combined())), nil
	}
	return strings.TrimRight(string(res.Stdout), "\n"), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
