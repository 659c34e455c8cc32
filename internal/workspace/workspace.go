// Package workspace prepares the project directory agents work in and
// exposes its git history and file changes.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrNoRepository is returned by git operations on a workspace without git.
var ErrNoRepository = errors.New("workspace has no git repository")

// Workspace is a project root with an optional git repository.
type Workspace struct {
	config Config
	gitMu  sync.Mutex // Serializes git commands to prevent index.lock conflicts
}

// New creates a workspace for cfg. Call Init before use.
func New(cfg Config) (*Workspace, error) {
	if cfg.Root == "" {
		return nil, errors.New("workspace root is required")
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	cfg.Root = abs
	if cfg.AuthorName == "" {
		cfg.AuthorName = "dweebuild"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "dweebuild@localhost"
	}
	return &Workspace{config: cfg}, nil
}

// Root returns the absolute project root.
func (w *Workspace) Root() string { return w.config.Root }

// GitEnabled reports whether git operations are available.
func (w *Workspace) GitEnabled() bool { return w.config.Git }

// Init creates the project layout and, when git is enabled, a repository.
// It is safe to call on an existing workspace.
func (w *Workspace) Init(ctx context.Context) error {
	for _, dir := range append([]string{""}, Layout...) {
		if err := os.MkdirAll(filepath.Join(w.config.Root, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Join(w.config.Root, dir), err)
		}
	}
	if !w.config.Git {
		return nil
	}
	if _, err := os.Stat(filepath.Join(w.config.Root, ".git")); err == nil {
		return nil
	}
	if _, err := w.git(ctx, "init"); err != nil {
		return fmt.Errorf("failed to initialise repository: %w", err)
	}
	return nil
}

// Status returns `git status --short`.
func (w *Workspace) Status(ctx context.Context) (string, error) {
	return w.git(ctx, "status", "--short")
}

// Diff returns the unstaged working tree diff.
func (w *Workspace) Diff(ctx context.Context) (string, error) {
	return w.git(ctx, "diff")
}

// Log returns the last n commits, one per line. A repository without
// commits has an empty log.
func (w *Workspace) Log(ctx context.Context, n int) (string, error) {
	if n <= 0 {
		n = 10
	}
	if !w.hasCommits(ctx) {
		return "", nil
	}
	return w.git(ctx, "log", "--oneline", "-n", strconv.Itoa(n))
}

// AddAll stages every change in the workspace.
func (w *Workspace) AddAll(ctx context.Context) error {
	_, err := w.git(ctx, "add", "-A")
	return err
}

// Commit records the staged changes and returns the short hash of the new
// commit. With nothing staged it returns an empty hash and no error.
func (w *Workspace) Commit(ctx context.Context, message string) (string, error) {
	staged, err := w.git(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(staged) == "" {
		return "", nil
	}
	if _, err := w.git(ctx,
		"-c", "user.name="+w.config.AuthorName,
		"-c", "user.email="+w.config.AuthorEmail,
		"commit", "-m", message); err != nil {
		return "", err
	}
	hash, err := w.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	return strings.TrimSpace(hash), nil
}

func (w *Workspace) hasCommits(ctx context.Context) bool {
	_, err := w.git(ctx, "rev-parse", "--verify", "-q", "HEAD")
	return err == nil
}

// git runs one git command in the workspace root and returns its combined
// output.
func (w *Workspace) git(ctx context.Context, args ...string) (string, error) {
	if !w.config.Git {
		return "", ErrNoRepository
	}
	w.gitMu.Lock()
	defer w.gitMu.Unlock()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = w.config.Root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w (output: %s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
