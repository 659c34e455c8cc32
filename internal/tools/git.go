package tools

import (
	"context"
	"fmt"
	"strings"
)

// Repo is the version-control surface the git tool drives.
type Repo interface {
	Status(ctx context.Context) (string, error)
	Diff(ctx context.Context) (string, error)
	Log(ctx context.Context, n int) (string, error)
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) (string, error)
}

// Git exposes a restricted set of git operations.
func Git(repo Repo) Tool {
	return Func{
		ToolName: "git",
		Desc:     `git operations. args: {"op": "status|diff|log|add|commit", "message": "for commit"}`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			op := strings.ToLower(strings.TrimSpace(args["op"]))
			switch op {
			case "status", "":
				return repo.Status(ctx)
			case "diff":
				return repo.Diff(ctx)
			case "log":
				return repo.Log(ctx, 10)
			case "add":
				if err := repo.AddAll(ctx); err != nil {
					return "", err
				}
				return "staged all changes", nil
			case "commit":
				msg := strings.TrimSpace(args["message"])
				if msg == "" {
					msg = "dweebuild: agent commit"
				}
				return repo.Commit(ctx, msg)
			default:
				return "", fmt.Errorf("unsupported git op %q", op)
			}
		},
	}
}
