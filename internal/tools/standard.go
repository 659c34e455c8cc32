package tools

import (
	"fmt"

	"github.com/dweebuild/dweebuild/internal/process"
)

// CustomSpec declares a CommandTool.
type CustomSpec struct {
	Name        string
	Description string
	Command     string
}

// Options configure the standard toolbelt.
type Options struct {
	TestCommand string
	Procs       *process.Manager
	Repo        Repo // nil leaves out the git tool
	Custom      []CustomSpec
}

// Standard builds the toolbelt rooted at root.
func Standard(root Root, opts Options) (*Registry, error) {
	r := NewRegistry(
		ShellExec(root, opts.Procs),
		FileWrite(root),
		FileRead(root),
		ListDir(root),
		Grep(root),
		RunTests(root, opts.Procs, opts.TestCommand),
	)
	if opts.Repo != nil {
		r.Register(Git(opts.Repo))
	}
	for _, c := range opts.Custom {
		if _, exists := r.Get(c.Name); exists {
			return nil, fmt.Errorf("custom tool %q shadows a built-in tool", c.Name)
		}
		t, err := NewCommandTool(c.Name, c.Description, c.Command, root, opts.Procs)
		if err != nil {
			return nil, err
		}
		r.Register(t)
	}
	return r, nil
}
