package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside the project root.
var ErrPathEscape = errors.New("path escapes project root")

const (
	maxReadBytes   = 64 << 10
	maxGrepMatches = 200
)

// Root resolves agent-supplied paths against a project directory.
type Root struct {
	dir string
}

// NewRoot creates a Root for dir. dir is made absolute.
func NewRoot(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	return Root{dir: abs}, nil
}

// Dir returns the absolute root directory.
func (r Root) Dir() string { return r.dir }

// Resolve joins p onto the root and rejects results outside it.
func (r Root) Resolve(p string) (string, error) {
	if p == "" {
		p = "."
	}
	var full string
	if filepath.IsAbs(p) {
		full = filepath.Clean(p)
	} else {
		full = filepath.Join(r.dir, p)
	}
	rel, err := filepath.Rel(r.dir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", p, ErrPathEscape)
	}
	return full, nil
}

// Rel returns full relative to the root, for display.
func (r Root) Rel(full string) string {
	rel, err := filepath.Rel(r.dir, full)
	if err != nil {
		return full
	}
	return rel
}

// FileWrite writes content to a file under the root, creating parent directories.
func FileWrite(root Root) Tool {
	return Func{
		ToolName: "file_write",
		Desc:     `write a file. args: {"filepath": "relative/path", "content": "..."}`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			p, err := requireArg(args, "filepath")
			if err != nil {
				return "", err
			}
			full, err := root.Resolve(p)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", fmt.Errorf("create parent directories: %w", err)
			}
			if err := os.WriteFile(full, []byte(args["content"]), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", p, err)
			}
			return fmt.Sprintf("Successfully wrote to %s", root.Rel(full)), nil
		},
	}
}

// FileRead returns a file's contents, truncated to 64KiB.
func FileRead(root Root) Tool {
	return Func{
		ToolName: "file_read",
		Desc:     `read a file. args: {"filepath": "relative/path"}`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			p, err := requireArg(args, "filepath")
			if err != nil {
				return "", err
			}
			full, err := root.Resolve(p)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", p, err)
			}
			if len(data) > maxReadBytes {
				return string(data[:maxReadBytes]) + "\n... (truncated)", nil
			}
			return string(data), nil
		},
	}
}

// ListDir lists a directory; subdirectories get a trailing slash.
func ListDir(root Root) Tool {
	return Func{
		ToolName: "list_dir",
		Desc:     `list a directory. args: {"path": "relative/dir"} (default ".")`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			full, err := root.Resolve(args["path"])
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return "", fmt.Errorf("list %s: %w", root.Rel(full), err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				n := e.Name()
				if e.IsDir() {
					n += "/"
				}
				names = append(names, n)
			}
			sort.Strings(names)
			if len(names) == 0 {
				return "(empty)", nil
			}
			return strings.Join(names, "\n"), nil
		},
	}
}

// Grep searches files under a path for a regular expression and returns
// "file:line: text" matches. Hidden directories are skipped.
func Grep(root Root) Tool {
	return Func{
		ToolName: "grep",
		Desc:     `search files for a regexp. args: {"pattern": "regexp", "path": "relative/dir"}`,
		Fn: func(ctx context.Context, args map[string]string) (string, error) {
			pattern, err := requireArg(args, "pattern")
			if err != nil {
				return "", err
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return "", fmt.Errorf("bad pattern: %w", err)
			}
			start, err := root.Resolve(args["path"])
			if err != nil {
				return "", err
			}

			var matches []string
			walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() {
					if path != start && strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				found, err := grepFile(path, re, maxGrepMatches-len(matches))
				if err != nil {
					return nil
				}
				for _, m := range found {
					matches = append(matches, root.Rel(path)+":"+m)
				}
				if len(matches) >= maxGrepMatches {
					return fs.SkipAll
				}
				return nil
			})
			if walkErr != nil {
				return "", walkErr
			}
			if len(matches) == 0 {
				return "no matches", nil
			}
			return strings.Join(matches, "\n"), nil
		},
	}
}

func grepFile(path string, re *regexp.Regexp, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan() && len(out) < limit; n++ {
		if re.MatchString(sc.Text()) {
			out = append(out, fmt.Sprintf("%d: %s", n, strings.TrimSpace(sc.Text())))
		}
	}
	return out, sc.Err()
}
