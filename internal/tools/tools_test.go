package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot(t *testing.T) Root {
	t.Helper()
	root, err := NewRoot(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestRoot_Resolve(t *testing.T) {
	root := testRoot(t)

	full, err := root.Resolve("src/main.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root.Dir(), "src", "main.py"), full)

	full, err = root.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, root.Dir(), full)

	for _, bad := range []string{"../outside", "src/../../etc/passwd", "/etc/passwd"} {
		_, err := root.Resolve(bad)
		assert.ErrorIs(t, err, ErrPathEscape, bad)
	}

	// dotted names that are not parent references stay inside
	_, err = root.Resolve("..hidden")
	assert.NoError(t, err)
}

func TestFileWriteAndRead(t *testing.T) {
	root := testRoot(t)
	ctx := context.Background()

	out, err := FileWrite(root).Execute(ctx, map[string]string{"filepath": "src/app/main.py", "content": "print('hi')\n"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully wrote to src/app/main.py", out)

	got, err := FileRead(root).Execute(ctx, map[string]string{"filepath": "src/app/main.py"})
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", got)

	_, err = FileWrite(root).Execute(ctx, map[string]string{"filepath": "../evil.py", "content": "x"})
	assert.ErrorIs(t, err, ErrPathEscape)

	_, err = FileWrite(root).Execute(ctx, map[string]string{"content": "x"})
	assert.ErrorContains(t, err, "filepath")
}

func TestListDir(t *testing.T) {
	root := testRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root.Dir(), "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), "README.md"), nil, 0o644))

	out, err := ListDir(root).Execute(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "README.md\nsrc/", out)

	out, err = ListDir(root).Execute(context.Background(), map[string]string{"path": "src"})
	require.NoError(t, err)
	assert.Equal(t, "(empty)", out)
}

func TestGrep(t *testing.T) {
	root := testRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root.Dir(), "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root.Dir(), ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), "src", "a.py"), []byte("def main():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root.Dir(), ".git", "HEAD"), []byte("def main\n"), 0o644))

	out, err := Grep(root).Execute(context.Background(), map[string]string{"pattern": `^def \w+`})
	require.NoError(t, err)
	assert.Equal(t, "src/a.py:1: def main():", out)

	out, err = Grep(root).Execute(context.Background(), map[string]string{"pattern": "nothing-here"})
	require.NoError(t, err)
	assert.Equal(t, "no matches", out)

	_, err = Grep(root).Execute(context.Background(), map[string]string{"pattern": "("})
	assert.Error(t, err)
}

func TestShellExec(t *testing.T) {
	root := testRoot(t)
	tool := ShellExec(root, nil)

	out, err := tool.Execute(context.Background(), map[string]string{"cmd": "pwd"})
	require.NoError(t, err)
	assert.Equal(t, root.Dir(), strings.TrimSpace(out))

	out, err = tool.Execute(context.Background(), map[string]string{"cmd": "echo nope >&2; exit 2"})
	require.NoError(t, err, "non-zero exit is an observation")
	assert.Equal(t, "ERROR (Exit 2): nope", out)
	assert.True(t, IsErrorResult(out))
}

func TestIsErrorResult(t *testing.T) {
	assert.True(t, IsErrorResult("ERROR (Exit 1): boom"))
	assert.True(t, IsErrorResult("  Error: missing file"))
	assert.False(t, IsErrorResult("Successfully wrote to a.txt"))
	assert.False(t, IsErrorResult("2 errors found"))
	assert.False(t, IsErrorResult(""))
}

func TestRunTests(t *testing.T) {
	root := testRoot(t)

	out, err := RunTests(root, nil, "echo '1 failed, 2 passed'; exit 1").Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "1 failed")

	out, err = RunTests(root, nil, "echo ran").Execute(context.Background(), map[string]string{"target": "tests/test_a.py"})
	require.NoError(t, err)
	assert.Equal(t, "ran tests/test_a.py\n", out)

	_, err = RunTests(root, nil, "echo").Execute(context.Background(), map[string]string{"target": "../x"})
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestCommandTool(t *testing.T) {
	root := testRoot(t)
	tool, err := NewCommandTool("lint", "lint a path", "echo linting {{.path}}", root, nil)
	require.NoError(t, err)

	out, err := tool.Execute(context.Background(), map[string]string{"path": "src"})
	require.NoError(t, err)
	assert.Equal(t, "linting src", out)

	_, err = NewCommandTool("bad", "", "{{.path", root, nil)
	assert.Error(t, err)
}

type fakeRepo struct {
	committed string
	added     bool
}

func (f *fakeRepo) Status(ctx context.Context) (string, error)     { return "clean", nil }
func (f *fakeRepo) Diff(ctx context.Context) (string, error)       { return "", nil }
func (f *fakeRepo) Log(ctx context.Context, n int) (string, error) { return "abc init", nil }
func (f *fakeRepo) AddAll(ctx context.Context) error               { f.added = true; return nil }
func (f *fakeRepo) Commit(ctx context.Context, message string) (string, error) {
	f.committed = message
	return "committed", nil
}

func TestGitTool(t *testing.T) {
	repo := &fakeRepo{}
	tool := Git(repo)
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]string{"op": "status"})
	require.NoError(t, err)
	assert.Equal(t, "clean", out)

	_, err = tool.Execute(ctx, map[string]string{"op": "add"})
	require.NoError(t, err)
	assert.True(t, repo.added)

	_, err = tool.Execute(ctx, map[string]string{"op": "commit"})
	require.NoError(t, err)
	assert.Equal(t, "dweebuild: agent commit", repo.committed)

	_, err = tool.Execute(ctx, map[string]string{"op": "push"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestStandardRegistry(t *testing.T) {
	root := testRoot(t)
	reg, err := Standard(root, Options{
		Repo:   &fakeRepo{},
		Custom: []CustomSpec{{Name: "fmt", Description: "format", Command: "echo fmt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"file_read", "file_write", "fmt", "git", "grep", "list_dir", "run_tests", "shell_exec"}, reg.Names())
	assert.Contains(t, reg.Describe(), "- fmt: format\n")

	sub, err := reg.Subset([]string{"file_write", "shell_exec"})
	require.NoError(t, err)
	assert.Equal(t, []string{"file_write", "shell_exec"}, sub.Names())

	_, err = reg.Subset([]string{"teleport"})
	assert.Error(t, err)

	_, err = Standard(root, Options{Custom: []CustomSpec{{Name: "grep", Command: "grep"}}})
	assert.ErrorContains(t, err, "shadows")
}

func TestFuncTool(t *testing.T) {
	boom := errors.New("boom")
	tool := Func{ToolName: "x", Desc: "d", Fn: func(ctx context.Context, args map[string]string) (string, error) {
		return "", boom
	}}
	_, err := tool.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "x", tool.Name())
}
