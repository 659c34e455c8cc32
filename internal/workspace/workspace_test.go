package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// setupWorkspace creates an initialised workspace in a temporary directory.
func setupWorkspace(t *testing.T, git bool) *Workspace {
	t.Helper()
	if git {
		requireGit(t)
	}
	ws, err := New(Config{Root: filepath.Join(t.TempDir(), "project"), Git: git})
	require.NoError(t, err)
	require.NoError(t, ws.Init(context.Background()))
	return ws
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestInitCreatesLayout(t *testing.T) {
	ws := setupWorkspace(t, false)

	for _, dir := range Layout {
		info, err := os.Stat(filepath.Join(ws.Root(), dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	_, err := os.Stat(filepath.Join(ws.Root(), ".git"))
	assert.True(t, os.IsNotExist(err), "git disabled workspace should have no repository")
}

func TestGitDisabled(t *testing.T) {
	ws := setupWorkspace(t, false)
	ctx := context.Background()

	_, err := ws.Status(ctx)
	assert.ErrorIs(t, err, ErrNoRepository)
	assert.ErrorIs(t, ws.AddAll(ctx), ErrNoRepository)
	_, err = ws.Commit(ctx, "msg")
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestInitCreatesRepository(t *testing.T) {
	ws := setupWorkspace(t, true)

	_, err := os.Stat(filepath.Join(ws.Root(), ".git"))
	require.NoError(t, err)

	// Idempotent on an existing repository.
	require.NoError(t, ws.Init(context.Background()))
}

func TestLogEmptyRepository(t *testing.T) {
	ws := setupWorkspace(t, true)

	log, err := ws.Log(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestCommitFlow(t *testing.T) {
	ws := setupWorkspace(t, true)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(ws.Root(), "src", "app.py"), []byte("print('hi')\n"), 0644))

	status, err := ws.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status, "src/")

	require.NoError(t, ws.AddAll(ctx))
	hash, err := ws.Commit(ctx, "dweebuild: Implement: greeting")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	log, err := ws.Log(ctx, 5)
	require.NoError(t, err)
	assert.Contains(t, log, hash)
	assert.Contains(t, log, "Implement: greeting")

	status, err = ws.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(status))
}

func TestCommitNothingStaged(t *testing.T) {
	ws := setupWorkspace(t, true)
	ctx := context.Background()

	require.NoError(t, ws.AddAll(ctx))
	hash, err := ws.Commit(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestDiffShowsUnstagedChanges(t *testing.T) {
	ws := setupWorkspace(t, true)
	ctx := context.Background()
	file := filepath.Join(ws.Root(), "README.md")

	require.NoError(t, os.WriteFile(file, []byte("one\n"), 0644))
	require.NoError(t, ws.AddAll(ctx))
	_, err := ws.Commit(ctx, "initial")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("two\n"), 0644))
	diff, err := ws.Diff(ctx)
	require.NoError(t, err)
	assert.Contains(t, diff, "-one")
	assert.Contains(t, diff, "+two")
}

func TestGitErrorIncludesOutput(t *testing.T) {
	ws := setupWorkspace(t, true)

	_, err := ws.git(context.Background(), "not-a-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output:")
}
