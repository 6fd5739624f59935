package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingwatching/agor/internal/common/logger"
)

func TestCompose_BaselinePlusUserEnv(t *testing.T) {
	c := NewComposer(t.TempDir(), logger.Default())

	env := c.Compose(map[string]string{"EDITOR": "vim"})
	assert.Contains(t, env, "TERM=xterm-256color")
	assert.Contains(t, env, "COLORTERM=truecolor")
	assert.Contains(t, env, "EDITOR=vim")
}

func TestCompose_StripsReservedKeys(t *testing.T) {
	c := NewComposer(t.TempDir(), logger.Default())

	env := c.Compose(map[string]string{
		"ZELLIJ":              "0",
		"ZELLIJ_SESSION_NAME": "sneaky",
		"TMUX":                "/tmp/tmux-1000/default,1,0",
		"PWD":                 "/elsewhere",
		"SHELL":               "/bin/evil",
		"GOOD":                "kept",
	})

	joined := ""
	for _, kv := range env {
		joined += kv + "\n"
	}
	assert.NotContains(t, joined, "ZELLIJ")
	assert.NotContains(t, joined, "TMUX")
	assert.NotContains(t, joined, "PWD=")
	assert.NotContains(t, joined, "SHELL=")
	assert.Contains(t, env, "GOOD=kept")
}

func TestCompose_UserOverridesBaseline(t *testing.T) {
	c := NewComposer(t.TempDir(), logger.Default())

	env := c.Compose(map[string]string{"TERM": "screen-256color"})
	assert.Contains(t, env, "TERM=screen-256color")
	assert.NotContains(t, env, "TERM=xterm-256color")
}

func TestWriteUserFile_WritesOnlyUserVars(t *testing.T) {
	dir := t.TempDir()
	c := NewComposer(dir, logger.Default())

	path, err := c.WriteUserFile("user-1", map[string]string{
		"API_KEY": "it's secret",
		"EDITOR":  "vim",
	}, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "user-1.sh"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "export API_KEY='it'\\''s secret'\nexport EDITOR='vim'\n", string(content))
	// The baseline must never leak into the sourceable file.
	assert.NotContains(t, string(content), "TERM")
}

func TestWriteUserFile_EmptyEnvWritesNothing(t *testing.T) {
	dir := t.TempDir()
	c := NewComposer(dir, logger.Default())

	path, err := c.WriteUserFile("user-2", nil, "")
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteUserFile_ReownFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	c := NewComposer(dir, logger.Default()).WithChown(func(path string, uid, gid int) error {
		return os.ErrPermission
	})

	// The lookup of the identity itself fails for a nonexistent user, which
	// exercises the same non-fatal path.
	path, err := c.WriteUserFile("user-3", map[string]string{"A": "b"}, "no-such-user-xyz")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestComposeWithBase_StripsDeniedInheritedKeys(t *testing.T) {
	c := NewComposer(t.TempDir(), logger.Default())

	base := []string{
		"PATH=/usr/bin",
		"ZELLIJ=0",
		"ZELLIJ_SESSION_NAME=outer",
		"ZELLIJ_PANE_ID=3",
		"TMUX=/tmp/tmux-1000/default,1,0",
		"PWD=/elsewhere",
		"HOME=/root",
	}
	env := c.ComposeWithBase(base, map[string]string{"EDITOR": "vim"})

	joined := ""
	for _, kv := range env {
		joined += kv + "\n"
	}
	assert.NotContains(t, joined, "ZELLIJ")
	assert.NotContains(t, joined, "TMUX=")
	assert.NotContains(t, joined, "PWD=")
	assert.Contains(t, env, "PATH=/usr/bin")
	assert.Contains(t, env, "HOME=/root")
	assert.Contains(t, env, "EDITOR=vim")
	assert.Contains(t, env, "TERM=xterm-256color")
}

func TestComposeWithBase_ComposedEntriesWinOverInherited(t *testing.T) {
	c := NewComposer(t.TempDir(), logger.Default())

	env := c.ComposeWithBase([]string{"TERM=dumb"}, nil)

	// exec.Cmd resolves duplicate keys to the last entry, so the composed
	// TERM must come after the inherited one.
	last := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, "TERM=") {
			last = kv
		}
	}
	assert.Equal(t, "TERM=xterm-256color", last)
}
