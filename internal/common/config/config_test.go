package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "agor", cfg.Terminal.SessionPrefix)
	assert.Equal(t, "main", cfg.Terminal.DefaultTab)
	assert.Equal(t, 8, cfg.Terminal.FlushIntervalMs)
	assert.Equal(t, 32*1024, cfg.Terminal.MaxBufferBytes)
	assert.Equal(t, 5, cfg.Terminal.CommandTimeout)
	assert.Equal(t, 5, cfg.Terminal.CacheTTL)
	assert.Equal(t, ImpersonationNever, cfg.Impersonation.ParsedMode())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
impersonation:
  mode: mapped
terminal:
  sessionPrefix: dev
worktree:
  linkRoot: /srv/home
  registry:
    wt-a:
      name: feature-a
      path: /srv/repos/feature-a
users:
  user-alice:
    osUser: alice
    env:
      EDITOR: vim
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ImpersonationMapped, cfg.Impersonation.ParsedMode())
	assert.Equal(t, "dev", cfg.Terminal.SessionPrefix)
	assert.Equal(t, "/srv/home", cfg.Worktree.LinkRoot)
	assert.Equal(t, "feature-a", cfg.Worktree.Registry["wt-a"].Name)
	assert.Equal(t, "alice", cfg.Users["user-alice"].OSUser)
	assert.Equal(t, "vim", cfg.Users["user-alice"].Env["EDITOR"])
}

func TestValidateRejectsAlwaysWithoutFallback(t *testing.T) {
	dir := t.TempDir()
	yaml := `
impersonation:
  mode: always
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := LoadWithPath(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallbackUser")
}

func TestValidateRejectsUnknownImpersonationMode(t *testing.T) {
	dir := t.TempDir()
	yaml := `
impersonation:
  mode: sometimes
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := LoadWithPath(dir)
	require.Error(t, err)
}
