package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingwatching/agor/internal/common/config"
)

func TestConfigUserDirectory(t *testing.T) {
	dir := newConfigUserDirectory(map[string]config.UserConfig{
		"user-alice": {OSUser: "alice", Env: map[string]string{"EDITOR": "vim"}},
		"user-bob":   {},
	})
	ctx := context.Background()

	mapped, err := dir.MappedOSUser(ctx, "user-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", mapped)

	mapped, err = dir.MappedOSUser(ctx, "user-bob")
	require.NoError(t, err)
	assert.Empty(t, mapped)

	// Unknown users run without impersonation rather than failing.
	mapped, err = dir.MappedOSUser(ctx, "user-unknown")
	require.NoError(t, err)
	assert.Empty(t, mapped)

	env, err := dir.CustomEnv(ctx, "user-alice")
	require.NoError(t, err)
	assert.Equal(t, "vim", env["EDITOR"])
}

func TestConfigWorktreeResolver(t *testing.T) {
	resolver := newConfigWorktreeResolver(map[string]config.WorktreeEntry{
		"wt-a": {Name: "feature-a", Path: "/srv/repos/feature-a"},
		"wt-b": {Path: "/srv/repos/b"},
	})
	ctx := context.Background()

	wt, err := resolver.Get(ctx, "wt-a")
	require.NoError(t, err)
	assert.Equal(t, "feature-a", wt.Name)
	assert.Equal(t, "/srv/repos/feature-a", wt.Path)

	// A registry entry without a name falls back to its id.
	wt, err = resolver.Get(ctx, "wt-b")
	require.NoError(t, err)
	assert.Equal(t, "wt-b", wt.Name)

	_, err = resolver.Get(ctx, "wt-missing")
	assert.Error(t, err)
}
