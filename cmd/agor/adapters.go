package main

import (
	"context"
	"fmt"

	"github.com/codingwatching/agor/internal/common/config"
	"github.com/codingwatching/agor/internal/terminal/service"
)

// configUserDirectory adapts the static users section of the configuration
// to the orchestrator's UserDirectory interface.
type configUserDirectory struct {
	users map[string]config.UserConfig
}

func newConfigUserDirectory(users map[string]config.UserConfig) *configUserDirectory {
	return &configUserDirectory{users: users}
}

// MappedOSUser returns the user's mapped OS identity, empty when the user
// is unknown or has no mapping. Unknown users are not an error: they simply
// run without impersonation.
func (d *configUserDirectory) MappedOSUser(ctx context.Context, userID string) (string, error) {
	return d.users[userID].OSUser, nil
}

// CustomEnv returns the user's configured environment variables.
func (d *configUserDirectory) CustomEnv(ctx context.Context, userID string) (map[string]string, error) {
	return d.users[userID].Env, nil
}

// configWorktreeResolver adapts the worktree registry section of the
// configuration to the orchestrator's WorktreeResolver interface.
type configWorktreeResolver struct {
	registry map[string]config.WorktreeEntry
}

func newConfigWorktreeResolver(registry map[string]config.WorktreeEntry) *configWorktreeResolver {
	return &configWorktreeResolver{registry: registry}
}

// Get looks up a registered worktree by id.
func (r *configWorktreeResolver) Get(ctx context.Context, worktreeID string) (*service.Worktree, error) {
	entry, ok := r.registry[worktreeID]
	if !ok {
		return nil, fmt.Errorf("worktree %q is not registered", worktreeID)
	}
	name := entry.Name
	if name == "" {
		name = worktreeID
	}
	return &service.Worktree{Name: name, Path: entry.Path}, nil
}
