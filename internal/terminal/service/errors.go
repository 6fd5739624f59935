package service

import "errors"

var (
	// ErrTerminalNotFound is returned when the terminal id is unknown.
	ErrTerminalNotFound = errors.New("terminal not found")

	// ErrWorktreeNotFound is returned when the requested worktree is not
	// registered.
	ErrWorktreeNotFound = errors.New("worktree not found")

	// ErrSpawnFailed is returned when PTY allocation fails; the terminal
	// is never registered.
	ErrSpawnFailed = errors.New("failed to spawn terminal PTY")
)
