// Package models defines the in-memory terminal record.
package models

import (
	"time"

	"github.com/codingwatching/agor/internal/terminal/batch"
	"github.com/codingwatching/agor/internal/terminal/pty"
)

// Terminal is a live terminal session. Records are process-local and never
// persisted; the table of live terminals is owned by the orchestrator.
// The PTY handle is owned exclusively by the Terminal.
type Terminal struct {
	ID          string
	PTY         pty.Handle
	Shell       string
	Cwd         string
	UserID      string // optional owning user
	WorktreeID  string // optional worktree
	Worktree    string // worktree name, empty when none
	SessionName string // multiplexer session, always set
	Identity    string // acting OS identity, empty when unimpersonated
	Cols        uint16
	Rows        uint16
	CreatedAt   time.Time
	Env         map[string]string // resolved per-user environment
	Batcher     *batch.Batcher
}
