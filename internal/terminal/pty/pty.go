// Package pty abstracts pseudo-terminal allocation for terminal sessions.
package pty

import (
	"io"
	"os"
)

// Handle abstracts a spawned PTY process. The terminal record owns its
// Handle exclusively; no other component writes to it.
type Handle interface {
	io.ReadWriteCloser
	// Resize changes the PTY window size.
	Resize(cols, rows uint16) error
	// Signal delivers sig to the spawned process.
	Signal(sig os.Signal) error
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
}

// SpawnOptions carries the spawn-time parameters for a PTY process.
type SpawnOptions struct {
	Dir  string
	Env  []string // full environment, nil means inherit
	Cols uint16
	Rows uint16
}

// Spawner creates PTY-attached processes. The production implementation
// wraps creack/pty; tests substitute fakes.
type Spawner interface {
	Spawn(command []string, opts SpawnOptions) (Handle, error)
}
