// Package dto defines request and response shapes for the terminal API.
package dto

import "time"

// CreateTerminalRequest is the payload for terminal creation. All fields
// are optional.
type CreateTerminalRequest struct {
	Cwd        string `json:"cwd,omitempty"`
	Shell      string `json:"shell,omitempty"`
	Cols       uint16 `json:"cols,omitempty"`
	Rows       uint16 `json:"rows,omitempty"`
	UserID     string `json:"userId,omitempty"`
	WorktreeID string `json:"worktreeId,omitempty"`
}

// CreateTerminalResponse reports the outcome of a successful create.
type CreateTerminalResponse struct {
	TerminalID             string `json:"terminalId"`
	ResolvedCwd            string `json:"resolvedCwd"`
	MultiplexerSessionName string `json:"multiplexerSessionName"`
	ReusedExistingSession  bool   `json:"reusedExistingSession"`
	WorktreeName           string `json:"worktreeName,omitempty"`
}

// GetTerminalResponse describes one live terminal.
type GetTerminalResponse struct {
	TerminalID string `json:"terminalId"`
	Cwd        string `json:"cwd"`
	Alive      bool   `json:"alive"`
}

// TerminalSummary is one entry in a find listing.
type TerminalSummary struct {
	TerminalID string    `json:"terminalId"`
	Cwd        string    `json:"cwd"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FindTerminalsResponse wraps a find listing.
type FindTerminalsResponse struct {
	Terminals []TerminalSummary `json:"terminals"`
	Total     int               `json:"total"`
}

// PatchTerminalRequest carries raw input bytes and/or a resize. Input is
// raw keyboard data written straight to the PTY, not a shell command.
type PatchTerminalRequest struct {
	Input  []byte         `json:"input,omitempty"`
	Resize *ResizePayload `json:"resize,omitempty"`
}

// ResizePayload is the requested terminal dimensions.
type ResizePayload struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// DataEvent is pushed to the transport for each batched output chunk.
type DataEvent struct {
	TerminalID string `json:"terminalId"`
	Data       []byte `json:"data"` // base64 in JSON
}

// ExitEvent is pushed to the transport when a terminal's process exits.
type ExitEvent struct {
	TerminalID string `json:"terminalId"`
	ExitCode   int    `json:"exitCode"`
}
