// Package service implements the terminal orchestrator: it owns the table
// of live terminals and drives PTY spawning, multiplexer session and tab
// reconciliation, readiness waiting and teardown.
package service

import (
	"context"
	"os"
	"os/user"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/config"
	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/dto"
	"github.com/codingwatching/agor/internal/terminal/models"
	"github.com/codingwatching/agor/internal/terminal/pty"
)

// UserDirectory resolves per-user impersonation mappings and custom
// environment variables. Implemented by an external collaborator.
type UserDirectory interface {
	// MappedOSUser returns the user's mapped OS identity, empty when the
	// user has no mapping.
	MappedOSUser(ctx context.Context, userID string) (string, error)
	// CustomEnv returns the user's custom environment variables.
	CustomEnv(ctx context.Context, userID string) (map[string]string, error)
}

// Worktree is the resolved view of a registered worktree.
type Worktree struct {
	Name string
	Path string
}

// WorktreeResolver looks up registered worktrees by id.
type WorktreeResolver interface {
	Get(ctx context.Context, worktreeID string) (*Worktree, error)
}

// IdentityResolver picks the acting OS identity for a terminal.
type IdentityResolver interface {
	Resolve(mappedUser string) (string, error)
}

// EnvComposer builds process environments and per-user env files.
type EnvComposer interface {
	Compose(userEnv map[string]string) []string
	ComposeMap(userEnv map[string]string) map[string]string
	ComposeWithBase(base []string, userEnv map[string]string) []string
	WriteUserFile(userID string, userEnv map[string]string, identity string) (string, error)
}

// Multiplexer is the control surface of the external multiplexer.
type Multiplexer interface {
	NewTab(ctx context.Context, session, identity, name, cwd string) error
	RenameTab(ctx context.Context, session, identity, name string) error
	GoToTab(ctx context.Context, session, identity, name string) error
	WriteChars(ctx context.Context, session, identity, text string) error
	WriteControl(ctx context.Context, session, identity string, code byte) error
	AttachCommand(session, identity string, env map[string]string) []string
}

// SessionCache fronts multiplexer introspection queries.
type SessionCache interface {
	SessionExists(ctx context.Context, session, identity string) bool
	Tabs(ctx context.Context, session, identity string) []string
	Invalidate(session, identity string)
}

// Emitter delivers terminal events to the transport collaborator.
type Emitter interface {
	EmitData(terminalID string, data []byte)
	EmitExit(terminalID string, exitCode int)
}

// Dependencies bundles the orchestrator's collaborators.
type Dependencies struct {
	Users     UserDirectory
	Worktrees WorktreeResolver
	Identity  IdentityResolver
	Env       EnvComposer
	Mux       Multiplexer
	Cache     SessionCache
	Spawner   pty.Spawner
	Emitter   Emitter
}

// trackedTerminal pairs the terminal record with its lifecycle state.
type trackedTerminal struct {
	*models.Terminal

	// exited is closed when the PTY process has exited.
	exited chan struct{}

	// teardownOnce guards flush/destroy/signal so remove, cleanup and the
	// exit path do not race.
	teardownOnce sync.Once
}

// Service is the terminal orchestrator. The terminal table is
// constructor-scoped: independent Service instances never share state.
type Service struct {
	cfg  config.TerminalConfig
	wcfg config.WorktreeConfig
	deps Dependencies

	mu        sync.RWMutex
	terminals map[string]*trackedTerminal

	// stat is os.Stat, replaceable in tests for link-path probing.
	stat func(string) (os.FileInfo, error)

	// homeLookup resolves an identity's home directory.
	homeLookup func(identity string) (string, error)

	logger *logger.Logger
}

// NewService creates a terminal orchestrator.
func NewService(cfg *config.Config, deps Dependencies, log *logger.Logger) *Service {
	return &Service{
		cfg:        cfg.Terminal,
		wcfg:       cfg.Worktree,
		deps:       deps,
		terminals:  make(map[string]*trackedTerminal),
		stat:       os.Stat,
		homeLookup: lookupHome,
		logger:     log.WithFields(zap.String("component", "terminal-service")),
	}
}

func lookupHome(identity string) (string, error) {
	if identity == "" {
		return os.UserHomeDir()
	}
	u, err := user.Lookup(identity)
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}

// Get returns one live terminal.
func (s *Service) Get(ctx context.Context, id string) (*dto.GetTerminalResponse, error) {
	term, ok := s.lookup(id)
	if !ok {
		return nil, ErrTerminalNotFound
	}

	alive := true
	select {
	case <-term.exited:
		alive = false
	default:
	}

	return &dto.GetTerminalResponse{
		TerminalID: term.ID,
		Cwd:        term.Cwd,
		Alive:      alive,
	}, nil
}

// Find lists live terminals, oldest first. An optional userID filters to
// one owner.
func (s *Service) Find(ctx context.Context, userID string) []dto.TerminalSummary {
	s.mu.RLock()
	out := make([]dto.TerminalSummary, 0, len(s.terminals))
	for _, term := range s.terminals {
		if userID != "" && term.UserID != userID {
			continue
		}
		out = append(out, dto.TerminalSummary{
			TerminalID: term.ID,
			Cwd:        term.Cwd,
			CreatedAt:  term.CreatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Service) lookup(id string) (*trackedTerminal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term, ok := s.terminals[id]
	return term, ok
}

func (s *Service) register(term *trackedTerminal) {
	s.mu.Lock()
	s.terminals[term.ID] = term
	s.mu.Unlock()
}

func (s *Service) unregister(id string) {
	s.mu.Lock()
	delete(s.terminals, id)
	s.mu.Unlock()
}
