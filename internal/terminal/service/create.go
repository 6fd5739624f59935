package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/codingwatching/agor/internal/common/errors"
	"github.com/codingwatching/agor/internal/terminal/batch"
	"github.com/codingwatching/agor/internal/terminal/dto"
	"github.com/codingwatching/agor/internal/terminal/models"
	"github.com/codingwatching/agor/internal/terminal/pty"
	"github.com/codingwatching/agor/internal/terminal/shellquote"
)

// tabAction classifies a create request against the observed multiplexer
// state.
type tabAction int

const (
	// actionFirstSession: the identity has no session yet; attaching will
	// create one whose initial tab we rename.
	actionFirstSession tabAction = iota
	// actionNewTab: the session exists but has no tab for this worktree.
	actionNewTab
	// actionReuseTab: the session already has the tab; switch to it.
	actionReuseTab
)

// carriageReturn terminates injected init command sequences.
const carriageReturn = 13

// Create provisions a terminal: resolves the acting identity, reconciles
// the multiplexer session/tab for the (identity, worktree) pair, spawns a
// PTY attached to the session, waits for readiness and injects init
// commands.
//
// Two concurrent Create calls for the same identity may both observe "no
// session" and race on first-session creation. The window is accepted:
// zellij attach --create is idempotent for the session itself, and the
// per-worktree tab invariant is restored by the rename/new-tab action.
// Serializing creates per identity would close it at a concurrency cost.
func (s *Service) Create(ctx context.Context, req *dto.CreateTerminalRequest) (*dto.CreateTerminalResponse, error) {
	// Step 1: acting identity. Failure here is a configuration error; no
	// terminal is registered.
	mapped := ""
	if req.UserID != "" && s.deps.Users != nil {
		var err error
		mapped, err = s.deps.Users.MappedOSUser(ctx, req.UserID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to look up user identity mapping")
		}
	}
	identity, err := s.deps.Identity.Resolve(mapped)
	if err != nil {
		return nil, apperrors.ValidationError("impersonation", err.Error())
	}

	// Step 2: working directory.
	var wt *Worktree
	if req.WorktreeID != "" {
		wt, err = s.deps.Worktrees.Get(ctx, req.WorktreeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrWorktreeNotFound, req.WorktreeID)
		}
	}
	cwd, home := s.resolveCwd(req.Cwd, wt, identity)

	// Step 3: session and tab naming — one shared session per identity,
	// one tab per worktree.
	session := s.sessionName(identity)
	tab := s.cfg.DefaultTab
	worktreeName := ""
	if wt != nil {
		tab = wt.Name
		worktreeName = wt.Name
	}

	// Step 4: classify against observed multiplexer state.
	action := actionFirstSession
	sessionExists := s.deps.Cache.SessionExists(ctx, session, identity)
	if sessionExists {
		action = actionNewTab
		for _, existing := range s.deps.Cache.Tabs(ctx, session, identity) {
			if existing == tab {
				action = actionReuseTab
				break
			}
		}
	}

	// Step 5: environment.
	userEnv := map[string]string{}
	if req.UserID != "" && s.deps.Users != nil {
		userEnv, err = s.deps.Users.CustomEnv(ctx, req.UserID)
		if err != nil {
			s.logger.WithUserID(req.UserID).Warn("failed to load user env, continuing without",
				zap.Error(err))
			userEnv = map[string]string{}
		}
	}
	envFile := ""
	if req.UserID != "" {
		envFile, err = s.deps.Env.WriteUserFile(req.UserID, userEnv, identity)
		if err != nil {
			// Init commands that source the file will be skipped; the
			// terminal itself is still usable.
			s.logger.WithUserID(req.UserID).Warn("failed to write user env file",
				zap.Error(err))
			envFile = ""
		}
	}

	// Step 6: spawn the PTY attached to attach-or-create. When
	// impersonating, the environment rides the su command line; a raw
	// spawn env would be discarded by the fresh login shell.
	cols, rows := req.Cols, req.Rows
	if cols == 0 {
		cols = uint16(s.cfg.DefaultCols)
	}
	if rows == 0 {
		rows = uint16(s.cfg.DefaultRows)
	}

	command := s.deps.Mux.AttachCommand(session, identity, s.deps.Env.ComposeMap(userEnv))
	spawnEnv := []string(nil)
	if identity == "" {
		// The inherited environment is filtered through the same deny list
		// as user variables, so multiplexer markers from an outer session
		// never reach the PTY.
		spawnEnv = s.deps.Env.ComposeWithBase(os.Environ(), userEnv)
	}
	handle, err := s.deps.Spawner.Spawn(command, pty.SpawnOptions{
		Dir:  cwd,
		Env:  spawnEnv,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	// Step 7: register the terminal and wire its batcher before pumping
	// PTY output, so no early bytes are lost.
	id := uuid.New().String()
	ready := make(chan struct{})
	var readyOnce sync.Once

	term := &trackedTerminal{
		Terminal: &models.Terminal{
			ID:          id,
			PTY:         handle,
			Shell:       req.Shell,
			Cwd:         cwd,
			UserID:      req.UserID,
			WorktreeID:  req.WorktreeID,
			Worktree:    worktreeName,
			SessionName: session,
			Identity:    identity,
			Cols:        cols,
			Rows:        rows,
			CreatedAt:   time.Now().UTC(),
			Env:         userEnv,
		},
		exited: make(chan struct{}),
	}
	term.Batcher = batch.New(s.cfg.FlushInterval(), s.cfg.MaxBufferBytes, func(data []byte) {
		readyOnce.Do(func() { close(ready) })
		s.deps.Emitter.EmitData(id, data)
	})
	s.register(term)

	go s.pumpOutput(term)
	go s.waitExit(term)

	s.logger.WithTerminalID(id).Info("terminal spawned",
		zap.String("session", session),
		zap.String("tab", tab),
		zap.String("identity", identity),
		zap.String("cwd", cwd))

	// Step 8: readiness — first batched output, bounded by a hard ceiling.
	select {
	case <-ready:
	case <-time.After(s.cfg.ReadyTimeoutDuration()):
		s.logger.WithTerminalID(id).Warn("terminal produced no output before readiness ceiling, continuing")
	case <-term.exited:
		s.teardown(term)
		s.unregister(id)
		return nil, fmt.Errorf("%w: multiplexer exited before becoming ready", ErrSpawnFailed)
	}

	// Step 9: exactly one tab action, then synchronous cache invalidation
	// so the next read observes the mutation.
	if err := s.applyTabAction(ctx, action, session, identity, tab, cwd); err != nil {
		s.teardown(term)
		s.unregister(id)
		return nil, apperrors.Wrap(err, "failed to reconcile multiplexer tab")
	}
	s.deps.Cache.Invalidate(session, identity)

	// Step 10: init commands injected as literal keystrokes.
	if err := s.runInitCommands(ctx, action, session, identity, envFile, cwd, home); err != nil {
		s.teardown(term)
		s.unregister(id)
		return nil, apperrors.Wrap(err, "failed to run terminal init commands")
	}

	return &dto.CreateTerminalResponse{
		TerminalID:             id,
		ResolvedCwd:            cwd,
		MultiplexerSessionName: session,
		ReusedExistingSession:  sessionExists,
		WorktreeName:           worktreeName,
	}, nil
}

// resolveCwd picks the terminal's working directory and reports the
// identity's home directory. Worktrees prefer the per-identity link path
// when it exists on disk, falling back to the canonical path.
func (s *Service) resolveCwd(requested string, wt *Worktree, identity string) (cwd, home string) {
	home, err := s.homeLookup(identity)
	if err != nil {
		s.logger.Debug("failed to resolve home directory",
			zap.String("identity", identity),
			zap.Error(err))
	}

	if wt != nil {
		if identity != "" {
			link := filepath.Join(s.wcfg.LinkRoot, identity, "worktrees", wt.Name)
			if _, statErr := s.stat(link); statErr == nil {
				return link, home
			}
		}
		return wt.Path, home
	}

	if requested != "" {
		return requested, home
	}
	return home, home
}

// sessionName derives the shared multiplexer session for an identity.
func (s *Service) sessionName(identity string) string {
	if identity == "" {
		return s.cfg.SessionPrefix + "-host"
	}
	return s.cfg.SessionPrefix + "-" + identity
}

// applyTabAction performs the single tab mutation chosen during
// classification. All three verbs are critical: a failure fails the whole
// create.
func (s *Service) applyTabAction(ctx context.Context, action tabAction, session, identity, tab, cwd string) error {
	switch action {
	case actionFirstSession:
		// Attaching created the session with a default-named tab; claim it
		// for this worktree.
		return s.deps.Mux.RenameTab(ctx, session, identity, tab)
	case actionNewTab:
		return s.deps.Mux.NewTab(ctx, session, identity, tab, cwd)
	case actionReuseTab:
		return s.deps.Mux.GoToTab(ctx, session, identity, tab)
	default:
		return fmt.Errorf("unknown tab action %d", action)
	}
}

// runInitCommands sources the user env file and changes to the resolved
// directory inside the tab. The sequence is injected as literal keystrokes
// terminated by a carriage return; paths are escaped because the receiving
// shell will evaluate the line.
func (s *Service) runInitCommands(ctx context.Context, action tabAction, session, identity, envFile, cwd, home string) error {
	var parts []string
	if envFile != "" {
		parts = append(parts, "source "+shellquote.Single(envFile))
	}

	// New and switched tabs always cd; a brand-new session only needs it
	// when the target differs from the login default.
	needCd := action != actionFirstSession || (cwd != "" && cwd != home)
	if needCd && cwd != "" {
		parts = append(parts, "cd "+shellquote.Single(cwd))
	}

	if len(parts) == 0 {
		return nil
	}

	line := strings.Join(parts, " && ")
	if err := s.deps.Mux.WriteChars(ctx, session, identity, line); err != nil {
		return err
	}
	return s.deps.Mux.WriteControl(ctx, session, identity, carriageReturn)
}
