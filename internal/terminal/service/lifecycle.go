package service

import (
	"context"
	"syscall"

	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/terminal/dto"
)

// pumpOutput reads PTY output and feeds the terminal's batcher until the
// PTY closes. The batcher owns delivery pacing; this loop only moves bytes.
func (s *Service) pumpOutput(term *trackedTerminal) {
	log := s.logger.WithTerminalID(term.ID)
	buf := make([]byte, 32768)
	for {
		n, err := term.PTY.Read(buf)
		if n > 0 {
			term.Batcher.Push(buf[:n])
		}
		if err != nil {
			log.Debug("terminal output read ended", zap.Error(err))
			return
		}
	}
}

// waitExit reaps the PTY process, flushes remaining output and retires the
// terminal record.
func (s *Service) waitExit(term *trackedTerminal) {
	exitCode, err := term.PTY.Wait()
	close(term.exited)

	s.logger.WithTerminalID(term.ID).Info("terminal process exited",
		zap.Int("exit_code", exitCode),
		zap.Error(err))

	// Deliver what the batcher still holds before the record disappears.
	term.Batcher.Flush()
	term.Batcher.Destroy()

	s.unregister(term.ID)
	s.deps.Emitter.EmitExit(term.ID, exitCode)
}

// Patch writes raw input bytes to the PTY and/or resizes it. Input is raw
// keyboard data: it is written verbatim, never escaped.
func (s *Service) Patch(ctx context.Context, id string, req *dto.PatchTerminalRequest) error {
	term, ok := s.lookup(id)
	if !ok {
		return ErrTerminalNotFound
	}
	log := s.logger.WithTerminalID(id)

	if len(req.Input) > 0 {
		if _, err := term.PTY.Write(req.Input); err != nil {
			log.Debug("PTY write failed", zap.Error(err))
			return err
		}
	}

	if req.Resize != nil && req.Resize.Cols > 0 && req.Resize.Rows > 0 {
		if err := term.PTY.Resize(req.Resize.Cols, req.Resize.Rows); err != nil {
			return err
		}
		s.mu.Lock()
		term.Cols = req.Resize.Cols
		term.Rows = req.Resize.Rows
		s.mu.Unlock()
		log.Debug("terminal resized",
			zap.Uint16("cols", req.Resize.Cols),
			zap.Uint16("rows", req.Resize.Rows))
	}

	return nil
}

// Remove tears a terminal down: flush and release the batcher first so no
// buffered output is lost and no timer leaks, then signal the process and
// drop the record.
func (s *Service) Remove(ctx context.Context, id string) error {
	term, ok := s.lookup(id)
	if !ok {
		return ErrTerminalNotFound
	}

	s.teardown(term)
	s.unregister(id)

	s.logger.WithTerminalID(id).Info("terminal removed")
	return nil
}

// Cleanup is the process-wide shutdown hook: best-effort teardown of every
// live terminal. Individual failures are logged and never interrupt the
// sweep; Cleanup itself cannot fail.
func (s *Service) Cleanup() {
	s.mu.Lock()
	terms := make([]*trackedTerminal, 0, len(s.terminals))
	for _, term := range s.terminals {
		terms = append(terms, term)
	}
	s.terminals = make(map[string]*trackedTerminal)
	s.mu.Unlock()

	for _, term := range terms {
		s.teardown(term)
	}

	s.logger.Info("terminal cleanup complete", zap.Int("terminals", len(terms)))
}

// teardown flushes and destroys the batcher, then terminates the PTY. Safe
// to call multiple times and from competing paths.
func (s *Service) teardown(term *trackedTerminal) {
	term.teardownOnce.Do(func() {
		log := s.logger.WithTerminalID(term.ID)
		term.Batcher.Flush()
		term.Batcher.Destroy()

		if err := term.PTY.Signal(syscall.SIGTERM); err != nil {
			log.Debug("failed to signal terminal process", zap.Error(err))
		}
		if err := term.PTY.Close(); err != nil {
			log.Debug("failed to close PTY", zap.Error(err))
		}
	})
}
