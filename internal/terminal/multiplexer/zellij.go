// Package multiplexer drives the external zellij process through its CLI.
//
// Zellij owns long-lived sessions and tabs independently of this process;
// everything here is CLI control with bounded timeouts. Commands routed
// through an impersonated identity pass through `su -c` and therefore a
// shell, so every dynamic value is escaped with shellquote before
// interpolation.
package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/shellquote"
)

// ErrTimeout is returned when an external zellij call exceeds its bound.
// A stuck multiplexer must never block the orchestrator: read paths degrade
// to conservative defaults, critical write paths escalate this error.
var ErrTimeout = errors.New("multiplexer command timed out")

// Runner executes one external command and returns its combined output.
// Tests substitute a fake; the default runner shells out.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller invokes zellij verbs, optionally as another OS identity.
type Controller struct {
	timeout time.Duration
	run     Runner
	logger  *logger.Logger
}

// NewController creates a Controller whose every external call is bounded
// by timeout.
func NewController(timeout time.Duration, log *logger.Logger) *Controller {
	return &Controller{
		timeout: timeout,
		run:     defaultRunner,
		logger:  log.WithFields(zap.String("component", "multiplexer")),
	}
}

// WithRunner replaces the command runner. Used by tests.
func (c *Controller) WithRunner(run Runner) *Controller {
	c.run = run
	return c
}

// exec runs a zellij argv, wrapping it in `su - <identity> -c` when an
// identity is given. Context deadline errors are normalized to ErrTimeout.
func (c *Controller) exec(ctx context.Context, identity string, argv ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out []byte
	var err error
	if identity == "" {
		out, err = c.run(ctx, argv[0], argv[1:]...)
	} else {
		// Escape each argument individually; the joined string is evaluated
		// by the login shell su spawns.
		quoted := make([]string, len(argv))
		for i, a := range argv {
			quoted[i] = shellquote.Single(a)
		}
		out, err = c.run(ctx, "su", "-", identity, "-c", strings.Join(quoted, " "))
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			return out, fmt.Errorf("%w: %s", ErrTimeout, argv[0])
		}
		return out, err
	}
	return out, nil
}

// SessionExists reports whether a zellij session with the given name exists
// for the acting identity. A zellij exit failure with no matching output is
// treated as "no sessions".
func (c *Controller) SessionExists(ctx context.Context, session, identity string) (bool, error) {
	out, err := c.exec(ctx, identity, "zellij", "list-sessions", "-s")
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return false, err
		}
		// zellij exits non-zero when no sessions are running.
		return false, nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == session {
			return true, nil
		}
	}
	return false, nil
}

// TabNames returns the ordered tab names of a session.
func (c *Controller) TabNames(ctx context.Context, session, identity string) ([]string, error) {
	out, err := c.exec(ctx, identity, "zellij", "-s", session, "action", "query-tab-names")
	if err != nil {
		return nil, err
	}
	var tabs []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			tabs = append(tabs, name)
		}
	}
	return tabs, nil
}

// NewTab creates a tab named name in the session, starting in cwd.
func (c *Controller) NewTab(ctx context.Context, session, identity, name, cwd string) error {
	argv := []string{"zellij", "-s", session, "action", "new-tab", "--name", name}
	if cwd != "" {
		argv = append(argv, "--cwd", cwd)
	}
	_, err := c.exec(ctx, identity, argv...)
	return err
}

// RenameTab renames the currently focused tab of the session.
func (c *Controller) RenameTab(ctx context.Context, session, identity, name string) error {
	_, err := c.exec(ctx, identity, "zellij", "-s", session, "action", "rename-tab", name)
	return err
}

// GoToTab focuses the tab with the given name.
func (c *Controller) GoToTab(ctx context.Context, session, identity, name string) error {
	_, err := c.exec(ctx, identity, "zellij", "-s", session, "action", "go-to-tab-name", name)
	return err
}

// WriteChars injects literal keystrokes into the focused pane.
func (c *Controller) WriteChars(ctx context.Context, session, identity, text string) error {
	_, err := c.exec(ctx, identity, "zellij", "-s", session, "action", "write-chars", text)
	return err
}

// WriteControl injects a single control byte (e.g. 13 for carriage return)
// into the focused pane.
func (c *Controller) WriteControl(ctx context.Context, session, identity string, code byte) error {
	_, err := c.exec(ctx, identity, "zellij", "-s", session, "action", "write", fmt.Sprintf("%d", code))
	return err
}

// AttachCommand builds the argv that attaches to (or creates) a session,
// suitable for spawning inside a PTY.
//
// When impersonating, environment variables are injected through the su
// command line rather than the process environment: su starts a fresh login
// shell that discards whatever environment the raw spawn call carried.
func (c *Controller) AttachCommand(session, identity string, env map[string]string) []string {
	if identity == "" {
		return []string{"zellij", "attach", "--create", session}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(shellquote.Single(env[k]))
		sb.WriteByte(' ')
	}
	inner := fmt.Sprintf("%szellij attach --create %s", sb.String(), shellquote.Single(session))
	return []string{"su", "-", identity, "-c", inner}
}
