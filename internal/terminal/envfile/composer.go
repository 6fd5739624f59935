// Package envfile composes per-user terminal environments and writes the
// sourceable env file used inside multiplexer tabs.
package envfile

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/shellquote"
)

// baseline is the terminal default environment applied to every PTY.
var baseline = map[string]string{
	"TERM":      "xterm-256color",
	"COLORTERM": "truecolor",
	"LANG":      "en_US.UTF-8",
}

// denied lists variables that must never be overridden by user config:
// working directory and shell state belong to the spawned shell, and the
// multiplexer markers would make zellij think it is already running inside
// a session (nested-session refusal).
var denied = map[string]bool{
	"PWD":                 true,
	"OLDPWD":              true,
	"SHELL":               true,
	"SHLVL":               true,
	"ZELLIJ":              true,
	"ZELLIJ_SESSION_NAME": true,
	"ZELLIJ_PANE_ID":      true,
	"TMUX":                true,
}

// Composer builds PTY process environments and per-user env files.
type Composer struct {
	dir    string
	logger *logger.Logger

	// chown hook, split out for tests (os.Chown needs root).
	chown func(path string, uid, gid int) error
}

// NewComposer creates a Composer writing env files under dir. A leading ~
// in dir is expanded against the current user's home.
func NewComposer(dir string, log *logger.Logger) *Composer {
	if strings.HasPrefix(dir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return &Composer{
		dir:    dir,
		logger: log.WithFields(zap.String("component", "env-composer")),
		chown:  os.Chown,
	}
}

// WithChown replaces the chown hook. Used by tests.
func (c *Composer) WithChown(fn func(path string, uid, gid int) error) *Composer {
	c.chown = fn
	return c
}

// ComposeMap returns the full terminal environment as a map: the baseline
// terminal defaults plus the user's custom variables, with deny-listed
// keys stripped.
func (c *Composer) ComposeMap(userEnv map[string]string) map[string]string {
	merged := make(map[string]string, len(baseline)+len(userEnv))
	for k, v := range baseline {
		merged[k] = v
	}
	for k, v := range userEnv {
		if denied[k] {
			c.logger.Debug("dropping reserved env key", zap.String("key", k))
			continue
		}
		merged[k] = v
	}
	return merged
}

// Compose returns the same environment as ComposeMap, flattened to sorted
// KEY=VALUE pairs suitable for exec.Cmd.Env.
func (c *Composer) Compose(userEnv map[string]string) []string {
	merged := c.ComposeMap(userEnv)

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// ComposeWithBase returns base with deny-listed keys stripped, followed by
// the composed terminal environment. Non-impersonated spawns inherit the
// orchestrator's own environment, which carries the multiplexer markers
// whenever the service itself runs inside a multiplexer; passing those
// through would make zellij refuse to attach (nested-session refusal).
// The composed entries come last so they win over inherited duplicates.
func (c *Composer) ComposeWithBase(base []string, userEnv map[string]string) []string {
	out := make([]string, 0, len(base)+len(baseline)+len(userEnv))
	for _, kv := range base {
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if denied[key] {
			c.logger.Debug("dropping reserved key from inherited env", zap.String("key", key))
			continue
		}
		out = append(out, kv)
	}
	return append(out, c.Compose(userEnv)...)
}

// WriteUserFile writes the user-custom variables (only those — never the
// composed baseline) to a restrictively-permissioned script file that a
// freshly su'd shell can source, since it does not inherit the spawning
// process's environment. When identity is non-empty the file is re-owned
// to that identity; a re-own failure is logged and non-fatal.
//
// Returns the file path, or "" when the user has no custom variables.
func (c *Composer) WriteUserFile(userID string, userEnv map[string]string, identity string) (string, error) {
	filtered := make(map[string]string, len(userEnv))
	for k, v := range userEnv {
		if !denied[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create env file dir: %w", err)
	}

	keys := make([]string, 0, len(filtered))
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString("export ")
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(shellquote.Single(filtered[k]))
		sb.WriteByte('\n')
	}

	path := filepath.Join(c.dir, userID+".sh")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write env file: %w", err)
	}

	if identity != "" {
		if err := c.reown(path, identity); err != nil {
			c.logger.Warn("failed to re-own env file, init commands may fail",
				zap.String("path", path),
				zap.String("identity", identity),
				zap.Error(err))
		}
	}

	return path, nil
}

func (c *Composer) reown(path, identity string) error {
	u, err := user.Lookup(identity)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	return c.chown(path, uid, gid)
}
