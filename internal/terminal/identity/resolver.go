// Package identity resolves which OS identity a terminal's commands run as.
package identity

import (
	"errors"
	"fmt"
	"os/user"

	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/config"
	"github.com/codingwatching/agor/internal/common/logger"
)

// ErrNoIdentity is returned when the impersonation mode requires an
// identity but none resolves. This is a configuration error: the create
// operation fails and is not retried.
var ErrNoIdentity = errors.New("impersonation required but no OS identity resolves")

// ErrUnknownIdentity is returned when the resolved identity does not exist
// on the host.
var ErrUnknownIdentity = errors.New("resolved OS identity does not exist")

// LookupFunc validates that an OS user exists. Defaults to os/user.Lookup;
// tests substitute a fake.
type LookupFunc func(username string) error

func systemLookup(username string) error {
	_, err := user.Lookup(username)
	return err
}

// Resolver decides the acting OS identity for a terminal given the
// configured impersonation mode, the requesting user's mapped identity and
// the fallback executor identity.
type Resolver struct {
	mode     config.ImpersonationMode
	fallback string
	lookup   LookupFunc
	logger   *logger.Logger
}

// NewResolver creates a Resolver from the impersonation configuration.
func NewResolver(cfg config.ImpersonationConfig, log *logger.Logger) *Resolver {
	return &Resolver{
		mode:     cfg.ParsedMode(),
		fallback: cfg.FallbackUser,
		lookup:   systemLookup,
		logger:   log.WithFields(zap.String("component", "identity-resolver")),
	}
}

// WithLookup replaces the OS user lookup. Used by tests.
func (r *Resolver) WithLookup(lookup LookupFunc) *Resolver {
	r.lookup = lookup
	return r
}

// Resolve returns the identity to run as. An empty return means "run as the
// orchestrator's own identity" (no impersonation). mappedUser is the
// requesting user's mapped OS identity, empty when the user has none.
func (r *Resolver) Resolve(mappedUser string) (string, error) {
	var resolved string

	switch r.mode {
	case config.ImpersonationNever:
		return "", nil

	case config.ImpersonationMapped:
		if mappedUser == "" {
			return "", nil
		}
		resolved = mappedUser

	case config.ImpersonationAlways:
		resolved = mappedUser
		if resolved == "" {
			resolved = r.fallback
		}
		if resolved == "" {
			return "", fmt.Errorf("%w: mode 'always' needs a mapped user or impersonation.fallbackUser", ErrNoIdentity)
		}

	default:
		return "", fmt.Errorf("unknown impersonation mode %q", r.mode)
	}

	if err := r.lookup(resolved); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnknownIdentity, resolved, err)
	}

	r.logger.Debug("resolved acting identity",
		zap.String("identity", resolved),
		zap.String("mode", string(r.mode)))
	return resolved, nil
}
