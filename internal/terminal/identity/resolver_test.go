package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingwatching/agor/internal/common/config"
	"github.com/codingwatching/agor/internal/common/logger"
)

func newResolver(mode, fallback string, known map[string]bool) *Resolver {
	return NewResolver(config.ImpersonationConfig{Mode: mode, FallbackUser: fallback}, logger.Default()).
		WithLookup(func(username string) error {
			if known[username] {
				return nil
			}
			return errors.New("unknown user")
		})
}

func TestResolve_NeverMode(t *testing.T) {
	r := newResolver("never", "", nil)

	id, err := r.Resolve("alice")
	require.NoError(t, err)
	assert.Empty(t, id, "never mode runs as the orchestrator's own identity")
}

func TestResolve_MappedMode(t *testing.T) {
	r := newResolver("mapped", "", map[string]bool{"alice": true})

	id, err := r.Resolve("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	id, err = r.Resolve("")
	require.NoError(t, err)
	assert.Empty(t, id, "unmapped users fall back to the service identity")
}

func TestResolve_AlwaysModeUsesFallback(t *testing.T) {
	r := newResolver("always", "agor-exec", map[string]bool{"agor-exec": true, "bob": true})

	id, err := r.Resolve("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	id, err = r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "agor-exec", id)
}

func TestResolve_AlwaysModeWithoutIdentityFails(t *testing.T) {
	r := newResolver("always", "", nil)

	_, err := r.Resolve("")
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestResolve_UnknownIdentityFails(t *testing.T) {
	r := newResolver("mapped", "", map[string]bool{})

	_, err := r.Resolve("ghost")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}
