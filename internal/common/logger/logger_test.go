package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithTerminalIDAndUserID(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	scoped := log.WithTerminalID("t-1").WithUserID("user-a")
	assert.Equal(t, []zap.Field{
		zap.String("terminal_id", "t-1"),
		zap.String("user_id", "user-a"),
	}, scoped.fields)

	// The parent logger is untouched.
	assert.Empty(t, log.fields)
}

func TestWithFieldsAccumulates(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	a := log.WithFields(zap.String("component", "terminal-service"))
	b := a.WithTerminalID("t-2")
	assert.Len(t, a.fields, 1)
	assert.Len(t, b.fields, 2)
}

func TestWithContextExtractsIDs(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), CorrelationIDKey, "corr-1")
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")
	scoped := log.WithContext(ctx)
	assert.Equal(t, []zap.Field{
		zap.String("correlation_id", "corr-1"),
		zap.String("request_id", "req-1"),
	}, scoped.fields)

	// A bare context adds nothing and returns the same logger.
	assert.Same(t, log, log.WithContext(context.Background()))
}
