package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/shellquote"
)

type recordedCall struct {
	name string
	args []string
}

func newRecordingController(out []byte, err error) (*Controller, *[]recordedCall) {
	var calls []recordedCall
	c := NewController(time.Second, logger.Default()).WithRunner(
		func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, recordedCall{name: name, args: args})
			return out, err
		})
	return c, &calls
}

func TestSessionExists_ParsesSessionList(t *testing.T) {
	c, _ := newRecordingController([]byte("agor-alice\nagor-bob\n"), nil)

	exists, err := c.SessionExists(context.Background(), "agor-alice", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.SessionExists(context.Background(), "agor-carol", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionExists_ExitFailureMeansNoSessions(t *testing.T) {
	c, _ := newRecordingController(nil, errors.New("exit status 1"))

	exists, err := c.SessionExists(context.Background(), "agor-alice", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionExists_TimeoutPropagates(t *testing.T) {
	c := NewController(10*time.Millisecond, logger.Default()).WithRunner(
		func(ctx context.Context, name string, args ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := c.SessionExists(context.Background(), "agor-alice", "")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTabNames_TrimsAndOrders(t *testing.T) {
	c, calls := newRecordingController([]byte("main\nfeature-x\n\n"), nil)

	tabs, err := c.TabNames(context.Background(), "agor-alice", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "feature-x"}, tabs)

	require.Len(t, *calls, 1)
	assert.Equal(t, "zellij", (*calls)[0].name)
	assert.Equal(t, []string{"-s", "agor-alice", "action", "query-tab-names"}, (*calls)[0].args)
}

func TestExec_ImpersonationWrapsInSu(t *testing.T) {
	c, calls := newRecordingController(nil, nil)

	err := c.GoToTab(context.Background(), "agor-alice", "alice", "feature-x")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "su", call.name)
	require.Len(t, call.args, 4)
	assert.Equal(t, "-", call.args[0])
	assert.Equal(t, "alice", call.args[1])
	assert.Equal(t, "-c", call.args[2])
	assert.Contains(t, call.args[3], "go-to-tab-name")
}

func TestExec_ImpersonationEscapesArguments(t *testing.T) {
	c, calls := newRecordingController(nil, nil)

	hostile := "x'; rm -rf /; echo '"
	err := c.NewTab(context.Background(), "agor-alice", "alice", hostile, "/tmp")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	shellCmd := (*calls)[0].args[len((*calls)[0].args)-1]
	// The hostile tab name must appear only in its escaped form.
	assert.Contains(t, shellCmd, shellquote.Single(hostile))
	assert.NotContains(t, shellCmd, " "+hostile+" ")
}

func TestWriteControl_SendsDecimalCode(t *testing.T) {
	c, calls := newRecordingController(nil, nil)

	require.NoError(t, c.WriteControl(context.Background(), "agor-alice", "", 13))
	require.Len(t, *calls, 1)
	args := (*calls)[0].args
	assert.Equal(t, "13", args[len(args)-1])
}

func TestAttachCommand_Direct(t *testing.T) {
	c, _ := newRecordingController(nil, nil)

	argv := c.AttachCommand("agor-host", "", nil)
	assert.Equal(t, []string{"zellij", "attach", "--create", "agor-host"}, argv)
}

func TestAttachCommand_ImpersonatedInjectsEnvThroughSu(t *testing.T) {
	c, _ := newRecordingController(nil, nil)

	argv := c.AttachCommand("agor-alice", "alice", map[string]string{
		"EDITOR": "vim",
		"API":    "top $ecret",
	})
	require.Equal(t, []string{"su", "-", "alice", "-c"}, argv[:4])
	inner := argv[4]
	assert.True(t, strings.HasSuffix(inner, fmt.Sprintf("zellij attach --create %s", "'agor-alice'")), inner)
	assert.Contains(t, inner, "API='top $ecret'")
	assert.Contains(t, inner, "EDITOR='vim'")
}
