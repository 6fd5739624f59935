package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeConstructors(t *testing.T) {
	req, err := NewRequest("req-1", "terminal.get", map[string]string{"terminalId": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRequest, req.Type)
	assert.Equal(t, "req-1", req.ID)
	assert.False(t, req.Timestamp.IsZero())

	resp, err := NewResponse("req-1", "terminal.get", map[string]bool{"alive": true})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, req.ID, resp.ID, "a response echoes the request id")

	note, err := NewNotification(ActionTerminalData, map[string]string{"data": "$ "})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeNotification, note.Type)
	assert.Empty(t, note.ID, "notifications are not correlated to a request")
}

func TestNewErrorCarriesCodeAndDetails(t *testing.T) {
	msg, err := NewError("req-9", "terminal.remove", ErrorCodeNotFound, "no such terminal",
		map[string]interface{}{"terminalId": "t-9"})
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, msg.Type)

	var payload ErrorPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeNotFound, payload.Code)
	assert.Equal(t, "no such terminal", payload.Message)
	assert.Equal(t, "t-9", payload.Details["terminalId"])
}

func TestParsePayload_NilPayloadIsEmpty(t *testing.T) {
	msg := &Message{Type: MessageTypeRequest, Action: "health.check"}

	var payload struct {
		TerminalID string `json:"terminalId"`
	}
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Empty(t, payload.TerminalID)
}

func TestDispatch_RoutesByAction(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFunc("terminal.get", func(ctx context.Context, msg *Message) (*Message, error) {
		return NewResponse(msg.ID, msg.Action, map[string]bool{"alive": true})
	})

	msg := &Message{ID: "req-2", Type: MessageTypeRequest, Action: "terminal.get",
		Payload: json.RawMessage(`{}`)}
	resp, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, "req-2", resp.ID)
}

func TestDispatch_UnknownActionRepliesWithError(t *testing.T) {
	d := NewDispatcher()

	msg := &Message{ID: "req-3", Type: MessageTypeRequest, Action: "terminal.reboot"}
	resp, err := d.Dispatch(context.Background(), msg)
	require.NoError(t, err, "an unknown action is a protocol error, not a transport failure")
	assert.Equal(t, MessageTypeError, resp.Type)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeUnknownAction, payload.Code)
}
