package websocket

import (
	"go.uber.org/zap"

	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/dto"
	ws "github.com/codingwatching/agor/pkg/websocket"
)

// TerminalNotifier pushes terminal output and exit events to subscribed
// clients. It is the orchestrator's event emitter.
type TerminalNotifier struct {
	hub    *Hub
	logger *logger.Logger
}

// NewTerminalNotifier creates a notifier bound to the hub.
func NewTerminalNotifier(hub *Hub, log *logger.Logger) *TerminalNotifier {
	return &TerminalNotifier{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "terminal_notifier")),
	}
}

// EmitData pushes one batched output chunk to the terminal's subscribers.
func (n *TerminalNotifier) EmitData(terminalID string, data []byte) {
	msg, err := ws.NewNotification(ws.ActionTerminalData, dto.DataEvent{
		TerminalID: terminalID,
		Data:       data,
	})
	if err != nil {
		n.logger.Error("Failed to build terminal data notification", zap.Error(err))
		return
	}
	n.hub.BroadcastToTerminal(terminalID, msg)
}

// EmitExit announces a terminal's process exit to its subscribers.
func (n *TerminalNotifier) EmitExit(terminalID string, exitCode int) {
	msg, err := ws.NewNotification(ws.ActionTerminalExit, dto.ExitEvent{
		TerminalID: terminalID,
		ExitCode:   exitCode,
	})
	if err != nil {
		n.logger.Error("Failed to build terminal exit notification", zap.Error(err))
		return
	}
	n.hub.BroadcastToTerminal(terminalID, msg)
}
