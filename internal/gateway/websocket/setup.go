package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/codingwatching/agor/internal/common/logger"
	ws "github.com/codingwatching/agor/pkg/websocket"
)

// Gateway bundles the WebSocket hub, dispatcher, connection handler and
// terminal notifier.
type Gateway struct {
	Hub        *Hub
	Dispatcher *ws.Dispatcher
	Handler    *Handler
	Notifier   *TerminalNotifier
	logger     *logger.Logger
}

// NewGateway creates a new WebSocket gateway with all components initialized
func NewGateway(log *logger.Logger) *Gateway {
	dispatcher := ws.NewDispatcher()
	hub := NewHub(dispatcher, log)
	handler := NewHandler(hub, log)

	RegisterHealthHandler(dispatcher)

	return &Gateway{
		Hub:        hub,
		Dispatcher: dispatcher,
		Handler:    handler,
		Notifier:   NewTerminalNotifier(hub, log),
		logger:     log,
	}
}

// RegisterTerminalService wires the terminal action handlers into the
// dispatcher.
func (g *Gateway) RegisterTerminalService(svc TerminalService) {
	NewTerminalHandlers(svc, g.logger).Register(g.Dispatcher)
}

// SetupRoutes adds the WebSocket routes to the Gin engine
func (g *Gateway) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", g.Handler.HandleConnection)
}
