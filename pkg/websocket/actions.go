package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Terminal actions (client -> server)
	ActionTerminalCreate = "terminal.create"
	ActionTerminalGet    = "terminal.get"
	ActionTerminalFind   = "terminal.find"
	ActionTerminalPatch  = "terminal.patch"
	ActionTerminalRemove = "terminal.remove"

	// Subscription actions
	ActionTerminalSubscribe   = "terminal.subscribe"
	ActionTerminalUnsubscribe = "terminal.unsubscribe"

	// Notification actions (server -> client)
	ActionTerminalData = "terminal.data"
	ActionTerminalExit = "terminal.exit"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeTimeout       = "TIMEOUT"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
)
