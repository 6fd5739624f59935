package websocket

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/codingwatching/agor/internal/common/errors"
	"github.com/codingwatching/agor/internal/common/logger"
	"github.com/codingwatching/agor/internal/terminal/dto"
	"github.com/codingwatching/agor/internal/terminal/service"
	ws "github.com/codingwatching/agor/pkg/websocket"
)

// TerminalService is the orchestrator surface the gateway depends on.
type TerminalService interface {
	Create(ctx context.Context, req *dto.CreateTerminalRequest) (*dto.CreateTerminalResponse, error)
	Get(ctx context.Context, id string) (*dto.GetTerminalResponse, error)
	Find(ctx context.Context, userID string) []dto.TerminalSummary
	Patch(ctx context.Context, id string, req *dto.PatchTerminalRequest) error
	Remove(ctx context.Context, id string) error
}

// TerminalHandlers routes terminal.* WebSocket actions to the orchestrator.
type TerminalHandlers struct {
	service TerminalService
	logger  *logger.Logger
}

// NewTerminalHandlers creates the terminal action handlers.
func NewTerminalHandlers(svc TerminalService, log *logger.Logger) *TerminalHandlers {
	return &TerminalHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "terminal_ws_handlers")),
	}
}

// Register wires the terminal actions into the dispatcher.
func (h *TerminalHandlers) Register(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionTerminalCreate, h.handleCreate)
	d.RegisterFunc(ws.ActionTerminalGet, h.handleGet)
	d.RegisterFunc(ws.ActionTerminalFind, h.handleFind)
	d.RegisterFunc(ws.ActionTerminalPatch, h.handlePatch)
	d.RegisterFunc(ws.ActionTerminalRemove, h.handleRemove)
}

func (h *TerminalHandlers) handleCreate(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.CreateTerminalRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	resp, err := h.service.Create(ctx, &req)
	if err != nil {
		h.logger.Error("terminal create failed", zap.Error(err))
		return h.errorMessage(msg, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

// terminalRef addresses one terminal in get/patch/remove payloads.
type terminalRef struct {
	TerminalID string `json:"terminalId"`
}

func (h *TerminalHandlers) handleGet(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var ref terminalRef
	if err := msg.ParsePayload(&ref); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	resp, err := h.service.Get(ctx, ref.TerminalID)
	if err != nil {
		return h.errorMessage(msg, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *TerminalHandlers) handleFind(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	terminals := h.service.Find(ctx, req.UserID)
	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{
		"terminals": terminals,
		"total":     len(terminals),
	})
}

// patchPayload combines the terminal reference with the patch body.
type patchPayload struct {
	TerminalID string             `json:"terminalId"`
	Input      []byte             `json:"input,omitempty"`
	Resize     *dto.ResizePayload `json:"resize,omitempty"`
}

func (h *TerminalHandlers) handlePatch(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req patchPayload
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	err := h.service.Patch(ctx, req.TerminalID, &dto.PatchTerminalRequest{
		Input:  req.Input,
		Resize: req.Resize,
	})
	if err != nil {
		return h.errorMessage(msg, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{"success": true})
}

func (h *TerminalHandlers) handleRemove(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var ref terminalRef
	if err := msg.ParsePayload(&ref); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}

	if err := h.service.Remove(ctx, ref.TerminalID); err != nil {
		return h.errorMessage(msg, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, map[string]interface{}{"success": true})
}

// errorMessage maps an orchestrator error onto the wire error taxonomy.
func (h *TerminalHandlers) errorMessage(msg *ws.Message, err error) (*ws.Message, error) {
	code := ws.ErrorCodeInternalError
	switch {
	case errors.Is(err, service.ErrTerminalNotFound), errors.Is(err, service.ErrWorktreeNotFound):
		code = ws.ErrorCodeNotFound
	case apperrors.IsTimeout(err):
		code = ws.ErrorCodeTimeout
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCodeValidationError {
			code = ws.ErrorCodeValidation
		}
	}
	return ws.NewError(msg.ID, msg.Action, code, err.Error(), nil)
}
