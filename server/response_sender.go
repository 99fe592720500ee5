package server

import (
	"net/http"

	types "github.com/agentwire/a2a/types"
	gin "github.com/gin-gonic/gin"
	zap "go.uber.org/zap"
)

// ResponseSender defines how to send JSON-RPC responses
type ResponseSender interface {
	// SendSuccess sends a JSON-RPC success response
	SendSuccess(c *gin.Context, id any, result any)

	// SendError sends a JSON-RPC error response
	SendError(c *gin.Context, id any, code int, message string)

	// SendErrorWithData sends a JSON-RPC error response with an error.data payload
	SendErrorWithData(c *gin.Context, id any, code int, message string, data any)

	// SendPaymentRequired sends the distinguished payment-required response:
	// HTTP 402 with a JSON-RPC envelope whose error.data carries the
	// payment requirements
	SendPaymentRequired(c *gin.Context, id any, requirements types.PaymentRequirements)
}

// DefaultResponseSender implements the ResponseSender interface
type DefaultResponseSender struct {
	logger *zap.Logger
}

var _ ResponseSender = (*DefaultResponseSender)(nil)

// NewDefaultResponseSender creates a new default response sender
func NewDefaultResponseSender(logger *zap.Logger) *DefaultResponseSender {
	return &DefaultResponseSender{
		logger: logger,
	}
}

// SendSuccess sends a JSON-RPC success response
func (rs *DefaultResponseSender) SendSuccess(c *gin.Context, id any, result any) {
	resp := types.JSONRPCSuccessResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	c.JSON(http.StatusOK, resp)
	rs.logger.Debug("sent success response", zap.Any("id", id))
}

// SendError sends a JSON-RPC error response. JSON-RPC application errors
// still travel with a transport-success status; the body carries the error.
func (rs *DefaultResponseSender) SendError(c *gin.Context, id any, code int, message string) {
	rs.sendError(c, http.StatusOK, id, code, message, nil)
}

// SendErrorWithData sends a JSON-RPC error response with an error.data payload
func (rs *DefaultResponseSender) SendErrorWithData(c *gin.Context, id any, code int, message string, data any) {
	rs.sendError(c, http.StatusOK, id, code, message, data)
}

// SendPaymentRequired sends the payment-required response. This is the one
// outcome surfaced with a distinguished transport status.
func (rs *DefaultResponseSender) SendPaymentRequired(c *gin.Context, id any, requirements types.PaymentRequirements) {
	rs.sendError(c, http.StatusPaymentRequired, id, ErrPaymentRequired, "Payment required", requirements)
}

func (rs *DefaultResponseSender) sendError(c *gin.Context, status int, id any, code int, message string, data any) {
	resp := types.JSONRPCErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &types.JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
	c.JSON(status, resp)
	rs.logger.Info("sent error response",
		zap.Int("code", code),
		zap.String("message", message))
}
