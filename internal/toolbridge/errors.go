package toolbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/archon-iirc/archon/internal/apperr"
)

// Standard JSON-RPC 2.0 error codes, per spec.md §4.12 and §6's response
// envelope.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeSessionExpired is a ToolBridge-specific vendor code, reserved in
	// the -32000..-32099 server-error range JSON-RPC 2.0 sets aside for
	// implementation-defined errors.
	CodeSessionExpired = -32001
)

// RPCError is the vendor-neutral error shape of spec.md §4.12: a JSON-RPC
// code plus a message, with no internal exception detail ever propagated.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// MethodNotFoundError builds the error handleRPC returns for a method
// outside the fixed vocabulary of spec.md §4.12.
func MethodNotFoundError(method string) *RPCError {
	return newRPCError(CodeMethodNotFound, "method not found: "+method)
}

// InvalidParamsError builds the error a tool returns for a malformed params
// object.
func InvalidParamsError(message string) *RPCError {
	return newRPCError(CodeInvalidParams, message)
}

// MapError translates any error a tool implementation returns into an
// RPCError, classifying *apperr.Error by Kind and collapsing everything
// else to an opaque internal error. Per spec.md §4.12, internal exception
// details are never propagated to the caller.
func MapError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return newRPCError(CodeInternalError, "request cancelled")
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return newRPCError(CodeInvalidParams, err.Error())
	case apperr.KindNotFound:
		return newRPCError(CodeInvalidParams, err.Error())
	case apperr.KindConflict:
		return newRPCError(CodeInvalidRequest, err.Error())
	case apperr.KindCancelled:
		return newRPCError(CodeInternalError, "request cancelled")
	default:
		// ProviderAuth/ProviderTransient/ProviderRateLimit/Store/Internal
		// all collapse to the same opaque code: the caller gets no hint
		// about which upstream collaborator failed.
		return newRPCError(CodeInternalError, "internal error")
	}
}
