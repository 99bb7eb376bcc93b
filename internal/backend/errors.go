package backend

import (
	"errors"
	"fmt"
)

// Standard errors returned by the backend client.
var (
	// ErrNotConnected indicates the client has no live transport.
	ErrNotConnected = errors.New("backend not connected")

	// ErrAlreadyConnected indicates the client is already running.
	ErrAlreadyConnected = errors.New("backend already connected")

	// ErrShutdown indicates the client has been shut down.
	ErrShutdown = errors.New("backend shut down")

	// ErrRequestCancelled indicates the request was cancelled locally.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrTimeout indicates a request went unanswered too long.
	ErrTimeout = errors.New("request timed out")

	// ErrNoCommand indicates the client was built without a launch command
	// or streams.
	ErrNoCommand = errors.New("no backend command or streams configured")
)

// RPCError represents a JSON-RPC error from the backend.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeRequestCancelled is returned by backends that honor
	// $/cancelRequest before completing the work.
	CodeRequestCancelled = -32800

	// CodeContentModified is returned when the document changed under an
	// in-flight computation.
	CodeContentModified = -32801
)
