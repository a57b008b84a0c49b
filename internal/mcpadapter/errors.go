// Package mcpadapter exposes the bookmark search surface as Model Context
// Protocol tools, wired against the already-running multiindex.Manager an
// ingestion Service shares ownership of.
package mcpadapter

import (
	"errors"
	"fmt"
)

// Custom MCP error codes, alongside the standard JSON-RPC ones the
// go-sdk maps automatically.
const (
	ErrCodeNotFound      = -32001
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ErrNotFound is the not-found sentinel; MapError turns an error wrapping
// it into ErrCodeNotFound instead of a generic internal error. The
// get_content_by_url handler does not return it: a missing URL is reported
// as Found=false.
var ErrNotFound = errors.New("not found")

// MCPError carries a JSON-RPC-style code alongside its message.
type MCPError struct {
	Code    int
	Message string
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError classifies an internal error into an MCPError with the
// appropriate code.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return &MCPError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}

// NewInvalidParamsError builds an error for a malformed tool call.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
