// Package mcp exposes the search engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeCorpusUnavailable indicates the corpus could not be loaded.
	ErrCodeCorpusUnavailable = -32001

	// ErrCodeSuggestFailed indicates the name-suggestion service failed.
	ErrCodeSuggestFailed = -32002

	// ErrCodeTimeout indicates the search timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeWorkerFailed indicates an isolated search worker failed.
	ErrCodeWorkerFailed = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrToolNotFound indicates the requested tool does not exist.
var ErrToolNotFound = errors.New("tool not found")

// MCPError is an MCP protocol error.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var se *apperrors.SearchError
	if errors.As(err, &se) {
		return mapSearchError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an invalid-parameters error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapSearchError(se *apperrors.SearchError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case apperrors.ErrCodeSearchTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case apperrors.ErrCodeSuggestUnavailable, apperrors.ErrCodeSuggestBadResponse:
		return &MCPError{Code: ErrCodeSuggestFailed, Message: message}
	case apperrors.ErrCodeWorkerFailed, apperrors.ErrCodePoolClosed:
		return &MCPError{Code: ErrCodeWorkerFailed, Message: message}
	}

	switch se.Category {
	case apperrors.CategoryIO:
		return &MCPError{Code: ErrCodeCorpusUnavailable, Message: message}
	case apperrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case apperrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
