package service

import (
	"errors"
	"fmt"

	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/storage"
)

// Code is a JSON-RPC style error code.
type Code int

const (
	CodeParseError     Code = -32700
	CodeInvalidRequest Code = -32600
	CodeMethodNotFound Code = -32601
	CodeInvalidParams  Code = -32602
	CodeInternalError  Code = -32603

	CodeNotFound         Code = -32001
	CodeAlreadyExists    Code = -32002
	CodeCloudUnavailable Code = -32003
	CodeStorageError     Code = -32004
	CodeValidationError  Code = -32005
	CodeRateLimited      Code = -32006
)

var defaultMessages = map[Code]string{
	CodeParseError:       "Parse error",
	CodeInvalidRequest:   "Invalid request",
	CodeMethodNotFound:   "Method not found",
	CodeInvalidParams:    "Invalid params",
	CodeInternalError:    "Internal error",
	CodeNotFound:         "Resource not found",
	CodeAlreadyExists:    "Resource already exists",
	CodeCloudUnavailable: "Cloud service unavailable",
	CodeStorageError:     "Storage operation failed",
	CodeValidationError:  "Validation failed",
	CodeRateLimited:      "Rate limit exceeded",
}

// Error is the envelope returned to callers of the service operations.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewError builds an Error. An empty message takes the code's default.
func NewError(code Code, message string) *Error {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Error{Code: code, Message: message}
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data any) *Error {
	c := *e
	c.Data = data
	return &c
}

func invalid(field, message string) *Error {
	return NewError(CodeValidationError, message).WithData(map[string]string{"field": field})
}

// Normalize maps any error onto the envelope taxonomy. Errors that are not
// recognised become a generic internal error so no detail leaks out.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return NewError(CodeNotFound, "")
	case errors.Is(err, storage.ErrInvalidItem):
		return NewError(CodeValidationError, "")
	case errors.Is(err, remote.ErrRateLimited):
		return NewError(CodeRateLimited, "")
	case errors.Is(err, remote.ErrUnavailable):
		return NewError(CodeCloudUnavailable, "")
	}
	return NewError(CodeInternalError, "")
}
