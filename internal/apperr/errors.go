// Package apperr carries coded errors from the App controller to the relay.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pipeline-console/internal/remote"
)

// Code classifies an AppError. CodeConflict means the run trigger is held by
// another run; CodeUnavailable means a collaborator could not be reached or
// answered badly.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeInternal        Code = "INTERNAL"
)

// AppError is the error contract between the controller and the HTTP relay.
// Message is safe to show in the UI; Err is for logs.
type AppError struct {
	Code    Code
	Op      string // ex: "App.SubmitForm"
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return string(e.Code)
	}
	return strings.Join(parts, ": ")
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// FromCall classifies a failed model server or backend call.
func FromCall(op string, err error) error {
	var callErr *remote.CallError
	if !errors.As(err, &callErr) {
		return E(CodeInternal, op, "unexpected error", err)
	}

	peer := "model server"
	if callErr.Call == remote.CallPipeline {
		peer = "pipeline backend"
	}

	var timeout interface{ Timeout() bool }
	switch {
	case errors.As(err, &timeout) && timeout.Timeout():
		return E(CodeTimeout, op, peer+" timed out", err)
	case callErr.Kind == remote.KindStatus:
		return E(CodeUnavailable, op, fmt.Sprintf("%s rejected the request (status %d)", peer, callErr.StatusCode), err)
	case callErr.Kind == remote.KindMalformed:
		return E(CodeUnavailable, op, peer+" returned an unreadable response", err)
	default:
		return E(CodeUnavailable, op, peer+" unreachable", err)
	}
}

// CodeOf returns the code of the outermost AppError, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
