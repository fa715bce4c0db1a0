// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KeyGate Contributors

// Package errutil bridges oops errors to structured logs and HTTP statuses.
package errutil

import (
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// statusByCode maps domain error codes to HTTP statuses. Anything not
// listed is an internal error and reports as 500 with a generic body;
// raw driver errors never reach a client.
var statusByCode = map[string]int{
	"AUTH_VALIDATION":          http.StatusBadRequest,
	"AUTH_DUPLICATE_EMAIL":     http.StatusConflict,
	"AUTH_DUPLICATE_USERNAME":  http.StatusConflict,
	"AUTH_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"AUTH_TOKEN_EXPIRED":       http.StatusUnauthorized,
	"AUTH_TOKEN_INVALID":       http.StatusUnauthorized,
	"AUTH_UNAUTHORIZED":        http.StatusUnauthorized,
	"AUTH_ACCOUNT_LOCKED":      http.StatusTooManyRequests,
	"AUTH_USER_NOT_FOUND":      http.StatusNotFound,
	"RESET_TOKEN_INVALID":      http.StatusUnauthorized,
	"RESET_TOKEN_EXPIRED":      http.StatusUnauthorized,
	"CONFIG_INVALID":           http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for an error based on its oops code.
func HTTPStatus(err error) int {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			if status, found := statusByCode[code]; found {
				return status
			}
		}
	}
	return http.StatusInternalServerError
}

// ClientFacing reports whether the error carries a message that is safe
// and stable to show to a client. Internal errors are not.
func ClientFacing(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
