// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/stall-allot/engine"
	"github.com/danielhkuo/stall-allot/middleware"
	"github.com/danielhkuo/stall-allot/store"
)

// CodeConflict is reported when a compare-and-swap kept losing until the
// retry budget ran out.
const CodeConflict = "CONFLICT"

// statusFor maps an engine error code to its HTTP status
func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeForbidden:
		return http.StatusForbidden
	case engine.CodeInvalidArgument:
		return http.StatusBadRequest
	case engine.CodeBidTooLow, engine.CodeMaxDurationExceeded:
		return http.StatusUnprocessableEntity
	case engine.CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

// writeError renders err as a JSON error body
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var de *engine.Error
	if errors.As(err, &de) {
		middleware.CodedErrorResponse(w, statusFor(de.Code), string(de.Code), de.Message, de.Metadata)
		return
	}
	if errors.Is(err, store.ErrConflict) {
		slog.Warn("retry budget exhausted", "op", op, "request_id", middleware.RequestID(r.Context()))
		middleware.CodedErrorResponse(w, http.StatusConflict, CodeConflict, "concurrent update, please retry", nil)
		return
	}

	slog.Error("request failed", "op", op, "request_id", middleware.RequestID(r.Context()), "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
}
