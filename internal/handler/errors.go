package handler

import (
	"log/slog"
	"net/http"

	"github.com/stacklane/stacklane/internal/apperr"
	"github.com/stacklane/stacklane/internal/middleware"
)

// Error codes written in the "code" field.
const (
	codeNotFound     = "NOT_FOUND"
	codeValidation   = "VALIDATION_FAILED"
	codeConflict     = "CONFLICT"
	codeForbidden    = "FORBIDDEN"
	codeApplication  = "APPLICATION_ERROR"
	codeInternal     = "INTERNAL_ERROR"
	codeInvalidJSON  = "INVALID_JSON"
	internalErrorMsg = "Internal Server Error"
)

// statusFor maps a domain error kind to its HTTP status and code.
// Every kind in apperr.Kinds has a case.
func statusFor(kind apperr.Kind) (int, string, bool) {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound, codeNotFound, true
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity, codeValidation, true
	case apperr.KindConflict:
		return http.StatusConflict, codeConflict, true
	case apperr.KindAuthorization:
		return http.StatusForbidden, codeForbidden, true
	case apperr.KindApplication:
		return http.StatusBadRequest, codeApplication, true
	default:
		return 0, "", false
	}
}

// writeServiceError is the single place where errors become responses.
// Domain errors keep their message; anything else is logged with detail
// and answered with an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		if status, code, known := statusFor(e.Kind); known {
			writeError(w, status, code, e.Message, e.Field)
			return
		}
	}

	logger.Error("internal_error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	writeError(w, http.StatusInternalServerError, codeInternal, internalErrorMsg, "")
}

func invalidParam(name string) error {
	return apperr.Validation(name+" must be an integer", name)
}
