package http

import (
	"context"
	"errors"
	"net/http"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/pkg/errs"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps the error taxonomy to a status code.
func statusFor(err error) int {
	var he *echo.HTTPError
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrDataCorruption):
		return http.StatusInternalServerError
	case errors.Is(err, errs.ErrRuleViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrInvariantViolation):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, commands.ErrRouteRecalculationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorHandler renders handler errors as ErrorResponse. Server errors are
// logged and their message is not echoed back.
func NewErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFor(err)
		body := ErrorResponse{Code: status, Message: err.Error()}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			}
		}
		var rv *errs.RuleViolationError
		if errors.As(err, &rv) {
			body.Reason = rv.Code
		}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			body.Message = "validation failed"
			body.Details = validationDetails(ve)
		}

		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", status).
				Msg("request failed")
			body.Message = http.StatusText(status)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
