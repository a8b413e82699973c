package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"finanzas/internal/indicator"
	"finanzas/internal/log"
	"finanzas/internal/marketdata"
	"finanzas/internal/services"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// userFrom returns the user selector of q, or fallback when absent.
func userFrom(q url.Values, fallback string) string {
	if u := sanitizeInput(q.Get("user")); u != "" {
		return u
	}
	return fallback
}

// writeServiceError maps an AnalyticsService error to a response. Client
// errors keep their message. Anything else is logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidUser), errors.Is(err, services.ErrInvalidSymbol):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, services.ErrInvalidMovement):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, marketdata.ErrNoData), errors.Is(err, indicator.ErrEmptySeries):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		ErrorResponse(http.StatusGatewayTimeout, "upstream timed out").Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		InternalServerError("internal error").Write(w)
	}
}
