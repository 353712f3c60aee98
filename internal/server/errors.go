package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/themeleon/themeleon/internal/checkout"
	"github.com/themeleon/themeleon/internal/config"
	entdomain "github.com/themeleon/themeleon/internal/entitlement/domain"
	"github.com/themeleon/themeleon/internal/identity"
	themedomain "github.com/themeleon/themeleon/internal/theme/domain"
)

var ErrInvalidRequest = errors.New("invalid_request")

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

// ErrorHandlingMiddleware turns errors attached to the context into a JSON
// response. Handlers that need a non-standard body write it themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, themedomain.ErrInvalidDescription):
		return http.StatusBadRequest, errorResponse{Error: "The request is not valid. Please check your input."}
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: "Authentication is invalid. Please sign in again."}
	case errors.Is(err, themedomain.ErrQuotaExceeded):
		zero := 0
		return http.StatusForbidden, errorResponse{
			Error:     "You are out of credits. Purchase additional credits to continue.",
			Remaining: &zero,
		}
	case errors.Is(err, themedomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "The AI rate limit was reached. Please wait a moment and try again."}
	case errors.Is(err, themedomain.ErrProviderFailed):
		return http.StatusBadGateway, errorResponse{Error: providerMessage(err)}
	case errors.Is(err, checkout.ErrSessionFailed):
		return http.StatusBadGateway, errorResponse{Error: providerMessage(err)}
	case errors.Is(err, config.ErrMisconfigured):
		// Never reveals which secret is missing.
		return http.StatusInternalServerError, errorResponse{Error: "The server is misconfigured. Please contact the administrator."}
	case errors.Is(err, entdomain.ErrBackendUnavailable):
		return http.StatusInternalServerError, errorResponse{Error: "A temporary server error occurred. Please try again."}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "A temporary server error occurred. Please try again."}
	}
}

// providerMessage passes the upstream message through when one was attached
// to the sentinel, matching what API clients expect to display.
func providerMessage(err error) string {
	message := err.Error()
	if message == "" {
		return "The upstream service failed. Please try again."
	}
	return message
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, themedomain.ErrInvalidDescription):
		return "validation", "invalid_request"
	case errors.Is(err, identity.ErrUnauthenticated):
		return "auth", "unauthenticated"
	case errors.Is(err, themedomain.ErrQuotaExceeded):
		return "quota", "quota_exceeded"
	case errors.Is(err, themedomain.ErrRateLimited):
		return "upstream", "rate_limited"
	case errors.Is(err, themedomain.ErrProviderFailed):
		return "upstream", "provider_failed"
	case errors.Is(err, checkout.ErrSessionFailed):
		return "upstream", "checkout_failed"
	case errors.Is(err, config.ErrMisconfigured):
		return "config", "misconfigured"
	case errors.Is(err, entdomain.ErrBackendUnavailable):
		return "storage", "backend_unavailable"
	default:
		return "internal", "internal_error"
	}
}
