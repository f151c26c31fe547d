package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quorum/internal/assist"
	pointsdomain "github.com/smallbiznis/quorum/internal/points/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, assist.ErrInvalidRequest),
		errors.Is(err, pointsdomain.ErrInvalidUser),
		errors.Is(err, pointsdomain.ErrInvalidAmount),
		errors.Is(err, pointsdomain.ErrInvalidDirection),
		errors.Is(err, pointsdomain.ErrInvalidSource),
		errors.Is(err, pointsdomain.ErrInvalidReference),
		errors.Is(err, pointsdomain.ErrInvalidPrice),
		errors.Is(err, pointsdomain.ErrSelfPurchase):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: "invalid request"}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, pointsdomain.ErrAccountNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, pointsdomain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, errorPayload{Type: "insufficient_balance", Message: err.Error()}
	case errors.Is(err, pointsdomain.ErrBalanceConflict),
		errors.Is(err, pointsdomain.ErrReferenceConflict):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "conflict"}
	case errors.Is(err, assist.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, assist.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
