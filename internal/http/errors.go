package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"
)

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("access denied: invalid token")
	errRateLimited  = errors.New("too many requests")
)

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrTotalMismatch),
		errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, payment.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает {"error": ...}; внутренние ошибки не раскрываются клиенту
func (s *Server) writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("http_internal_error", "path", c.FullPath(), "request_id", requestID(c), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
