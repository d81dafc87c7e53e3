package httpapi

import (
	"errors"
	"net/http"

	"voice-platform/internal/calls"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch calls.KindOf(err) {
	case calls.ErrValidation:
		return http.StatusBadRequest
	case calls.ErrNotFound:
		return http.StatusNotFound
	case calls.ErrConfiguration:
		return http.StatusUnprocessableEntity
	case calls.ErrProvider:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	log := logger.FromGin(c)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	} else {
		log.Warn("request rejected", "status", status, "err", err)
	}

	body := gin.H{"error": http.StatusText(status)}
	var ce *calls.Error
	if errors.As(err, &ce) && status < http.StatusInternalServerError {
		body["error"] = ce.Error()
		if ce.Op != "" {
			body["op"] = ce.Op
		}
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
