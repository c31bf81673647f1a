package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

func (s *Server) respondError(c *gin.Context, statusCode int, message string, details string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   message,
		Code:    statusCode,
		Message: details,
	})
}

// handleError maps service errors onto HTTP responses. Anything unexpected
// is logged and reported without internal detail.
func (s *Server) handleError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    http.StatusBadRequest,
			Message: verr.Error(),
			Details: verr.Fields,
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		s.respondError(c, http.StatusUnauthorized, "Invalid credentials", "Email or password is incorrect")
	case errors.Is(err, services.ErrUnauthenticated):
		s.respondError(c, http.StatusUnauthorized, "Authentication required", "Access denied")
	case errors.Is(err, services.ErrForbidden):
		s.respondError(c, http.StatusForbidden, "Insufficient permissions", "You do not have access to this resource")
	case errors.Is(err, services.ErrNotFound):
		s.respondError(c, http.StatusNotFound, "Not found", "The requested resource does not exist")
	case errors.Is(err, services.ErrConflict):
		s.respondError(c, http.StatusConflict, "Conflict", "The resource already exists")
	default:
		s.logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		s.respondError(c, http.StatusInternalServerError, "Internal server error", "Something went wrong")
	}
}

// bindError reports a request body that failed to decode or validate.
func (s *Server) bindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		s.handleError(c, services.FromFieldErrors(fieldErrs))
		return
	}
	s.respondError(c, http.StatusBadRequest, "Invalid request", err.Error())
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryDate parses a YYYY-MM-DD or RFC 3339 query value. Date-only end
// bounds cover the whole day.
func queryDate(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, &services.ValidationError{Message: "Validation failed", Fields: map[string]string{key: "must be YYYY-MM-DD or RFC 3339"}}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
