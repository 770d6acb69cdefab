package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/middleware"
)

// writeError maps a service error to its status code and APIError body.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var (
		status int
		apiErr *domain.APIError
		vErr   *domain.ValidationError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrValidation, vErr.Error(), vErr.Field, requestID)
	case errors.Is(err, domain.ErrInvalidImage):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrUpload, "Invalid image upload", err.Error(), requestID)
	case errors.As(err, &tooBig):
		status = http.StatusRequestEntityTooLarge
		apiErr = domain.NewAPIError(domain.ErrUpload, "Request body too large", err.Error(), requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.ErrNotFoundCode, "Resource not found", err.Error(), requestID)
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		apiErr = domain.NewAPIError(domain.ErrConflictCode, "Resource already exists", err.Error(), requestID)
	default:
		status = http.StatusInternalServerError
		apiErr = domain.NewAPIError(domain.ErrInternalServer, "Internal server error", "", requestID)
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": apiErr})
}

// badRequest reports malformed input that never reached a service.
func (s *Server) badRequest(c *gin.Context, message, details string) {
	apiErr := domain.NewAPIError(domain.ErrInvalidInput, message, details, c.GetString(middleware.CorrelationIDKey))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": apiErr})
}

// bindJSON decodes the request body, answering 400 on failure.
func (s *Server) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(c, err)
			return false
		}
		s.badRequest(c, "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// pathID parses the :id path parameter.
func (s *Server) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(c, "Invalid id", c.Param("id"))
		return 0, false
	}
	return id, true
}

// pagination reads limit and offset query parameters. Missing or malformed
// values fall back to limit 10, offset 0.
// maxPageSize caps the limit query parameter of list endpoints.
const maxPageSize = 100

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	limit = min(limit, maxPageSize)
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
