package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse wraps a page of results.
type ListResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// BaseHandler carries what every handler shares: logging and the mapping of
// service errors onto HTTP responses.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Debug(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string) {
	utils.GetLogger(c, h.logger).Error(msg, "error", err, "path", c.FullPath())
}

// actor returns the signed-in caller. Routes that reach a handler have been
// through RequireProfile or RequireRole, so a miss is answered with 401.
func (h *BaseHandler) actor(c *gin.Context) (services.Actor, bool) {
	actor, ok := services.ActorFromState(GetAuthState(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return services.Actor{}, false
	}
	return actor, true
}

func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (h *BaseHandler) pagination(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// handleServiceError maps service errors to HTTP status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrStudentNotFound),
		errors.Is(err, services.ErrTutorNotFound),
		errors.Is(err, services.ErrParentNotFound),
		errors.Is(err, services.ErrLessonNotFound),
		errors.Is(err, services.ErrHomeworkNotFound),
		errors.Is(err, services.ErrSubmissionNotFound),
		errors.Is(err, services.ErrFileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid login credentials"})
	case errors.Is(err, services.ErrInvalidSession), errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized access"})
	case errors.Is(err, services.ErrEmailNotConfirmed):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Email not confirmed", Details: "Check your email for a confirmation link"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Forbidden - insufficient permissions"})
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrFeedbackExists):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrFileTypeDenied):
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrUnsupported):
		c.JSON(http.StatusNotImplemented, ErrorResponse{Message: err.Error()})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

func parseIntQuery(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func optionalQuery(c *gin.Context, name string) *string {
	if v, ok := c.GetQuery(name); ok && v != "" {
		return &v
	}
	return nil
}

// parseTimeQuery accepts RFC 3339 timestamps or plain dates. ok is false when
// the parameter is present but malformed; a 400 has then been written.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message: "Invalid " + name,
		Details: "Use RFC 3339 (2006-01-02T15:04:05Z) or a date (2006-01-02)",
	})
	return nil, false
}
