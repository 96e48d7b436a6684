package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type LessonHandler struct {
	BaseHandler
	service services.LessonService
}

func NewLessonHandler(service services.LessonService, logger utils.Logger) *LessonHandler {
	return &LessonHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *LessonHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.CreateLessonRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Lesson scheduled", "lesson_id", lesson.ID, "student_id", lesson.StudentID)
	c.JSON(http.StatusCreated, lesson)
}

func (h *LessonHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	lesson, err := h.service.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

// List accepts student_id, tutor_id, status, subject, from, to and the usual
// sort and paging parameters. Results are narrowed to what the caller may see.
func (h *LessonHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	from, ok := parseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.LessonFilters{
		TutorID:   optionalQuery(c, "tutor_id"),
		Subject:   optionalQuery(c, "subject"),
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.DefaultQuery("sort_by", "scheduled_date"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if id := c.Query("student_id"); id != "" {
		filters.StudentIDs = []string{id}
	}
	if raw := c.Query("status"); raw != "" {
		status := models.LessonStatus(raw)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid status", Details: raw})
			return
		}
		filters.Status = &status
	}

	lessons, total, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: lessons, Total: total, Limit: limit, Offset: offset})
}

func (h *LessonHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UpdateLessonRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (h *LessonHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Complete marks the lesson done and debits the student's hours. The body is
// optional.
func (h *LessonHandler) Complete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.CompleteLessonRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.service.Complete(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (h *LessonHandler) Cancel(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	lesson, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lesson)
}
