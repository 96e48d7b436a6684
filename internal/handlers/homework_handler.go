package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type HomeworkHandler struct {
	BaseHandler
	service services.HomeworkService
}

func NewHomeworkHandler(service services.HomeworkService, logger utils.Logger) *HomeworkHandler {
	return &HomeworkHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *HomeworkHandler) Assign(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.CreateHomeworkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	hw, err := h.service.Assign(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hw)
}

func (h *HomeworkHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	hw, err := h.service.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hw)
}

func (h *HomeworkHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.HomeworkFilters{
		TutorID:   optionalQuery(c, "tutor_id"),
		LessonID:  optionalQuery(c, "lesson_id"),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.DefaultQuery("sort_by", "due_date"),
		SortOrder: c.DefaultQuery("sort_order", "asc"),
	}
	if id := c.Query("student_id"); id != "" {
		filters.StudentIDs = []string{id}
	}
	if raw := c.Query("status"); raw != "" {
		status := models.HomeworkStatus(raw)
		switch status {
		case models.HomeworkAssigned, models.HomeworkSubmitted, models.HomeworkGraded:
			filters.Status = &status
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid status", Details: raw})
			return
		}
	}

	items, total, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

func (h *HomeworkHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UpdateHomeworkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	hw, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hw)
}

func (h *HomeworkHandler) Delete(c *gin.Context) {
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

// ===== SUBMISSIONS =====

func (h *HomeworkHandler) Submit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.SubmitHomeworkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sub, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *HomeworkHandler) Grade(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.GradeSubmissionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sub, err := h.service.Grade(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *HomeworkHandler) PendingGrading(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, _ := h.pagination(c)
	subs, err := h.service.PendingGrading(c.Request.Context(), actor, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subs, "total": len(subs)})
}
