package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

// FeedbackHandler covers lesson feedback and performance records.
type FeedbackHandler struct {
	BaseHandler
	service services.FeedbackService
}

func NewFeedbackHandler(service services.FeedbackService, logger utils.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *FeedbackHandler) Leave(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.CreateFeedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}

	fb, err := h.service.Leave(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (h *FeedbackHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.FeedbackFilters{
		LessonID: optionalQuery(c, "lesson_id"),
		TutorID:  optionalQuery(c, "tutor_id"),
		Limit:    limit,
		Offset:   offset,
	}
	if id := c.Query("student_id"); id != "" {
		filters.StudentIDs = []string{id}
	}

	items, total, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

func (h *FeedbackHandler) RecordPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.RecordPerformanceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	perf, err := h.service.RecordPerformance(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, perf)
}

func (h *FeedbackHandler) ListPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.PerformanceFilters{
		Subject: optionalQuery(c, "subject"),
		Limit:   limit,
		Offset:  offset,
	}
	if id := c.Query("student_id"); id != "" {
		filters.StudentIDs = []string{id}
	}

	items, total, err := h.service.ListPerformance(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}
