package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	service services.DashboardService
}

func NewDashboardHandler(service services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== DASHBOARD ENDPOINTS =====

// Admin returns platform-wide counts
// @Summary Admin dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.AdminDashboard
// @Failure 403 {object} ErrorResponse "Forbidden"
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting admin dashboard")

	data, err := h.service.Admin(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Tutor returns the caller's students, upcoming lessons and grading queue
// @Summary Tutor dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.TutorDashboard
// @Router /dashboard/tutor [get]
func (h *DashboardHandler) Tutor(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting tutor dashboard")

	data, err := h.service.Tutor(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Student returns hours, upcoming lessons and open homework
// @Summary Student dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.StudentDashboard
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting student dashboard")

	data, err := h.service.Student(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Parent returns a summary per linked child
// @Summary Parent dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.ParentDashboard
// @Router /dashboard/parent [get]
func (h *DashboardHandler) Parent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting parent dashboard")

	data, err := h.service.Parent(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}
