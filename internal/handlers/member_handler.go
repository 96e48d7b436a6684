package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

// MemberHandler serves the student, tutor and parent extension records.
type MemberHandler struct {
	BaseHandler
	service services.MemberService
}

func NewMemberHandler(service services.MemberService, logger utils.Logger) *MemberHandler {
	return &MemberHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== STUDENTS =====

func (h *MemberHandler) ListStudents(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	students, total, err := h.service.ListStudents(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: students, Total: total, Limit: limit, Offset: offset})
}

func (h *MemberHandler) GetMyStudent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	student, err := h.service.GetMyStudent(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *MemberHandler) GetStudent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *MemberHandler) UpdateStudent(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UpdateStudentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	student, err := h.service.UpdateStudent(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *MemberHandler) PurchaseHours(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.PurchaseHoursRequest
	if !h.bindJSON(c, &req) {
		return
	}

	student, err := h.service.PurchaseHours(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// ===== PARENTS =====

func (h *MemberHandler) MyChildren(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	children, err := h.service.MyChildren(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, children)
}

// ===== TUTORS =====

func (h *MemberHandler) ListTutors(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	tutors, total, err := h.service.ListTutors(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: tutors, Total: total, Limit: limit, Offset: offset})
}

func (h *MemberHandler) GetTutor(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	tutor, err := h.service.GetTutor(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tutor)
}

func (h *MemberHandler) GetMyTutor(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	tutor, err := h.service.GetMyTutor(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tutor)
}

func (h *MemberHandler) UpdateMyTutor(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UpdateTutorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tutor, err := h.service.UpdateMyTutor(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tutor)
}
