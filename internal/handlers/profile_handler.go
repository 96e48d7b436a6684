package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type ProfileHandler struct {
	BaseHandler
	service services.ProfileService
}

func NewProfileHandler(service services.ProfileService, logger utils.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *ProfileHandler) GetMe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	profile, err := h.service.GetMe(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.UpdateProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	profile, err := h.service.UpdateMe(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	profile, err := h.service.GetByUserID(c.Request.Context(), actor, c.Param("user_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// List supports ?role=, ?q= (name or email), sort_by/sort_order and paging.
func (h *ProfileHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.ProfileFilters{
		Query:     c.Query("q"),
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filters.Role = &role
	}

	profiles, total, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: profiles, Total: total, Limit: limit, Offset: offset})
}

func (h *ProfileHandler) ChangeRole(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req services.ChangeRoleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	profile, err := h.service.ChangeRole(c.Request.Context(), actor, c.Param("user_id"), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, c.Param("user_id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
