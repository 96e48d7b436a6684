package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type FileHandler struct {
	BaseHandler
	service services.FileService
}

func NewFileHandler(service services.FileService, logger utils.Logger) *FileHandler {
	return &FileHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// Upload accepts a multipart form with a "file" part and optional
// associated_id and associated_type fields.
func (h *FileHandler) Upload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Missing file", Details: err.Error()})
		return
	}
	src, err := header.Open()
	if err != nil {
		h.LogError(c, err, "Failed to open uploaded part")
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Unreadable file"})
		return
	}
	defer src.Close()

	in := services.UploadInput{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  src,
	}
	if id := c.PostForm("associated_id"); id != "" {
		in.AssociatedID = &id
	}
	if raw := c.PostForm("associated_type"); raw != "" {
		kind := models.FileAssociation(raw)
		in.AssociatedType = &kind
	}

	file, err := h.service.Upload(c.Request.Context(), actor, in)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "File uploaded", "file_id", file.ID, "size", file.FileSize, "mime_type", file.MimeType)
	c.JSON(http.StatusCreated, file)
}

func (h *FileHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	file, err := h.service.GetByID(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *FileHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, offset := h.pagination(c)
	filters := repositories.FileFilters{
		AssociatedID: optionalQuery(c, "associated_id"),
		UploadedBy:   optionalQuery(c, "uploaded_by"),
		Limit:        limit,
		Offset:       offset,
	}
	if raw := c.Query("associated_type"); raw != "" {
		kind := models.FileAssociation(raw)
		filters.AssociatedType = &kind
	}

	files, total, err := h.service.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Data: files, Total: total, Limit: limit, Offset: offset})
}

func (h *FileHandler) Delete(c *gin.Context) {
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
