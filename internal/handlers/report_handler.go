package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	BaseHandler
	service services.ReportService
	now     func() time.Time
}

func NewReportHandler(service services.ReportService, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		now:         time.Now,
	}
}

// StudentHours lists purchased, used and remaining hours per student
// @Summary Student hours report
// @Tags reports
// @Produce json
// @Success 200 {array} repositories.StudentHoursRow
// @Router /reports/student-hours [get]
func (h *ReportHandler) StudentHours(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	rows, err := h.service.StudentHours(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
}

// Workbook streams an xlsx export. from and to default to the last 30 days.
// @Summary Lesson workbook export
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "Start (inclusive), RFC 3339 or date"
// @Param to query string false "End (exclusive), RFC 3339 or date"
// @Router /reports/lessons.xlsx [get]
func (h *ReportHandler) Workbook(c *gin.Context) {
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
	end := h.now().UTC()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}

	data, err := h.service.Workbook(c.Request.Context(), actor, start, end)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("lessons_%s_%s.xlsx", start.Format("20060102"), end.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
