package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yolymatics/tutoring-service/internal/repositories"
)

const (
	lessonsSheet = "Lessons"
	hoursSheet   = "Student Hours"

	// maxReportRange bounds a lesson export so one request cannot pull the whole table.
	maxReportRange = 366 * 24 * time.Hour
)

var (
	lessonHeader = []interface{}{"Lesson ID", "Scheduled (UTC)", "Subject", "Status", "Duration (min)", "Student", "Tutor"}
	hoursHeader  = []interface{}{"Student ID", "Name", "Email", "Hours Purchased", "Hours Used", "Hours Remaining"}
)

type ReportService interface {
	StudentHours(ctx context.Context, actor Actor) ([]repositories.StudentHoursRow, error)
	// Workbook renders lessons in [from, to) and the current student hours as xlsx.
	Workbook(ctx context.Context, actor Actor, from, to time.Time) ([]byte, error)
}

type reportService struct {
	repo       repositories.Repository
	authorizer *Authorizer
	logger     *slog.Logger
}

func NewReportService(repo repositories.Repository, authorizer *Authorizer, logger *slog.Logger) ReportService {
	return &reportService{repo: repo, authorizer: authorizer, logger: logger}
}

func (s *reportService) StudentHours(ctx context.Context, actor Actor) ([]repositories.StudentHoursRow, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceReports, ActionRead); err != nil {
		return nil, err
	}

	rows, err := s.repo.Dashboard().StudentHours(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get student hours: %w", err)
	}
	return rows, nil
}

func (s *reportService) Workbook(ctx context.Context, actor Actor, from, to time.Time) ([]byte, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceReports, ActionRead); err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, ValidationErrors{{Field: "to", Message: "must be after from", Value: to, Rule: "gtfield"}}
	}
	if to.Sub(from) > maxReportRange {
		return nil, ValidationErrors{{Field: "to", Message: "range must not exceed one year", Value: to, Rule: "max"}}
	}

	s.logger.Info("Exporting lesson report", "from", from, "to", to, "by", actor.UserID)

	lessons, err := s.repo.Dashboard().LessonReport(ctx, nil, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson report: %w", err)
	}
	hours, err := s.repo.Dashboard().StudentHours(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get student hours: %w", err)
	}

	return buildWorkbook(lessons, hours)
}

func buildWorkbook(lessons []repositories.LessonReportRow, hours []repositories.StudentHoursRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	lessonRows := make([][]interface{}, 0, len(lessons))
	for _, l := range lessons {
		lessonRows = append(lessonRows, []interface{}{
			l.LessonID,
			l.ScheduledDate.UTC().Format("2006-01-02 15:04"),
			l.Subject,
			l.Status,
			l.DurationMinutes,
			l.StudentName,
			l.TutorName,
		})
	}
	if err := writeSheet(f, lessonsSheet, lessonHeader, lessonRows, bold); err != nil {
		return nil, err
	}

	hourRows := make([][]interface{}, 0, len(hours))
	for _, h := range hours {
		hourRows = append(hourRows, []interface{}{h.StudentID, h.FullName, h.Email, h.HoursPurchased, h.HoursUsed, h.HoursRemaining()})
	}
	if err := writeSheet(f, hoursSheet, hoursHeader, hourRows, bold); err != nil {
		return nil, err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(lessonsSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+2, err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(name, "A", lastCol, 18)
}
