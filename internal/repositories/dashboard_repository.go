package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DashboardRepository interface for dashboard aggregates
type DashboardRepository interface {
	CountMembers(ctx context.Context, tx *gorm.DB) (*MemberCounts, error)
	CountDistinctStudents(ctx context.Context, tx *gorm.DB, tutorID string) (int64, error)
	CountPendingSubmissions(ctx context.Context, tx *gorm.DB, tutorID *string) (int64, error)

	// Reports
	StudentHours(ctx context.Context, tx *gorm.DB) ([]StudentHoursRow, error)
	LessonReport(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]LessonReportRow, error)
}

type LessonReportRow struct {
	LessonID        string    `json:"lesson_id"`
	ScheduledDate   time.Time `json:"scheduled_date"`
	Subject         string    `json:"subject"`
	Status          string    `json:"status"`
	DurationMinutes int       `json:"duration_minutes"`
	StudentName     string    `json:"student_name"`
	TutorName       string    `json:"tutor_name"`
}
