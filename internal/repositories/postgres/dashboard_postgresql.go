package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) repositories.DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// ===== DASHBOARD STATS =====

func (r *dashboardRepository) CountMembers(ctx context.Context, tx *gorm.DB) (*repositories.MemberCounts, error) {
	db := r.getDB(tx).WithContext(ctx)
	counts := &repositories.MemberCounts{}

	if err := db.Model(&models.Student{}).Count(&counts.Students).Error; err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}
	if err := db.Model(&models.Tutor{}).Count(&counts.Tutors).Error; err != nil {
		return nil, fmt.Errorf("failed to count tutors: %w", err)
	}
	if err := db.Model(&models.Parent{}).Count(&counts.Parents).Error; err != nil {
		return nil, fmt.Errorf("failed to count parents: %w", err)
	}
	return counts, nil
}

func (r *dashboardRepository) CountDistinctStudents(ctx context.Context, tx *gorm.DB, tutorID string) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Lesson{}).
		Where("tutor_id = ?", tutorID).
		Distinct("student_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tutor students: %w", err)
	}
	return count, nil
}

func (r *dashboardRepository) CountPendingSubmissions(ctx context.Context, tx *gorm.DB, tutorID *string) (int64, error) {
	var count int64
	query := r.getDB(tx).WithContext(ctx).
		Table("submissions s").
		Joins("JOIN homework h ON h.id = s.homework_id").
		Where("s.graded_at IS NULL")
	if tutorID != nil {
		query = query.Where("h.tutor_id = ?", *tutorID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending submissions: %w", err)
	}
	return count, nil
}

// ===== REPORTS =====

func (r *dashboardRepository) StudentHours(ctx context.Context, tx *gorm.DB) ([]repositories.StudentHoursRow, error) {
	var rows []repositories.StudentHoursRow
	err := r.getDB(tx).WithContext(ctx).
		Table("students st").
		Select(`st.id AS student_id,
			COALESCE(p.full_name, '') AS full_name,
			COALESCE(p.email, '') AS email,
			st.total_hours_purchased AS hours_purchased,
			st.hours_used AS hours_used`).
		Joins("LEFT JOIN profiles p ON p.user_id = st.user_id").
		Order("full_name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load student hours: %w", err)
	}
	return rows, nil
}

func (r *dashboardRepository) LessonReport(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]repositories.LessonReportRow, error) {
	var rows []repositories.LessonReportRow
	err := r.getDB(tx).WithContext(ctx).
		Table("lessons l").
		Select(`l.id AS lesson_id,
			l.scheduled_date,
			l.subject,
			l.status,
			l.duration_minutes,
			COALESCE(sp.full_name, '') AS student_name,
			COALESCE(tp.full_name, '') AS tutor_name`).
		Joins("LEFT JOIN students st ON st.id = l.student_id").
		Joins("LEFT JOIN profiles sp ON sp.user_id = st.user_id").
		Joins("LEFT JOIN tutors tu ON tu.id = l.tutor_id").
		Joins("LEFT JOIN profiles tp ON tp.user_id = tu.user_id").
		Where("l.scheduled_date >= ? AND l.scheduled_date < ?", from, to).
		Order("l.scheduled_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson report: %w", err)
	}
	return rows, nil
}
