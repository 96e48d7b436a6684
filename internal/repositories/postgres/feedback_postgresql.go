package postgres

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type feedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackPostgreSQL(db *gorm.DB) repositories.FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *feedbackRepository) Create(ctx context.Context, tx *gorm.DB, feedback *models.Feedback) error {
	if err := r.getDB(tx).WithContext(ctx).Create(feedback).Error; err != nil {
		return handleDBError(err, "create feedback")
	}
	return nil
}

func (r *feedbackRepository) ExistsForLesson(ctx context.Context, tx *gorm.DB, lessonID, studentID string) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Feedback{}).
		Where("lesson_id = ? AND student_id = ?", lessonID, studentID).
		Count(&count).Error
	if err != nil {
		return false, handleDBError(err, "check feedback exists")
	}
	return count > 0, nil
}

func (r *feedbackRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.FeedbackFilters) ([]*models.Feedback, int64, error) {
	var items []*models.Feedback
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Feedback{})
	if filters.LessonID != nil {
		query = query.Where("lesson_id = ?", *filters.LessonID)
	}
	if filters.TutorID != nil {
		query = query.Where("tutor_id = ?", *filters.TutorID)
	}
	if filters.StudentIDs != nil {
		query = query.Where("student_id IN ?", filters.StudentIDs)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count feedback")
	}
	if err := applyPagination(query.Order("created_at DESC"), filters.Limit, filters.Offset).Find(&items).Error; err != nil {
		return nil, 0, handleDBError(err, "list feedback")
	}
	return items, total, nil
}

func (r *feedbackRepository) AverageRating(ctx context.Context, tx *gorm.DB, tutorID *string) (float64, error) {
	var avg sql.NullFloat64
	query := r.getDB(tx).WithContext(ctx).
		Model(&models.Feedback{}).
		Select("AVG(rating)").
		Where("rating IS NOT NULL")
	if tutorID != nil {
		query = query.Where("tutor_id = ?", *tutorID)
	}
	if err := query.Row().Scan(&avg); err != nil {
		return 0, handleDBError(err, "average rating")
	}
	return avg.Float64, nil
}

// ===== PERFORMANCE =====

func (r *feedbackRepository) CreatePerformance(ctx context.Context, tx *gorm.DB, performance *models.Performance) error {
	if err := r.getDB(tx).WithContext(ctx).Create(performance).Error; err != nil {
		return handleDBError(err, "create performance")
	}
	return nil
}

func (r *feedbackRepository) ListPerformance(ctx context.Context, tx *gorm.DB, filters repositories.PerformanceFilters) ([]*models.Performance, int64, error) {
	var items []*models.Performance
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Performance{})
	if filters.StudentIDs != nil {
		query = query.Where("student_id IN ?", filters.StudentIDs)
	}
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count performance")
	}
	if err := applyPagination(query.Order("date_recorded DESC"), filters.Limit, filters.Offset).Find(&items).Error; err != nil {
		return nil, 0, handleDBError(err, "list performance")
	}
	return items, total, nil
}
