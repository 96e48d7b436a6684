package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type lessonRepository struct {
	db *gorm.DB
}

func NewLessonPostgreSQL(db *gorm.DB) repositories.LessonRepository {
	return &lessonRepository{db: db}
}

func (r *lessonRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

// ===== BASIC CRUD OPERATIONS =====

func (r *lessonRepository) Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	if err := r.getDB(tx).WithContext(ctx).Omit("Student", "Tutor").Create(lesson).Error; err != nil {
		return handleDBError(err, "create lesson")
	}
	return nil
}

func (r *lessonRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.getDB(tx).WithContext(ctx).First(&lesson, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get lesson by id")
	}
	return &lesson, nil
}

func (r *lessonRepository) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.getDB(tx).WithContext(ctx).
		Preload("Student.Profile").
		Preload("Tutor.Profile").
		First(&lesson, "id = ?", id).Error
	if err != nil {
		return nil, handleDBError(err, "get lesson with details")
	}
	return &lesson, nil
}

func (r *lessonRepository) Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Lesson{}).
		Where("id = ?", lesson.ID).
		Updates(map[string]interface{}{
			"subject":          lesson.Subject,
			"topic":            lesson.Topic,
			"scheduled_date":   lesson.ScheduledDate,
			"duration_minutes": lesson.DurationMinutes,
			"status":           lesson.Status,
			"notes":            lesson.Notes,
		}).Error
	return handleDBError(err, "update lesson")
}

func (r *lessonRepository) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := r.getDB(tx).WithContext(ctx).Delete(&models.Lesson{}, "id = ?", id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete lesson")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete lesson")
	}
	return nil
}

// ===== QUERY OPERATIONS =====

func (r *lessonRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.LessonFilters) ([]*models.Lesson, int64, error) {
	var lessons []*models.Lesson
	var total int64

	query := r.applyLessonFilters(r.getDB(tx).WithContext(ctx).Model(&models.Lesson{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count lessons")
	}

	query = applyPaginationAndSort(query, map[string]string{
		"scheduled_date": "scheduled_date",
		"created_at":     "created_at",
		"subject":        "subject",
		"status":         "status",
	}, "scheduled_date", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Student.Profile").Preload("Tutor.Profile").Find(&lessons).Error; err != nil {
		return nil, 0, handleDBError(err, "list lessons")
	}
	return lessons, total, nil
}

func (r *lessonRepository) Count(ctx context.Context, tx *gorm.DB, filters repositories.LessonFilters) (int64, error) {
	var total int64
	query := r.applyLessonFilters(r.getDB(tx).WithContext(ctx).Model(&models.Lesson{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return 0, handleDBError(err, "count lessons")
	}
	return total, nil
}

func (r *lessonRepository) applyLessonFilters(query *gorm.DB, filters repositories.LessonFilters) *gorm.DB {
	// A non-nil empty slice scopes to nobody (gorm renders IN (NULL)).
	if filters.StudentIDs != nil {
		query = query.Where("student_id IN ?", filters.StudentIDs)
	}
	if filters.TutorID != nil {
		query = query.Where("tutor_id = ?", *filters.TutorID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if filters.From != nil {
		query = query.Where("scheduled_date >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("scheduled_date < ?", *filters.To)
	}
	return query
}
