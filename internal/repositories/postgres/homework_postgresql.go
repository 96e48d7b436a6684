package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type homeworkRepository struct {
	db *gorm.DB
}

func NewHomeworkPostgreSQL(db *gorm.DB) repositories.HomeworkRepository {
	return &homeworkRepository{db: db}
}

func (r *homeworkRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *homeworkRepository) Create(ctx context.Context, tx *gorm.DB, homework *models.Homework) error {
	if err := r.getDB(tx).WithContext(ctx).Omit("Submissions").Create(homework).Error; err != nil {
		return handleDBError(err, "create homework")
	}
	return nil
}

func (r *homeworkRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Homework, error) {
	var homework models.Homework
	if err := r.getDB(tx).WithContext(ctx).First(&homework, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get homework by id")
	}
	return &homework, nil
}

func (r *homeworkRepository) GetByIDWithSubmissions(ctx context.Context, tx *gorm.DB, id string) (*models.Homework, error) {
	var homework models.Homework
	err := r.getDB(tx).WithContext(ctx).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB {
			return db.Order("submitted_at DESC")
		}).
		First(&homework, "id = ?", id).Error
	if err != nil {
		return nil, handleDBError(err, "get homework with submissions")
	}
	return &homework, nil
}

func (r *homeworkRepository) Update(ctx context.Context, tx *gorm.DB, homework *models.Homework) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Homework{}).
		Where("id = ?", homework.ID).
		Updates(map[string]interface{}{
			"title":       homework.Title,
			"description": homework.Description,
			"subject":     homework.Subject,
			"due_date":    homework.DueDate,
			"status":      homework.Status,
			"file_url":    homework.FileURL,
		}).Error
	return handleDBError(err, "update homework")
}

func (r *homeworkRepository) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	db := r.getDB(tx).WithContext(ctx)
	if err := db.Where("homework_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
		return handleDBError(err, "delete homework submissions")
	}
	result := db.Delete(&models.Homework{}, "id = ?", id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete homework")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete homework")
	}
	return nil
}

func (r *homeworkRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.HomeworkFilters) ([]*models.Homework, int64, error) {
	var items []*models.Homework
	var total int64

	query := r.applyHomeworkFilters(r.getDB(tx).WithContext(ctx).Model(&models.Homework{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count homework")
	}

	query = applyPaginationAndSort(query, map[string]string{
		"due_date":   "due_date",
		"created_at": "created_at",
		"title":      "title",
		"status":     "status",
	}, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&items).Error; err != nil {
		return nil, 0, handleDBError(err, "list homework")
	}
	return items, total, nil
}

func (r *homeworkRepository) applyHomeworkFilters(query *gorm.DB, filters repositories.HomeworkFilters) *gorm.DB {
	if filters.StudentIDs != nil {
		query = query.Where("student_id IN ?", filters.StudentIDs)
	}
	if filters.TutorID != nil {
		query = query.Where("tutor_id = ?", *filters.TutorID)
	}
	if filters.LessonID != nil {
		query = query.Where("lesson_id = ?", *filters.LessonID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return query
}

// ===== SUBMISSIONS =====

func (r *homeworkRepository) CreateSubmission(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	if err := r.getDB(tx).WithContext(ctx).Create(submission).Error; err != nil {
		return handleDBError(err, "create submission")
	}
	return nil
}

func (r *homeworkRepository) GetSubmission(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error) {
	var submission models.Submission
	if err := r.getDB(tx).WithContext(ctx).First(&submission, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get submission")
	}
	return &submission, nil
}

func (r *homeworkRepository) UpdateSubmission(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{
			"submission_text": submission.SubmissionText,
			"file_url":        submission.FileURL,
			"score":           submission.Score,
			"feedback":        submission.Feedback,
			"graded_by":       submission.GradedBy,
			"graded_at":       submission.GradedAt,
		}).Error
	return handleDBError(err, "update submission")
}

func (r *homeworkRepository) ListSubmissions(ctx context.Context, tx *gorm.DB, homeworkID string) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := r.getDB(tx).WithContext(ctx).
		Where("homework_id = ?", homeworkID).
		Order("submitted_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, handleDBError(err, "list submissions")
	}
	return submissions, nil
}

func (r *homeworkRepository) PendingSubmissions(ctx context.Context, tx *gorm.DB, tutorID *string, limit int) ([]*models.Submission, error) {
	var submissions []*models.Submission
	query := r.getDB(tx).WithContext(ctx).
		Table("submissions s").
		Select("s.*").
		Joins("JOIN homework h ON h.id = s.homework_id").
		Where("s.graded_at IS NULL")
	if tutorID != nil {
		query = query.Where("h.tutor_id = ?", *tutorID)
	}
	err := applyPagination(query.Order("s.submitted_at ASC"), limit, 0).Find(&submissions).Error
	if err != nil {
		return nil, handleDBError(err, "list pending submissions")
	}
	return submissions, nil
}
