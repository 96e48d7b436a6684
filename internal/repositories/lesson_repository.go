package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// LessonRepository interface for lesson operations
type LessonRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Lesson, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id string) (*models.Lesson, error) // student and tutor profiles
	Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	List(ctx context.Context, tx *gorm.DB, filters LessonFilters) ([]*models.Lesson, int64, error)
	Count(ctx context.Context, tx *gorm.DB, filters LessonFilters) (int64, error)
}

// HomeworkRepository interface for homework and submissions
type HomeworkRepository interface {
	Create(ctx context.Context, tx *gorm.DB, homework *models.Homework) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Homework, error)
	GetByIDWithSubmissions(ctx context.Context, tx *gorm.DB, id string) (*models.Homework, error)
	Update(ctx context.Context, tx *gorm.DB, homework *models.Homework) error
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	List(ctx context.Context, tx *gorm.DB, filters HomeworkFilters) ([]*models.Homework, int64, error)

	CreateSubmission(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetSubmission(ctx context.Context, tx *gorm.DB, id string) (*models.Submission, error)
	UpdateSubmission(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	ListSubmissions(ctx context.Context, tx *gorm.DB, homeworkID string) ([]*models.Submission, error)
	// PendingSubmissions lists ungraded submissions, optionally for one tutor's homework.
	PendingSubmissions(ctx context.Context, tx *gorm.DB, tutorID *string, limit int) ([]*models.Submission, error)
}

// FeedbackRepository interface for lesson feedback and performance records
type FeedbackRepository interface {
	Create(ctx context.Context, tx *gorm.DB, feedback *models.Feedback) error
	ExistsForLesson(ctx context.Context, tx *gorm.DB, lessonID, studentID string) (bool, error)
	List(ctx context.Context, tx *gorm.DB, filters FeedbackFilters) ([]*models.Feedback, int64, error)
	AverageRating(ctx context.Context, tx *gorm.DB, tutorID *string) (float64, error)

	CreatePerformance(ctx context.Context, tx *gorm.DB, performance *models.Performance) error
	ListPerformance(ctx context.Context, tx *gorm.DB, filters PerformanceFilters) ([]*models.Performance, int64, error)
}

// FileRepository interface for uploaded file metadata
type FileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.File, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	List(ctx context.Context, tx *gorm.DB, filters FileFilters) ([]*models.File, int64, error)
}
