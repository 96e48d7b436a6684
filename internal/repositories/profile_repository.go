package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// ProfileRepository interface for profile operations
type ProfileRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Profile, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []string) ([]*models.Profile, error)

	// CreateIfAbsent inserts profile unless one already exists for its user,
	// then returns the stored row. created reports whether this call inserted it.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, profile *models.Profile) (stored *models.Profile, created bool, err error)

	Update(ctx context.Context, tx *gorm.DB, profile *models.Profile) error
	UpdateRole(ctx context.Context, tx *gorm.DB, userID string, role models.UserRole) error
	Delete(ctx context.Context, tx *gorm.DB, userID string) error

	List(ctx context.Context, tx *gorm.DB, filters ProfileFilters) ([]*models.Profile, int64, error)
}

// StudentRepository interface for the student extension rows
type StudentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, student *models.Student) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error)
	Update(ctx context.Context, tx *gorm.DB, student *models.Student) error
	List(ctx context.Context, tx *gorm.DB, filters StudentFilters) ([]*models.Student, int64, error)

	// EnsureForUser returns the student row of a user, creating an empty one if needed.
	EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error)

	// GetByParent lists the children linked to a parent user.
	GetByParent(ctx context.Context, tx *gorm.DB, parentUserID string) ([]*models.Student, error)
	IDsByParent(ctx context.Context, tx *gorm.DB, parentUserID string) ([]string, error)
	// IDsByTutor lists the students with at least one lesson with the tutor.
	IDsByTutor(ctx context.Context, tx *gorm.DB, tutorID string) ([]string, error)

	AddPurchasedHours(ctx context.Context, tx *gorm.DB, id string, hours float64) error
	AddUsedHours(ctx context.Context, tx *gorm.DB, id string, hours float64) error
}

// TutorRepository interface for the tutor extension rows
type TutorRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Tutor, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Tutor, error)
	Update(ctx context.Context, tx *gorm.DB, tutor *models.Tutor) error
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*models.Tutor, int64, error)
	EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Tutor, error)
}

// ParentRepository interface for the parent extension rows
type ParentRepository interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Parent, error)
	EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Parent, error)
}
