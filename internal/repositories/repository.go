package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository of the service
type Repository interface {
	// Identity
	Auth() AuthProvider
	User() UserRepository

	// People
	Profile() ProfileRepository
	Student() StudentRepository
	Tutor() TutorRepository
	Parent() ParentRepository

	// Tutoring records
	Lesson() LessonRepository
	Homework() HomeworkRepository
	Feedback() FeedbackRepository
	File() FileRepository

	Dashboard() DashboardRepository

	// DB exposes the handle passed as tx to repository methods.
	DB() *gorm.DB

	// Transaction support
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
