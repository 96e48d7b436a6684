package services

import (
	"context"
)

// ServiceManager owns the lifecycle of every service and hands them to the
// HTTP layer.
type ServiceManager interface {
	// Identity
	Auth() AuthService
	Resolver() *SessionResolver
	Authorizer() *Authorizer

	// People
	Profile() ProfileService
	Member() MemberService

	// Tutoring records
	Lesson() LessonService
	Homework() HomeworkService
	Feedback() FeedbackService
	File() FileService

	// Read models
	Dashboard() DashboardService
	Report() ReportService

	// Lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
