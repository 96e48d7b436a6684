package validator

import (
	"time"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// ===== AUTH =====

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password,max=128"`
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ConfirmEmailRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}

// ===== PROFILES AND MEMBERS =====

type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
}

type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

type UpdateStudentRequest struct {
	Grade        *string  `json:"grade" validate:"omitempty,max=50"`
	Subjects     []string `json:"subjects" validate:"omitempty,max=20,dive,subject"`
	ParentUserID *string  `json:"parent_user_id" validate:"omitempty,max=36"`
}

type PurchaseHoursRequest struct {
	Hours float64 `json:"hours" validate:"required,gt=0,lte=1000"`
}

type UpdateTutorRequest struct {
	Bio            *string  `json:"bio" validate:"omitempty,max=2000"`
	HourlyRate     *float64 `json:"hourly_rate" validate:"omitempty,gte=0,lte=10000"`
	Qualifications *string  `json:"qualifications" validate:"omitempty,max=2000"`
	Subjects       []string `json:"subjects" validate:"omitempty,max=20,dive,subject"`
}

// ===== LESSONS =====

type CreateLessonRequest struct {
	StudentID       string    `json:"student_id" validate:"required,max=36"`
	TutorID         *string   `json:"tutor_id" validate:"omitempty,max=36"` // admins only; tutors schedule for themselves
	Subject         string    `json:"subject" validate:"required,subject"`
	Topic           *string   `json:"topic" validate:"omitempty,max=200"`
	ScheduledDate   time.Time `json:"scheduled_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,lesson_duration"`
	Notes           *string   `json:"notes" validate:"omitempty,max=5000"`
}

type UpdateLessonRequest struct {
	Subject         *string    `json:"subject" validate:"omitempty,subject"`
	Topic           *string    `json:"topic" validate:"omitempty,max=200"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,lesson_duration"`
	Notes           *string    `json:"notes" validate:"omitempty,max=5000"`
}

type CompleteLessonRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=5000"`
}

// ===== HOMEWORK =====

type CreateHomeworkRequest struct {
	LessonID    *string    `json:"lesson_id" validate:"omitempty,max=36"`
	StudentID   string     `json:"student_id" validate:"required,max=36"`
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Subject     string     `json:"subject" validate:"required,subject"`
	DueDate     *time.Time `json:"due_date" validate:"omitempty,not_past"`
	FileURL     *string    `json:"file_url" validate:"omitempty,url,max=500"`
}

type UpdateHomeworkRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	FileURL     *string    `json:"file_url" validate:"omitempty,url,max=500"`
}

type SubmitHomeworkRequest struct {
	SubmissionText *string `json:"submission_text" validate:"omitempty,max=20000"`
	FileURL        *string `json:"file_url" validate:"omitempty,url,max=500"`
}

type GradeSubmissionRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	MaxScore float64 `json:"max_score" validate:"omitempty,gt=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

// ===== FEEDBACK AND PERFORMANCE =====

type CreateFeedbackRequest struct {
	LessonID string  `json:"lesson_id" validate:"required,max=36"`
	Rating   *int    `json:"rating" validate:"omitempty,rating"`
	Comments *string `json:"comments" validate:"omitempty,max=5000"`
}

type RecordPerformanceRequest struct {
	StudentID      string     `json:"student_id" validate:"required,max=36"`
	LessonID       *string    `json:"lesson_id" validate:"omitempty,max=36"`
	Subject        string     `json:"subject" validate:"required,subject"`
	AssignmentType *string    `json:"assignment_type" validate:"omitempty,max=50"`
	Score          float64    `json:"score" validate:"gte=0"`
	MaxScore       float64    `json:"max_score" validate:"omitempty,gt=0"`
	Notes          *string    `json:"notes" validate:"omitempty,max=5000"`
	DateRecorded   *time.Time `json:"date_recorded"`
}
