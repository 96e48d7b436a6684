package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// ===== SHARED ERRORS =====

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFoundError reports whether err means the requested row does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a unique constraint violation.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// ===== SHARED FILTER STRUCTS =====

type ProfileFilters struct {
	Role      *models.UserRole `json:"role"`
	Query     string           `json:"query"` // matches full_name or email
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	SortBy    string           `json:"sort_by"`    // "created_at", "full_name", "email", "role"
	SortOrder string           `json:"sort_order"` // "asc", "desc"
}

type StudentFilters struct {
	ParentID *string `json:"parent_id"`
	TutorID  *string `json:"tutor_id"` // students with at least one lesson with this tutor
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
}

type LessonFilters struct {
	StudentIDs []string             `json:"student_ids"`
	TutorID    *string              `json:"tutor_id"`
	Status     *models.LessonStatus `json:"status"`
	Subject    *string              `json:"subject"`
	From       *time.Time           `json:"from"`
	To         *time.Time           `json:"to"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
	SortBy     string               `json:"sort_by"` // "scheduled_date", "created_at", "subject", "status"
	SortOrder  string               `json:"sort_order"`
}

type HomeworkFilters struct {
	StudentIDs []string               `json:"student_ids"`
	TutorID    *string                `json:"tutor_id"`
	LessonID   *string                `json:"lesson_id"`
	Status     *models.HomeworkStatus `json:"status"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
	SortBy     string                 `json:"sort_by"` // "due_date", "created_at", "title", "status"
	SortOrder  string                 `json:"sort_order"`
}

type FeedbackFilters struct {
	LessonID   *string  `json:"lesson_id"`
	TutorID    *string  `json:"tutor_id"`
	StudentIDs []string `json:"student_ids"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

type PerformanceFilters struct {
	StudentIDs []string `json:"student_ids"`
	Subject    *string  `json:"subject"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

type FileFilters struct {
	AssociatedID   *string                 `json:"associated_id"`
	AssociatedType *models.FileAssociation `json:"associated_type"`
	UploadedBy     *string                 `json:"uploaded_by"`
	Limit          int                     `json:"limit"`
	Offset         int                     `json:"offset"`
}

// ===== SHARED REPORT STRUCTS =====

type StudentHoursRow struct {
	StudentID      string  `json:"student_id"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	HoursPurchased float64 `json:"hours_purchased"`
	HoursUsed      float64 `json:"hours_used"`
}

func (r StudentHoursRow) HoursRemaining() float64 {
	return max(r.HoursPurchased-r.HoursUsed, 0)
}

type MemberCounts struct {
	Students int64 `json:"students"`
	Tutors   int64 `json:"tutors"`
	Parents  int64 `json:"parents"`
}
