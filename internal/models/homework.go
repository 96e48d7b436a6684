package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HomeworkStatus string

const (
	HomeworkAssigned  HomeworkStatus = "assigned"
	HomeworkSubmitted HomeworkStatus = "submitted"
	HomeworkGraded    HomeworkStatus = "graded"
)

type Homework struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	LessonID    *string        `json:"lesson_id" gorm:"index;size:36"`
	StudentID   string         `json:"student_id" gorm:"not null;index;size:36"`
	TutorID     string         `json:"tutor_id" gorm:"not null;index;size:36"`
	Title       string         `json:"title" gorm:"not null;size:200"`
	Description *string        `json:"description" gorm:"type:text"`
	Subject     string         `json:"subject" gorm:"not null;size:100"`
	DueDate     *time.Time     `json:"due_date" gorm:"index"`
	Status      HomeworkStatus `json:"status" gorm:"type:varchar(20);not null;default:assigned;index"`
	FileURL     *string        `json:"file_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Submissions []Submission `json:"submissions,omitempty" gorm:"foreignKey:HomeworkID"`
}

func (Homework) TableName() string {
	return "homework"
}

func (h *Homework) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HomeworkAssigned
	}
	return nil
}

type Submission struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	HomeworkID     string     `json:"homework_id" gorm:"not null;index;size:36"`
	StudentID      string     `json:"student_id" gorm:"not null;index;size:36"`
	SubmissionText *string    `json:"submission_text" gorm:"type:text"`
	FileURL        *string    `json:"file_url" gorm:"size:500"`
	SubmittedAt    time.Time  `json:"submitted_at" gorm:"not null"`
	Score          *float64   `json:"score"`
	Feedback       *string    `json:"feedback" gorm:"type:text"`
	GradedBy       *string    `json:"graded_by" gorm:"size:36"`
	GradedAt       *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now().UTC()
	}
	return nil
}

func (s *Submission) IsGraded() bool {
	return s.GradedAt != nil
}
