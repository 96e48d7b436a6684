package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LessonStatus string

const (
	LessonScheduled LessonStatus = "scheduled"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
)

func (s LessonStatus) IsValid() bool {
	switch s {
	case LessonScheduled, LessonCompleted, LessonCancelled:
		return true
	}
	return false
}

type Lesson struct {
	ID              string       `json:"id" gorm:"primaryKey;size:36"`
	StudentID       string       `json:"student_id" gorm:"not null;index;size:36"`
	TutorID         string       `json:"tutor_id" gorm:"not null;index;size:36"`
	Subject         string       `json:"subject" gorm:"not null;size:100"`
	Topic           *string      `json:"topic" gorm:"size:200"`
	ScheduledDate   time.Time    `json:"scheduled_date" gorm:"not null;index"`
	DurationMinutes int          `json:"duration_minutes" gorm:"not null;default:60"`
	Status          LessonStatus `json:"status" gorm:"type:varchar(20);not null;default:scheduled;index"`
	Notes           *string      `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Tutor   *Tutor   `json:"tutor,omitempty" gorm:"foreignKey:TutorID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LessonScheduled
	}
	return nil
}

// Hours is the lesson length in hours, used for student hour accounting.
func (l *Lesson) Hours() float64 {
	return float64(l.DurationMinutes) / 60.0
}

type Feedback struct {
	ID        string  `json:"id" gorm:"primaryKey;size:36"`
	LessonID  string  `json:"lesson_id" gorm:"not null;index;size:36"`
	StudentID string  `json:"student_id" gorm:"not null;index;size:36"`
	TutorID   string  `json:"tutor_id" gorm:"not null;index;size:36"`
	Rating    *int    `json:"rating" gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)"`
	Comments  *string `json:"comments" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

type Performance struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	StudentID      string    `json:"student_id" gorm:"not null;index;size:36"`
	LessonID       *string   `json:"lesson_id" gorm:"index;size:36"`
	Subject        string    `json:"subject" gorm:"not null;size:100"`
	AssignmentType *string   `json:"assignment_type" gorm:"size:50"`
	Score          float64   `json:"score" gorm:"not null"`
	MaxScore       float64   `json:"max_score" gorm:"not null;default:100"`
	Notes          *string   `json:"notes" gorm:"type:text"`
	DateRecorded   time.Time `json:"date_recorded" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
}

func (Performance) TableName() string {
	return "performance"
}

func (p *Performance) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DateRecorded.IsZero() {
		p.DateRecorded = time.Now().UTC()
	}
	return nil
}

// Percentage returns score as a percentage of max score.
func (p *Performance) Percentage() float64 {
	if p.MaxScore <= 0 {
		return 0
	}
	return p.Score / p.MaxScore * 100
}
