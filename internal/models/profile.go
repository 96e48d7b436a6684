package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile is the application-level user record carrying role and display
// attributes. There is exactly one per authenticated user.
type Profile struct {
	ID       string   `json:"id" gorm:"primaryKey;size:36"`
	UserID   string   `json:"user_id" gorm:"uniqueIndex;not null;size:36"`
	Email    string   `json:"email" gorm:"not null;size:255;index"`
	FullName string   `json:"full_name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Role     UserRole `json:"role" gorm:"type:varchar(20);not null;default:student;index" validate:"required,user_role"`
	Phone    *string  `json:"phone" gorm:"size:30" validate:"omitempty,max=30"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = DefaultRole
	}
	if !p.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}

func (p *Profile) BeforeSave(tx *gorm.DB) error {
	if p.Role != "" && !p.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}

// Student holds the student-specific attributes of a profile.
type Student struct {
	ID                  string                      `json:"id" gorm:"primaryKey;size:36"`
	UserID              *string                     `json:"user_id" gorm:"uniqueIndex;size:36"`
	ParentID            *string                     `json:"parent_id" gorm:"index;size:36"` // parent user id
	Grade               *string                     `json:"grade" gorm:"size:50"`
	Subjects            datatypes.JSONSlice[string] `json:"subjects" gorm:"type:jsonb"`
	TotalHoursPurchased float64                     `json:"total_hours_purchased" gorm:"not null;default:0"`
	HoursUsed           float64                     `json:"hours_used" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:UserID"`
}

func (Student) TableName() string {
	return "students"
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Student) HoursRemaining() float64 {
	remaining := s.TotalHoursPurchased - s.HoursUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

type Tutor struct {
	ID             string                      `json:"id" gorm:"primaryKey;size:36"`
	UserID         *string                     `json:"user_id" gorm:"uniqueIndex;size:36"`
	Bio            *string                     `json:"bio" gorm:"type:text"`
	HourlyRate     *float64                    `json:"hourly_rate"`
	Qualifications *string                     `json:"qualifications" gorm:"type:text"`
	Subjects       datatypes.JSONSlice[string] `json:"subjects" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:UserID"`
}

func (Tutor) TableName() string {
	return "tutors"
}

func (t *Tutor) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Parent struct {
	ID     string  `json:"id" gorm:"primaryKey;size:36"`
	UserID *string `json:"user_id" gorm:"uniqueIndex;size:36"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile  *Profile  `json:"profile,omitempty" gorm:"foreignKey:UserID;references:UserID"`
	Children []Student `json:"children,omitempty" gorm:"foreignKey:ParentID;references:UserID"`
}

func (Parent) TableName() string {
	return "parents"
}

func (p *Parent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
