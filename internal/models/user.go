package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is the authentication identity. It is owned by the auth provider and
// is distinct from the application Profile.
type User struct {
	ID               string            `json:"id" gorm:"primaryKey;size:36"`
	Email            string            `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash     string            `json:"-" gorm:"size:255"`
	Metadata         datatypes.JSONMap `json:"user_metadata" gorm:"type:jsonb"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	LastSignInAt     *time.Time        `json:"last_sign_in_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// MetadataString returns a string field from the user metadata, or "".
func (u *User) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	if v, ok := u.Metadata[key].(string); ok {
		return v
	}
	return ""
}

func (u *User) IsEmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// DisplayName picks the name used for a freshly provisioned profile:
// metadata full_name, then the email local part, then "User".
func (u *User) DisplayName() string {
	if u == nil {
		return "User"
	}
	if name := strings.TrimSpace(u.MetadataString("full_name")); name != "" {
		return name
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return u.Email
	}
	return "User"
}
