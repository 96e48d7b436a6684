package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type UserRole string

// Role is the name used by routing code.
type Role = UserRole

const (
	RoleAdmin   UserRole = "admin"
	RoleTutor   UserRole = "tutor"
	RoleStudent UserRole = "student"
	RoleParent  UserRole = "parent"
)

// DefaultRole is assigned to every auto-provisioned profile.
const DefaultRole = RoleStudent

var ErrInvalidRole = errors.New("invalid role")

// AllRoles lists the closed set of roles in display order.
func AllRoles() []UserRole {
	return []UserRole{RoleAdmin, RoleTutor, RoleStudent, RoleParent}
}

// ParseRole converts s into a UserRole, rejecting anything outside the enum.
func ParseRole(s string) (UserRole, error) {
	r := UserRole(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTutor, RoleStudent, RoleParent:
		return true
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}

// DashboardPath is where a user with this role lands after signing in.
func (r UserRole) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleTutor:
		return "/tutor"
	case RoleStudent:
		return "/student"
	case RoleParent:
		return "/parent"
	default:
		return "/"
	}
}

func (r UserRole) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte(`""`), nil
	}
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
	}
	return json.Marshal(string(r))
}

func (r *UserRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*r = ""
		return nil
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer so an out-of-enum role never reaches the database.
func (r UserRole) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
	}
	return string(r), nil
}

func (r *UserRole) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*r = ""
		return nil
	default:
		return fmt.Errorf("cannot scan %T into UserRole", value)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
