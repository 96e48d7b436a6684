package services

import (
	"errors"
	"fmt"

	"github.com/yolymatics/tutoring-service/internal/validator"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrTutorNotFound      = errors.New("tutor not found")
	ErrParentNotFound     = errors.New("parent not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrHomeworkNotFound   = errors.New("homework not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrFileNotFound       = errors.New("file not found")

	ErrUnauthorized       = errors.New("not authenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUnsupported        = errors.New("operation not supported")

	ErrFeedbackExists = errors.New("feedback already submitted for this lesson")
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrFileTypeDenied = errors.New("file type not allowed")
)

type ValidationErrors = validator.ValidationErrors

// PermissionError reports that a user may not perform an action on a resource.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// BusinessRuleError is a request that is well formed but violates a domain rule.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}
