package services

import (
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

// ===== REQUEST DTOs =====

type SignUpRequest = validator.SignUpRequest
type SignInRequest = validator.SignInRequest
type RefreshRequest = validator.RefreshRequest
type ConfirmEmailRequest = validator.ConfirmEmailRequest

type UpdateProfileRequest = validator.UpdateProfileRequest
type ChangeRoleRequest = validator.ChangeRoleRequest
type UpdateStudentRequest = validator.UpdateStudentRequest
type PurchaseHoursRequest = validator.PurchaseHoursRequest
type UpdateTutorRequest = validator.UpdateTutorRequest

type CreateLessonRequest = validator.CreateLessonRequest
type UpdateLessonRequest = validator.UpdateLessonRequest
type CompleteLessonRequest = validator.CompleteLessonRequest

type CreateHomeworkRequest = validator.CreateHomeworkRequest
type UpdateHomeworkRequest = validator.UpdateHomeworkRequest
type SubmitHomeworkRequest = validator.SubmitHomeworkRequest
type GradeSubmissionRequest = validator.GradeSubmissionRequest

type CreateFeedbackRequest = validator.CreateFeedbackRequest
type RecordPerformanceRequest = validator.RecordPerformanceRequest

// ===== RESPONSE DTOs =====

// AuthResponse is returned by every auth transition. RedirectTo is the
// dashboard of the resolved role, or the login path when there is no profile.
type AuthResponse struct {
	User                 *models.User    `json:"user"`
	Profile              *models.Profile `json:"profile"`
	Session              *models.Session `json:"session,omitempty"`
	RedirectTo           string          `json:"redirect_to"`
	ConfirmationRequired bool            `json:"confirmation_required"`
	Message              string          `json:"message,omitempty"`
}

// ===== ACTOR =====

// Actor is the signed-in caller a service acts for.
type Actor struct {
	UserID string
	Email  string
	Role   models.Role
}

// ActorFromState returns the caller of a resolved request, if it has a profile.
func ActorFromState(state *models.AuthState) (Actor, bool) {
	role, ok := state.Role()
	if !ok || state.User == nil {
		return Actor{}, false
	}
	return Actor{UserID: state.User.ID, Email: state.User.Email, Role: role}, true
}

func (a Actor) Is(role models.Role) bool {
	return a.Role == role
}
