package validator

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/yolymatics/tutoring-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateLessonTransition checks a lesson status change.
// Completed and cancelled lessons are final.
func (bv *BusinessValidator) ValidateLessonTransition(current, next models.LessonStatus) ValidationErrors {
	var errors ValidationErrors

	allowedTransitions := map[models.LessonStatus][]models.LessonStatus{
		models.LessonScheduled: {models.LessonCompleted, models.LessonCancelled},
		models.LessonCompleted: {},
		models.LessonCancelled: {},
	}

	allowed := false
	for _, s := range allowedTransitions[current] {
		if s == next {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	return errors
}

// ValidateHoursAvailable checks a student has enough purchased hours left for a lesson.
func (bv *BusinessValidator) ValidateHoursAvailable(student *models.Student, lessonHours float64) ValidationErrors {
	if student.TotalHoursPurchased == 0 {
		// Pay-as-you-go students are not tracked against a balance.
		return nil
	}
	if student.HoursRemaining() < lessonHours {
		return ValidationErrors{{
			Field:   "hours_remaining",
			Message: fmt.Sprintf("student has %.2f hours remaining, lesson needs %.2f", student.HoursRemaining(), lessonHours),
			Value:   student.HoursRemaining(),
			Rule:    "hours_balance",
		}}
	}
	return nil
}

// ValidateSubmission checks a homework can accept a submission.
func (bv *BusinessValidator) ValidateSubmission(hw *models.Homework, text *string, fileURL *string) ValidationErrors {
	var errors ValidationErrors

	if hw.Status == models.HomeworkGraded {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "homework has already been graded",
			Value:   hw.Status,
			Rule:    "business_logic",
		})
	}

	if (text == nil || strings.TrimSpace(*text) == "") && (fileURL == nil || *fileURL == "") {
		errors = append(errors, ValidationError{
			Field:   "submission_text",
			Message: "either text or a file is required",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateGrade checks a score against the maximum.
func (bv *BusinessValidator) ValidateGrade(score, maxScore float64) ValidationErrors {
	if maxScore <= 0 {
		return ValidationErrors{{Field: "max_score", Message: "must be positive", Value: maxScore, Rule: "business_logic"}}
	}
	if score < 0 || score > maxScore {
		return ValidationErrors{{Field: "score", Message: fmt.Sprintf("must be between 0 and %.2f", maxScore), Value: score, Rule: "business_logic"}}
	}
	return nil
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})

	bv.validate.RegisterValidation("lesson_status", func(fl validator.FieldLevel) bool {
		return models.LessonStatus(fl.Field().String()).IsValid()
	})

	// Rating validation (1-5)
	bv.validate.RegisterValidation("rating", func(fl validator.FieldLevel) bool {
		rating := fl.Field().Int()
		return rating >= 1 && rating <= 5
	})

	// Lesson length (15 minutes to 8 hours)
	bv.validate.RegisterValidation("lesson_duration", func(fl validator.FieldLevel) bool {
		minutes := fl.Field().Int()
		return minutes >= 15 && minutes <= 480
	})

	bv.validate.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return len(s) >= 1 && len(s) <= 100
	})

	bv.validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})

	bv.validate.RegisterValidation("not_past", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		if !ok {
			return false
		}
		// Allow a minute of clock skew between client and server.
		return !t.Before(time.Now().Add(-time.Minute))
	})
}

func isStrongPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
