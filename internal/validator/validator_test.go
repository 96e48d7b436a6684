package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/models"
)

type roleRequest struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Rating   int    `json:"rating" validate:"omitempty,rating"`
}

type scheduleRequest struct {
	When     *time.Time `json:"when" validate:"omitempty,not_past"`
	Duration int        `json:"duration" validate:"required,lesson_duration"`
}

func TestValidate_UserRole(t *testing.T) {
	v := New()

	for _, r := range models.AllRoles() {
		assert.NoError(t, v.Validate(&roleRequest{Role: r}), "role %s", r)
	}

	err := v.Validate(&roleRequest{Role: "teacher"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "role", verrs[0].Field)
	assert.Equal(t, "user_role", verrs[0].Rule)
}

func TestValidate_FieldMessages(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		req    signUpRequest
		fields []string
	}{
		{"valid", signUpRequest{Email: "a@b.co", Password: "secret123"}, nil},
		{"bad email", signUpRequest{Email: "nope", Password: "secret123"}, []string{"email"}},
		{"weak password", signUpRequest{Email: "a@b.co", Password: "password"}, []string{"password"}},
		{"rating out of range", signUpRequest{Email: "a@b.co", Password: "secret123", Rating: 6}, []string{"rating"}},
		{"missing all", signUpRequest{}, []string{"email", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var got []string
			for _, e := range verrs {
				got = append(got, e.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidate_Schedule(t *testing.T) {
	v := New()
	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	assert.NoError(t, v.Validate(&scheduleRequest{When: &future, Duration: 60}))
	assert.Error(t, v.Validate(&scheduleRequest{When: &past, Duration: 60}))
	assert.Error(t, v.Validate(&scheduleRequest{Duration: 5}))
}

func TestBusiness_LessonTransition(t *testing.T) {
	bv := New().Business()

	tests := []struct {
		from, to models.LessonStatus
		ok       bool
	}{
		{models.LessonScheduled, models.LessonCompleted, true},
		{models.LessonScheduled, models.LessonCancelled, true},
		{models.LessonCompleted, models.LessonScheduled, false},
		{models.LessonCancelled, models.LessonCompleted, false},
		{models.LessonScheduled, models.LessonScheduled, false},
	}

	for _, tt := range tests {
		errs := bv.ValidateLessonTransition(tt.from, tt.to)
		assert.Equal(t, tt.ok, len(errs) == 0, "%s -> %s", tt.from, tt.to)
	}
}

func TestBusiness_HoursAndGrades(t *testing.T) {
	bv := New().Business()

	student := &models.Student{TotalHoursPurchased: 10, HoursUsed: 9.5}
	assert.Empty(t, bv.ValidateHoursAvailable(student, 0.5))
	assert.NotEmpty(t, bv.ValidateHoursAvailable(student, 1))
	assert.Empty(t, bv.ValidateHoursAvailable(&models.Student{}, 3))

	assert.Empty(t, bv.ValidateGrade(80, 100))
	assert.NotEmpty(t, bv.ValidateGrade(101, 100))
	assert.NotEmpty(t, bv.ValidateGrade(-1, 100))
	assert.NotEmpty(t, bv.ValidateGrade(1, 0))

	text := "my answer"
	assert.Empty(t, bv.ValidateSubmission(&models.Homework{Status: models.HomeworkAssigned}, &text, nil))
	assert.NotEmpty(t, bv.ValidateSubmission(&models.Homework{Status: models.HomeworkAssigned}, nil, nil))
	assert.NotEmpty(t, bv.ValidateSubmission(&models.Homework{Status: models.HomeworkGraded}, &text, nil))
}
