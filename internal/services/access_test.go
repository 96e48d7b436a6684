package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/models"
)

func stateWithRole(role models.Role) *models.AuthState {
	return &models.AuthState{
		User:    &models.User{ID: "user-" + string(role)},
		Profile: &models.Profile{UserID: "user-" + string(role), Role: role},
	}
}

func TestDecide_EveryRoleAgainstEveryRoute(t *testing.T) {
	for _, required := range models.AllRoles() {
		for _, actual := range models.AllRoles() {
			required, actual := required, actual
			t.Run(string(actual)+"_on_"+string(required)+"_route", func(t *testing.T) {
				got := Decide(stateWithRole(actual), &required)
				if actual == required {
					assert.Equal(t, AccessGranted, got)
				} else {
					assert.Equal(t, AccessRedirect, got)
				}
			})
		}
	}
}

func TestDecide(t *testing.T) {
	tutor := models.RoleTutor

	tests := []struct {
		name     string
		state    *models.AuthState
		required *models.Role
		want     AccessDecision
	}{
		{name: "nil state", state: nil, want: AccessRedirect},
		{name: "signed out", state: &models.AuthState{}, want: AccessRedirect},
		{name: "loading wins over everything", state: &models.AuthState{User: &models.User{ID: "u"}, Loading: true}, required: &tutor, want: AccessLoading},
		{name: "user without profile", state: &models.AuthState{User: &models.User{ID: "u"}}, want: AccessRedirect},
		{name: "user without profile on role route", state: &models.AuthState{User: &models.User{ID: "u"}}, required: &tutor, want: AccessRedirect},
		{name: "any profile on open route", state: stateWithRole(models.RoleParent), want: AccessGranted},
		{name: "unknown role never matches", state: stateWithRole(models.Role("owner")), required: &tutor, want: AccessRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state, tt.required))
		})
	}
}

func TestAccessDecision_String(t *testing.T) {
	assert.Equal(t, "loading", AccessLoading.String())
	assert.Equal(t, "granted", AccessGranted.String())
	assert.Equal(t, "redirect", AccessRedirect.String())
}

func TestAuthorizer(t *testing.T) {
	a, err := NewAuthorizer()
	require.NoError(t, err)

	tests := []struct {
		role models.Role
		obj  string
		act  string
		want bool
	}{
		{models.RoleAdmin, ResourceReports, ActionRead, true},
		{models.RoleAdmin, ResourceProfiles, ActionManage, true},
		{models.RoleTutor, ResourceLessons, ActionCreate, true},
		{models.RoleTutor, ResourceLessons, ActionComplete, true},
		{models.RoleTutor, ResourceHomework, ActionGrade, true},
		{models.RoleTutor, ResourceLessons, ActionDelete, false},
		{models.RoleTutor, ResourceReports, ActionRead, false},
		{models.RoleTutor, ResourceStudents, ActionManage, false},
		{models.RoleStudent, ResourceHomework, ActionSubmit, true},
		{models.RoleStudent, ResourceFeedback, ActionCreate, true},
		{models.RoleStudent, ResourceHomework, ActionGrade, false},
		{models.RoleStudent, ResourceLessons, ActionCreate, false},
		{models.RoleParent, ResourceStudents, ActionRead, true},
		{models.RoleParent, ResourceFeedback, ActionCreate, true},
		{models.RoleParent, ResourceFiles, ActionUpload, false},
		{models.RoleParent, ResourceHomework, ActionSubmit, false},
		{models.Role("owner"), ResourceLessons, ActionRead, false},
		{models.Role(""), ResourceLessons, ActionRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"_"+tt.obj+"_"+tt.act, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Can(tt.role, tt.obj, tt.act))
		})
	}

	err = a.Check("u1", models.RoleStudent, ResourceReports, ActionRead)
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, ResourceReports, perr.Resource)
}
