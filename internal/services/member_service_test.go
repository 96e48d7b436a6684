package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/testutil"
)

func TestProfileService_UpdateMe(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()

	updated, err := c.h.profiles().UpdateMe(ctx, c.student, &UpdateProfileRequest{
		FullName: testutil.Ptr("  Samantha Student "),
		Phone:    testutil.Ptr("+44 20 7946 0000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Samantha Student", updated.FullName)
	assert.Equal(t, "+44 20 7946 0000", *updated.Phone)

	cleared, err := c.h.profiles().UpdateMe(ctx, c.student, &UpdateProfileRequest{Phone: testutil.Ptr(" ")})
	require.NoError(t, err)
	assert.Nil(t, cleared.Phone)
	assert.Equal(t, models.RoleStudent, cleared.Role, "profile edits never touch the role")
}

func TestProfileService_ReadAndList(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.profiles()

	me, err := svc.GetByUserID(ctx, c.parent, c.parent.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Pat Parent", me.FullName)

	_, err = svc.GetByUserID(ctx, c.admin, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	tutors := models.RoleTutor
	listed, total, err := svc.List(ctx, c.admin, repositories.ProfileFilters{Role: &tutors})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c.tutor.UserID, listed[0].UserID)

	bogus := models.UserRole("owner")
	_, _, err = svc.List(ctx, c.admin, repositories.ProfileFilters{Role: &bogus})
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, _, err = svc.List(ctx, c.parent, repositories.ProfileFilters{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProfileService_ChangeRole(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.profiles()

	promoted, err := svc.ChangeRole(ctx, c.admin, c.student.UserID, &ChangeRoleRequest{Role: models.RoleTutor})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, promoted.Role)

	_, err = c.h.repo.Tutor().GetByUserID(ctx, nil, c.student.UserID)
	assert.NoError(t, err, "a tutor row is created with the new role")

	changed := c.h.domain.GetEventsByType(events.EventProfileRoleChanged)
	require.Len(t, changed, 1)

	_, err = svc.ChangeRole(ctx, c.admin, c.admin.UserID, &ChangeRoleRequest{Role: models.RoleStudent})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "self_demotion", rule.Rule)

	_, err = svc.ChangeRole(ctx, c.tutor, c.student.UserID, &ChangeRoleRequest{Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ChangeRole(ctx, c.admin, c.student.UserID, &ChangeRoleRequest{Role: models.UserRole("owner")})
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.ChangeRole(ctx, c.admin, "missing", &ChangeRoleRequest{Role: models.RoleParent})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_Delete(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.profiles()

	var rule *BusinessRuleError
	require.ErrorAs(t, svc.Delete(ctx, c.admin, c.admin.UserID), &rule)
	assert.Equal(t, "self_delete", rule.Rule)

	assert.ErrorIs(t, svc.Delete(ctx, c.tutor, c.parent.UserID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, c.admin, c.parent.UserID))
	assert.ErrorIs(t, svc.Delete(ctx, c.admin, c.parent.UserID), ErrProfileNotFound)
}

func TestMemberService_StudentVisibility(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.members()

	for _, actor := range []Actor{c.admin, c.student, c.parent} {
		got, err := svc.GetStudent(ctx, actor, c.studentRow.ID)
		require.NoError(t, err, "role %s", actor.Role)
		assert.Equal(t, c.studentRow.ID, got.ID)
	}

	// Tutors see a student once they have taught them.
	_, err := svc.GetStudent(ctx, c.tutor, c.studentRow.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	c.schedule(t, 60)
	_, err = svc.GetStudent(ctx, c.tutor, c.studentRow.ID)
	assert.NoError(t, err)

	_, total, err := svc.ListStudents(ctx, c.tutor, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	children, err := svc.MyChildren(ctx, c.parent)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, c.studentRow.ID, children[0].ID)

	_, total, err = svc.ListStudents(ctx, c.student, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, err = svc.MyChildren(ctx, c.student)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetStudent(ctx, c.admin, "missing")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestMemberService_UpdateStudent(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.members()

	mine, err := svc.UpdateStudent(ctx, c.student, c.studentRow.ID, &UpdateStudentRequest{
		Grade:    testutil.Ptr("Year 9 "),
		Subjects: []string{"Mathematics", " mathematics", "Physics"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Year 9", *mine.Grade)
	assert.Equal(t, []string{"Mathematics", "Physics"}, []string(mine.Subjects))

	_, err = svc.UpdateStudent(ctx, c.student, c.studentRow.ID, &UpdateStudentRequest{ParentUserID: &c.student.UserID})
	assert.ErrorIs(t, err, ErrForbidden, "students cannot pick their own parent")

	_, err = svc.UpdateStudent(ctx, c.admin, c.studentRow.ID, &UpdateStudentRequest{ParentUserID: &c.tutor.UserID})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "parent_role", rule.Rule)

	_, err = svc.UpdateStudent(ctx, c.admin, c.studentRow.ID, &UpdateStudentRequest{ParentUserID: testutil.Ptr("missing")})
	assert.ErrorIs(t, err, ErrParentNotFound)

	unlinked, err := svc.UpdateStudent(ctx, c.admin, c.studentRow.ID, &UpdateStudentRequest{ParentUserID: testutil.Ptr("")})
	require.NoError(t, err)
	assert.Nil(t, unlinked.ParentID)

	children, err := svc.MyChildren(ctx, c.parent)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestMemberService_PurchaseHours(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.members()

	got, err := svc.PurchaseHours(ctx, c.admin, c.studentRow.ID, &PurchaseHoursRequest{Hours: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.TotalHoursPurchased)

	got, err = svc.PurchaseHours(ctx, c.admin, c.studentRow.ID, &PurchaseHoursRequest{Hours: 2.5})
	require.NoError(t, err)
	assert.Equal(t, 6.5, got.TotalHoursPurchased)

	_, err = svc.PurchaseHours(ctx, c.admin, c.studentRow.ID, &PurchaseHoursRequest{Hours: -1})
	var verrs ValidationErrors
	assert.ErrorAs(t, err, &verrs)

	_, err = svc.PurchaseHours(ctx, c.parent, c.studentRow.ID, &PurchaseHoursRequest{Hours: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.PurchaseHours(ctx, c.admin, "missing", &PurchaseHoursRequest{Hours: 1})
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestMemberService_Tutors(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.members()

	updated, err := svc.UpdateMyTutor(ctx, c.tutor, &UpdateTutorRequest{
		Bio:        testutil.Ptr("Maths specialist"),
		HourlyRate: testutil.Ptr(45.0),
		Subjects:   []string{"Mathematics"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maths specialist", *updated.Bio)

	got, err := svc.GetTutor(ctx, c.parent, c.tutorRow.ID)
	require.NoError(t, err)
	assert.Equal(t, 45.0, *got.HourlyRate)

	_, total, err := svc.ListTutors(ctx, c.student, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, err = svc.UpdateMyTutor(ctx, c.student, &UpdateTutorRequest{Bio: testutil.Ptr("nope")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetTutor(ctx, c.admin, "missing")
	assert.ErrorIs(t, err, ErrTutorNotFound)
}
