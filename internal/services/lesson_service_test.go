package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/testutil"
)

type classroom struct {
	h       *harness
	admin   Actor
	tutor   Actor
	student Actor
	parent  Actor

	tutorRow   *models.Tutor
	studentRow *models.Student
}

// newClassroom seeds one member of each role, with the student linked to the parent.
func newClassroom(t *testing.T) *classroom {
	t.Helper()
	h := newHarness(t)
	ctx := context.Background()

	c := &classroom{h: h}
	c.admin, _ = h.member("admin@example.com", "Ada Admin", models.RoleAdmin)
	c.tutor, _ = h.member("tutor@example.com", "Tom Tutor", models.RoleTutor)
	c.student, _ = h.member("student@example.com", "Sam Student", models.RoleStudent)
	c.parent, _ = h.member("parent@example.com", "Pat Parent", models.RoleParent)
	c.tutorRow = h.tutorRow(c.tutor)
	c.studentRow = h.studentRow(c.student)

	linked, err := h.members().UpdateStudent(ctx, c.admin, c.studentRow.ID, &UpdateStudentRequest{ParentUserID: &c.parent.UserID})
	require.NoError(t, err)
	c.studentRow = linked
	return c
}

func (c *classroom) schedule(t *testing.T, minutes int) *models.Lesson {
	t.Helper()
	lesson, err := c.h.lessons().Create(context.Background(), c.tutor, &CreateLessonRequest{
		StudentID:       c.studentRow.ID,
		Subject:         "Mathematics",
		ScheduledDate:   time.Now().Add(48 * time.Hour),
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return lesson
}

func (c *classroom) buyHours(t *testing.T, hours float64) {
	t.Helper()
	_, err := c.h.members().PurchaseHours(context.Background(), c.admin, c.studentRow.ID, &PurchaseHoursRequest{Hours: hours})
	require.NoError(t, err)
}

func TestLessonService_Create(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.lessons()

	t.Run("tutor schedules for themselves", func(t *testing.T) {
		lesson := c.schedule(t, 90)
		assert.Equal(t, c.tutorRow.ID, lesson.TutorID)
		assert.Equal(t, models.LessonScheduled, lesson.Status)
		assert.NotEmpty(t, c.h.domain.GetEventsByType(events.EventLessonScheduled))
	})

	t.Run("tutor cannot schedule for another tutor", func(t *testing.T) {
		other, _ := c.h.member("other-tutor@example.com", "Olive", models.RoleTutor)
		_, err := svc.Create(ctx, c.tutor, &CreateLessonRequest{
			StudentID: c.studentRow.ID, TutorID: &c.h.tutorRow(other).ID,
			Subject: "Physics", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 60,
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin must name a tutor", func(t *testing.T) {
		_, err := svc.Create(ctx, c.admin, &CreateLessonRequest{
			StudentID: c.studentRow.ID, Subject: "Physics", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 60,
		})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, "tutor_id", verrs[0].Field)

		lesson, err := svc.Create(ctx, c.admin, &CreateLessonRequest{
			StudentID: c.studentRow.ID, TutorID: &c.tutorRow.ID,
			Subject: "Physics", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, c.tutorRow.ID, lesson.TutorID)
	})

	t.Run("students cannot schedule", func(t *testing.T) {
		_, err := svc.Create(ctx, c.student, &CreateLessonRequest{
			StudentID: c.studentRow.ID, Subject: "Art", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 60,
		})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.Create(ctx, c.tutor, &CreateLessonRequest{
			StudentID: "missing", Subject: "Art", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 60,
		})
		assert.ErrorIs(t, err, ErrStudentNotFound)
	})

	t.Run("duration out of range", func(t *testing.T) {
		_, err := svc.Create(ctx, c.tutor, &CreateLessonRequest{
			StudentID: c.studentRow.ID, Subject: "Art", ScheduledDate: time.Now().Add(time.Hour), DurationMinutes: 5,
		})
		var verrs ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})
}

func TestLessonService_CompleteConsumesHours(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.lessons()

	c.buyHours(t, 10)
	lesson := c.schedule(t, 90)

	done, err := svc.Complete(ctx, c.tutor, lesson.ID, &CompleteLessonRequest{Notes: testutil.Ptr("Covered fractions")})
	require.NoError(t, err)
	assert.Equal(t, models.LessonCompleted, done.Status)
	assert.Equal(t, "Covered fractions", *done.Notes)

	student := c.h.studentRow(c.student)
	assert.InDelta(t, 1.5, student.HoursUsed, 0.0001)
	assert.InDelta(t, 8.5, student.HoursRemaining(), 0.0001)

	_, err = svc.Complete(ctx, c.tutor, lesson.ID, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "status_transition", verrs[0].Rule)
	assert.InDelta(t, 1.5, c.h.studentRow(c.student).HoursUsed, 0.0001, "a second completion charges nothing")

	_, err = svc.Cancel(ctx, c.tutor, lesson.ID)
	assert.ErrorAs(t, err, &verrs)
}

func TestLessonService_CompleteWithoutEnoughHoursRollsBack(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.lessons()

	c.buyHours(t, 0.5)
	lesson := c.schedule(t, 60)

	_, err := svc.Complete(ctx, c.tutor, lesson.ID, nil)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "hours_balance", verrs[0].Rule)

	stored, err := svc.GetByID(ctx, c.tutor, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LessonScheduled, stored.Status)
	assert.Zero(t, c.h.studentRow(c.student).HoursUsed)
}

func TestLessonService_PayAsYouGoIsNotCharged(t *testing.T) {
	c := newClassroom(t)
	lesson := c.schedule(t, 60)

	_, err := c.h.lessons().Complete(context.Background(), c.tutor, lesson.ID, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.h.studentRow(c.student).HoursUsed, 0.0001)
}

func TestLessonService_Scope(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.lessons()
	lesson := c.schedule(t, 60)

	outsider, _ := c.h.member("outsider@example.com", "Otto", models.RoleTutor)
	otherParent, _ := c.h.member("other-parent@example.com", "Opal", models.RoleParent)

	t.Run("reads", func(t *testing.T) {
		for _, actor := range []Actor{c.admin, c.tutor, c.student, c.parent} {
			got, err := svc.GetByID(ctx, actor, lesson.ID)
			require.NoError(t, err, "role %s", actor.Role)
			assert.Equal(t, lesson.ID, got.ID)
		}
		for _, actor := range []Actor{outsider, otherParent} {
			_, err := svc.GetByID(ctx, actor, lesson.ID)
			assert.ErrorIs(t, err, ErrLessonNotFound, "role %s", actor.Role)
		}
	})

	t.Run("listings", func(t *testing.T) {
		for _, actor := range []Actor{c.admin, c.tutor, c.student, c.parent} {
			_, total, err := svc.List(ctx, actor, repositories.LessonFilters{})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total, "role %s", actor.Role)
		}
		for _, actor := range []Actor{outsider, otherParent} {
			_, total, err := svc.List(ctx, actor, repositories.LessonFilters{})
			require.NoError(t, err)
			assert.Zero(t, total, "role %s", actor.Role)
		}

		// Asking for someone else's student narrows to nothing.
		_, total, err := svc.List(ctx, c.student, repositories.LessonFilters{StudentIDs: []string{"someone-else"}})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("writes", func(t *testing.T) {
		_, err := svc.Complete(ctx, outsider, lesson.ID, nil)
		assert.ErrorIs(t, err, ErrForbidden)
		_, err = svc.Cancel(ctx, c.student, lesson.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, c.tutor, lesson.ID), ErrForbidden)
	})
}

func TestLessonService_UpdateAndCancel(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.lessons()
	lesson := c.schedule(t, 60)

	updated, err := svc.Update(ctx, c.tutor, lesson.ID, &UpdateLessonRequest{
		Topic:           testutil.Ptr("Quadratics"),
		DurationMinutes: testutil.Ptr(45),
	})
	require.NoError(t, err)
	assert.Equal(t, "Quadratics", *updated.Topic)
	assert.Equal(t, 45, updated.DurationMinutes)

	cancelled, err := svc.Cancel(ctx, c.tutor, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LessonCancelled, cancelled.Status)

	_, err = svc.Update(ctx, c.tutor, lesson.ID, &UpdateLessonRequest{Topic: testutil.Ptr("Too late")})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "lesson_final", rule.Rule)

	require.NoError(t, svc.Delete(ctx, c.admin, lesson.ID))
	assert.ErrorIs(t, svc.Delete(ctx, c.admin, lesson.ID), ErrLessonNotFound)
}

func TestWeekBounds(t *testing.T) {
	// Wednesday 2026-10-21
	start, end := weekBounds(time.Date(2026, 10, 21, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), end)

	// Sunday belongs to the week that started the Monday before.
	start, _ = weekBounds(time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), start)
}
