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

func TestFeedbackService_Leave(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.feedback()
	lesson := c.schedule(t, 60)

	_, err := svc.Leave(ctx, c.student, &CreateFeedbackRequest{LessonID: lesson.ID, Rating: testutil.Ptr(5)})
	var rule *BusinessRuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "lesson_not_completed", rule.Rule)

	_, err = c.h.lessons().Complete(ctx, c.tutor, lesson.ID, nil)
	require.NoError(t, err)

	_, err = svc.Leave(ctx, c.student, &CreateFeedbackRequest{LessonID: lesson.ID, Rating: testutil.Ptr(6)})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs, "ratings run from 1 to 5")

	outsider, _ := c.h.member("outsider@example.com", "Olga", models.RoleParent)
	_, err = svc.Leave(ctx, outsider, &CreateFeedbackRequest{LessonID: lesson.ID, Rating: testutil.Ptr(1)})
	assert.ErrorIs(t, err, ErrForbidden)

	left, err := svc.Leave(ctx, c.parent, &CreateFeedbackRequest{LessonID: lesson.ID, Rating: testutil.Ptr(4), Comments: testutil.Ptr("Clear explanations")})
	require.NoError(t, err)
	assert.Equal(t, c.studentRow.ID, left.StudentID)
	assert.Equal(t, c.tutorRow.ID, left.TutorID)
	assert.Len(t, c.h.domain.GetEventsByType(events.EventFeedbackLeft), 1)

	_, err = svc.Leave(ctx, c.student, &CreateFeedbackRequest{LessonID: lesson.ID, Rating: testutil.Ptr(5)})
	assert.ErrorIs(t, err, ErrFeedbackExists, "one entry per lesson")

	_, err = svc.Leave(ctx, c.student, &CreateFeedbackRequest{LessonID: "missing", Rating: testutil.Ptr(5)})
	assert.ErrorIs(t, err, ErrLessonNotFound)

	for _, actor := range []Actor{c.admin, c.tutor, c.student, c.parent} {
		_, total, err := svc.List(ctx, actor, repositories.FeedbackFilters{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "role %s", actor.Role)
	}
	_, total, err := svc.List(ctx, outsider, repositories.FeedbackFilters{})
	require.NoError(t, err)
	assert.Zero(t, total)

	rating, err := c.h.repo.Feedback().AverageRating(ctx, nil, &c.tutorRow.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rating)
}

func TestFeedbackService_RecordPerformance(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.h.feedback()

	_, err := svc.RecordPerformance(ctx, c.tutor, &RecordPerformanceRequest{StudentID: c.studentRow.ID, Subject: "Physics", Score: 7, MaxScore: 10})
	assert.ErrorIs(t, err, ErrForbidden, "tutors only record for students they teach")

	lesson := c.schedule(t, 60)
	quiz := "quiz"
	got, err := svc.RecordPerformance(ctx, c.tutor, &RecordPerformanceRequest{
		StudentID:      c.studentRow.ID,
		LessonID:       &lesson.ID,
		Subject:        " Physics ",
		AssignmentType: &quiz,
		Score:          7,
		MaxScore:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Physics", got.Subject)
	assert.InDelta(t, 70.0, got.Percentage(), 0.0001)
	assert.False(t, got.DateRecorded.IsZero())

	_, err = svc.RecordPerformance(ctx, c.tutor, &RecordPerformanceRequest{StudentID: c.studentRow.ID, Subject: "Physics", Score: 101})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "score", verrs[0].Field)

	_, err = svc.RecordPerformance(ctx, c.student, &RecordPerformanceRequest{StudentID: c.studentRow.ID, Subject: "Physics", Score: 100})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.RecordPerformance(ctx, c.admin, &RecordPerformanceRequest{StudentID: "missing", Subject: "Physics", Score: 1})
	assert.ErrorIs(t, err, ErrStudentNotFound)

	physics := "Physics"
	for _, actor := range []Actor{c.admin, c.tutor, c.student, c.parent} {
		scores, total, err := svc.ListPerformance(ctx, actor, repositories.PerformanceFilters{Subject: &physics})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total, "role %s", actor.Role)
		assert.Equal(t, got.ID, scores[0].ID)
	}

	stranger, _ := c.h.member("stranger@example.com", "Stan", models.RoleTutor)
	_, total, err := svc.ListPerformance(ctx, stranger, repositories.PerformanceFilters{})
	require.NoError(t, err)
	assert.Zero(t, total, "a tutor with no students sees nothing")
}
