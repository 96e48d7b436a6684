package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/testutil"
)

func (c *classroom) dashboards(now time.Time) DashboardService {
	svc := NewDashboardService(c.h.repo, c.h.cache, testutil.Logger())
	svc.(*dashboardService).now = func() time.Time { return now }
	return svc
}

func TestDashboardService_Admin(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()

	done := c.schedule(t, 60)
	_, err := c.h.lessons().Complete(ctx, c.tutor, done.ID, nil)
	require.NoError(t, err)
	dropped := c.schedule(t, 60)
	_, err = c.h.lessons().Cancel(ctx, c.tutor, dropped.ID)
	require.NoError(t, err)

	svc := c.dashboards(done.ScheduledDate)
	got, err := svc.Admin(ctx, c.admin)
	require.NoError(t, err)
	assert.Equal(t, c.h.countRows("students"), got.TotalStudents)
	assert.Equal(t, int64(1), got.TotalTutors)
	assert.Equal(t, int64(1), got.TotalParents)
	assert.Equal(t, int64(2), got.LessonsThisWeek)
	assert.Equal(t, int64(1), got.CompletedLessons)
	assert.Equal(t, int64(1), got.CancelledLessons)
	assert.Zero(t, got.PendingSubmission)

	// Served from cache until a write invalidates it.
	require.NoError(t, c.h.db.Exec("DELETE FROM lessons").Error)
	cached, err := svc.Admin(ctx, c.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.CompletedLessons)

	cache.InvalidateDashboards(ctx, c.h.cache)
	fresh, err := svc.Admin(ctx, c.admin)
	require.NoError(t, err)
	assert.Zero(t, fresh.CompletedLessons)
	assert.Zero(t, fresh.LessonsThisWeek)
}

func TestDashboardService_RoleGate(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()
	svc := c.dashboards(time.Now())

	_, err := svc.Admin(ctx, c.tutor)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Tutor(ctx, c.student)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Student(ctx, c.parent)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Parent(ctx, c.admin)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDashboardService_TutorStudentParent(t *testing.T) {
	c := newClassroom(t)
	ctx := context.Background()

	c.buyHours(t, 5)
	upcoming := c.schedule(t, 60)
	finished := c.schedule(t, 120)
	_, err := c.h.lessons().Complete(ctx, c.tutor, finished.ID, nil)
	require.NoError(t, err)

	hw := c.assign(t, nil)
	sub, err := c.h.homework().Submit(ctx, c.student, hw.ID, &SubmitHomeworkRequest{SubmissionText: testutil.Ptr("answers")})
	require.NoError(t, err)

	svc := c.dashboards(time.Now())

	tutor, err := svc.Tutor(ctx, c.tutor)
	require.NoError(t, err)
	require.Len(t, tutor.UpcomingLessons, 1)
	assert.Equal(t, upcoming.ID, tutor.UpcomingLessons[0].ID)
	require.Len(t, tutor.PendingGrading, 1)
	assert.Equal(t, sub.ID, tutor.PendingGrading[0].ID)
	assert.Equal(t, int64(1), tutor.StudentCount)

	student, err := svc.Student(ctx, c.student)
	require.NoError(t, err)
	assert.Len(t, student.UpcomingLessons, 1)
	assert.Empty(t, student.OpenHomework, "submitted homework is no longer open")
	assert.Equal(t, 5.0, student.HoursPurchased)
	assert.InDelta(t, 2.0, student.HoursUsed, 0.0001)
	assert.InDelta(t, 3.0, student.HoursRemaining, 0.0001)

	parent, err := svc.Parent(ctx, c.parent)
	require.NoError(t, err)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, c.studentRow.ID, parent.Children[0].Student.ID)
	assert.Len(t, parent.Children[0].UpcomingLessons, 1)
	assert.InDelta(t, 3.0, parent.Children[0].HoursRemaining, 0.0001)

	childless, _ := c.h.member("childless@example.com", "Cal", models.RoleParent)
	empty, err := svc.Parent(ctx, childless)
	require.NoError(t, err)
	assert.Empty(t, empty.Children)
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 4.33, roundFloat(4.3333, 2))
	assert.Equal(t, 4.67, roundFloat(4.6666, 2))
	assert.Equal(t, 0.0, roundFloat(0, 2))
}
