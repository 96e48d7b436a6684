package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/testutil"
)

func seedStudent(t *testing.T, db *gorm.DB, fullName string, parentUserID *string) *models.Student {
	t.Helper()
	ctx := context.Background()

	user := &models.User{Email: fullName + "@example.com"}
	require.NoError(t, NewUserPostgreSQL(db).Create(ctx, nil, user))
	_, _, err := NewProfilePostgreSQL(db).CreateIfAbsent(ctx, nil, &models.Profile{
		UserID: user.ID, Email: user.Email, FullName: fullName, Role: models.RoleStudent,
	})
	require.NoError(t, err)

	student, err := NewStudentPostgreSQL(db).EnsureForUser(ctx, nil, user.ID)
	require.NoError(t, err)
	if parentUserID != nil {
		student.ParentID = parentUserID
		require.NoError(t, NewStudentPostgreSQL(db).Update(ctx, nil, student))
	}
	return student
}

func seedTutor(t *testing.T, db *gorm.DB, fullName string) *models.Tutor {
	t.Helper()
	ctx := context.Background()

	user := &models.User{Email: fullName + "@example.com"}
	require.NoError(t, NewUserPostgreSQL(db).Create(ctx, nil, user))
	_, _, err := NewProfilePostgreSQL(db).CreateIfAbsent(ctx, nil, &models.Profile{
		UserID: user.ID, Email: user.Email, FullName: fullName, Role: models.RoleTutor,
	})
	require.NoError(t, err)

	tutor, err := NewTutorPostgreSQL(db).EnsureForUser(ctx, nil, user.ID)
	require.NoError(t, err)
	return tutor
}

func TestProfileRepository_CreateIfAbsent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProfilePostgreSQL(db)
	ctx := context.Background()

	first, created, err := repo.CreateIfAbsent(ctx, nil, &models.Profile{
		UserID: "user-1", Email: "a@example.com", FullName: "Ada",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleStudent, first.Role)

	second, created, err := repo.CreateIfAbsent(ctx, nil, &models.Profile{
		UserID: "user-1", Email: "a@example.com", FullName: "Someone Else", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada", second.FullName)
	assert.Equal(t, models.RoleStudent, second.Role)
}

func TestProfileRepository_CreateIfAbsentConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProfilePostgreSQL(db)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]struct{}{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, ok, err := repo.CreateIfAbsent(ctx, nil, &models.Profile{
				UserID: "user-race", Email: "race@example.com", FullName: "Race",
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[p.ID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", "user-race").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProfileRepository_UpdateRole(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProfilePostgreSQL(db)
	ctx := context.Background()

	_, _, err := repo.CreateIfAbsent(ctx, nil, &models.Profile{UserID: "u", Email: "u@example.com", FullName: "U"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateRole(ctx, nil, "u", models.RoleTutor))
	p, err := repo.GetByUserID(ctx, nil, "u")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, p.Role)

	assert.ErrorIs(t, repo.UpdateRole(ctx, nil, "u", models.UserRole("owner")), models.ErrInvalidRole)
	assert.True(t, repositories.IsNotFoundError(repo.UpdateRole(ctx, nil, "missing", models.RoleAdmin)))
}

func TestProfileRepository_List(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProfilePostgreSQL(db)
	ctx := context.Background()

	for _, p := range []*models.Profile{
		{UserID: "1", Email: "ada@example.com", FullName: "Ada Lovelace", Role: models.RoleTutor},
		{UserID: "2", Email: "alan@example.com", FullName: "Alan Turing", Role: models.RoleStudent},
		{UserID: "3", Email: "grace@example.com", FullName: "Grace Hopper", Role: models.RoleStudent},
	} {
		_, _, err := repo.CreateIfAbsent(ctx, nil, p)
		require.NoError(t, err)
	}

	role := models.RoleStudent
	got, total, err := repo.List(ctx, nil, repositories.ProfileFilters{Role: &role, SortBy: "full_name"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "Alan Turing", got[0].FullName)

	got, total, err = repo.List(ctx, nil, repositories.ProfileFilters{Query: "LOVE"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "1", got[0].UserID)
}

func TestStudentRepository_HoursAndParents(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewStudentPostgreSQL(db)
	ctx := context.Background()

	parentUserID := "parent-user"
	child := seedStudent(t, db, "kid", &parentUserID)
	seedStudent(t, db, "other", nil)

	again, err := repo.EnsureForUser(ctx, nil, *child.UserID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, again.ID)

	require.NoError(t, repo.AddPurchasedHours(ctx, nil, child.ID, 10))
	require.NoError(t, repo.AddUsedHours(ctx, nil, child.ID, 1.5))
	got, err := repo.GetByID(ctx, nil, child.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, got.TotalHoursPurchased, 0.001)
	assert.InDelta(t, 8.5, got.HoursRemaining(), 0.001)

	assert.True(t, repositories.IsNotFoundError(repo.AddUsedHours(ctx, nil, "missing", 1)))

	ids, err := repo.IDsByParent(ctx, nil, parentUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, ids)

	children, err := repo.GetByParent(ctx, nil, parentUserID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.NotNil(t, children[0].Profile)
	assert.Equal(t, "kid", children[0].Profile.FullName)
}

func TestLessonRepository_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewLessonPostgreSQL(db)
	ctx := context.Background()

	s1 := seedStudent(t, db, "s1", nil)
	s2 := seedStudent(t, db, "s2", nil)
	tutor := seedTutor(t, db, "tutor")

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	for i, sid := range []string{s1.ID, s1.ID, s2.ID} {
		require.NoError(t, repo.Create(ctx, nil, &models.Lesson{
			StudentID:       sid,
			TutorID:         tutor.ID,
			Subject:         "Math",
			ScheduledDate:   base.Add(time.Duration(i) * 24 * time.Hour),
			DurationMinutes: 60,
		}))
	}

	lessons, total, err := repo.List(ctx, nil, repositories.LessonFilters{StudentIDs: []string{s1.ID}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, lessons, 2)
	require.NotNil(t, lessons[0].Student)
	assert.Equal(t, "s1", lessons[0].Student.Profile.FullName)
	assert.Equal(t, "tutor", lessons[0].Tutor.Profile.FullName)

	_, total, err = repo.List(ctx, nil, repositories.LessonFilters{StudentIDs: []string{}})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total, "empty scope matches nobody")

	from := base.Add(12 * time.Hour)
	to := base.Add(36 * time.Hour)
	count, err := repo.Count(ctx, nil, repositories.LessonFilters{From: &from, To: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = repo.Count(ctx, nil, repositories.LessonFilters{TutorID: &tutor.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestHomeworkRepository_PendingSubmissions(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewHomeworkPostgreSQL(db)
	ctx := context.Background()

	student := seedStudent(t, db, "pupil", nil)
	tutor := seedTutor(t, db, "teacher")

	hw := &models.Homework{StudentID: student.ID, TutorID: tutor.ID, Title: "Fractions", Subject: "Math"}
	require.NoError(t, repo.Create(ctx, nil, hw))
	assert.Equal(t, models.HomeworkAssigned, hw.Status)

	text := "1/2 + 1/4 = 3/4"
	sub := &models.Submission{HomeworkID: hw.ID, StudentID: student.ID, SubmissionText: &text}
	require.NoError(t, repo.CreateSubmission(ctx, nil, sub))

	pending, err := repo.PendingSubmissions(ctx, nil, &tutor.ID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	now := time.Now().UTC()
	score := 90.0
	sub.Score = &score
	sub.GradedAt = &now
	require.NoError(t, repo.UpdateSubmission(ctx, nil, sub))

	pending, err = repo.PendingSubmissions(ctx, nil, &tutor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.Delete(ctx, nil, hw.ID))
	_, err = repo.GetSubmission(ctx, nil, sub.ID)
	assert.True(t, repositories.IsNotFoundError(err))
}

func TestFeedbackRepository_AverageRating(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFeedbackPostgreSQL(db)
	ctx := context.Background()

	avg, err := repo.AverageRating(ctx, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, avg)

	for _, r := range []int{4, 5} {
		rating := r
		require.NoError(t, repo.Create(ctx, nil, &models.Feedback{
			LessonID: "l-" + string(rune('a'+r)), StudentID: "s", TutorID: "t", Rating: &rating,
		}))
	}

	tutorID := "t"
	avg, err = repo.AverageRating(ctx, nil, &tutorID)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, avg, 0.001)

	exists, err := repo.ExistsForLesson(ctx, nil, "l-e", "s")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDashboardRepository(t *testing.T) {
	db := testutil.NewDB(t)
	dash := NewDashboardRepository(db)
	ctx := context.Background()

	student := seedStudent(t, db, "learner", nil)
	tutor := seedTutor(t, db, "coach")
	require.NoError(t, NewStudentPostgreSQL(db).AddPurchasedHours(ctx, nil, student.ID, 5))

	scheduled := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, NewLessonPostgreSQL(db).Create(ctx, nil, &models.Lesson{
		StudentID: student.ID, TutorID: tutor.ID, Subject: "Physics", ScheduledDate: scheduled, DurationMinutes: 90,
	}))

	counts, err := dash.CountMembers(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Students)
	assert.EqualValues(t, 1, counts.Tutors)
	assert.EqualValues(t, 0, counts.Parents)

	n, err := dash.CountDistinctStudents(ctx, nil, tutor.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	hours, err := dash.StudentHours(ctx, nil)
	require.NoError(t, err)
	require.Len(t, hours, 1)
	assert.Equal(t, "learner", hours[0].FullName)
	assert.InDelta(t, 5, hours[0].HoursRemaining(), 0.001)

	rows, err := dash.LessonReport(ctx, nil, scheduled.Add(-time.Hour), scheduled.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "learner", rows[0].StudentName)
	assert.Equal(t, "coach", rows[0].TutorName)
	assert.Equal(t, 90, rows[0].DurationMinutes)
}
