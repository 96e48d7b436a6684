package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

const (
	dashboardListSize = 10
	childListSize     = 5
)

// ===== SERVICE INTERFACE =====

type DashboardService interface {
	Admin(ctx context.Context, actor Actor) (*models.AdminDashboard, error)
	Tutor(ctx context.Context, actor Actor) (*models.TutorDashboard, error)
	Student(ctx context.Context, actor Actor) (*models.StudentDashboard, error)
	Parent(ctx context.Context, actor Actor) (*models.ParentDashboard, error)
}

// ===== SERVICE IMPLEMENTATION =====

type dashboardService struct {
	repo   repositories.Repository
	stats  *cache.CacheHelper
	logger *slog.Logger
	now    func() time.Time
}

func NewDashboardService(repo repositories.Repository, cacheManager *cache.CacheManager, logger *slog.Logger) DashboardService {
	return &dashboardService{
		repo:   repo,
		stats:  cacheManager.Stats,
		logger: logger,
		now:    time.Now,
	}
}

func (s *dashboardService) Admin(ctx context.Context, actor Actor) (*models.AdminDashboard, error) {
	if err := requireRole(actor, models.RoleAdmin, "dashboard"); err != nil {
		return nil, err
	}

	var out models.AdminDashboard
	err := s.stats.CacheOrExecute(ctx, "dashboard:admin", &out, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		s.logger.Info("Building admin dashboard")

		members, err := s.repo.Dashboard().CountMembers(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}

		weekStart, weekEnd := weekBounds(s.now())
		lessonsThisWeek, err := s.repo.Lesson().Count(ctx, nil, repositories.LessonFilters{From: &weekStart, To: &weekEnd})
		if err != nil {
			return nil, fmt.Errorf("failed to count lessons this week: %w", err)
		}

		completed, err := s.countByStatus(ctx, nil, models.LessonCompleted)
		if err != nil {
			return nil, err
		}
		cancelled, err := s.countByStatus(ctx, nil, models.LessonCancelled)
		if err != nil {
			return nil, err
		}

		rating, err := s.repo.Feedback().AverageRating(ctx, nil, nil)
		if err != nil {
			s.logger.Warn("Failed to get average rating", "error", err)
			rating = 0
		}

		pending, err := s.repo.Dashboard().CountPendingSubmissions(ctx, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending submissions: %w", err)
		}

		return &models.AdminDashboard{
			TotalStudents:     members.Students,
			TotalTutors:       members.Tutors,
			TotalParents:      members.Parents,
			LessonsThisWeek:   lessonsThisWeek,
			CompletedLessons:  completed,
			CancelledLessons:  cancelled,
			AverageRating:     roundFloat(rating, 2),
			PendingSubmission: pending,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *dashboardService) Tutor(ctx context.Context, actor Actor) (*models.TutorDashboard, error) {
	if err := requireRole(actor, models.RoleTutor, "dashboard"); err != nil {
		return nil, err
	}

	var out models.TutorDashboard
	err := s.stats.CacheOrExecute(ctx, "dashboard:tutor:"+actor.UserID, &out, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		tutor, err := s.repo.Tutor().GetByUserID(ctx, nil, actor.UserID)
		if err != nil {
			return nil, notFoundOr(err, ErrTutorNotFound)
		}

		upcoming, err := s.upcomingLessons(ctx, repositories.LessonFilters{TutorID: &tutor.ID}, dashboardListSize)
		if err != nil {
			return nil, err
		}

		pending, err := s.repo.Homework().PendingSubmissions(ctx, nil, &tutor.ID, dashboardListSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending submissions: %w", err)
		}

		students, err := s.repo.Dashboard().CountDistinctStudents(ctx, nil, tutor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count students: %w", err)
		}

		monthStart := startOfMonth(s.now())
		monthEnd := monthStart.AddDate(0, 1, 0)
		status := models.LessonCompleted
		completed, err := s.repo.Lesson().Count(ctx, nil, repositories.LessonFilters{
			TutorID: &tutor.ID,
			Status:  &status,
			From:    &monthStart,
			To:      &monthEnd,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count completed lessons: %w", err)
		}

		rating, err := s.repo.Feedback().AverageRating(ctx, nil, &tutor.ID)
		if err != nil {
			s.logger.Warn("Failed to get tutor rating", "error", err, "tutor_id", tutor.ID)
			rating = 0
		}

		return &models.TutorDashboard{
			UpcomingLessons:    upcoming,
			PendingGrading:     pending,
			StudentCount:       students,
			CompletedThisMonth: completed,
			AverageRating:      roundFloat(rating, 2),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *dashboardService) Student(ctx context.Context, actor Actor) (*models.StudentDashboard, error) {
	if err := requireRole(actor, models.RoleStudent, "dashboard"); err != nil {
		return nil, err
	}

	var out models.StudentDashboard
	err := s.stats.CacheOrExecute(ctx, "dashboard:student:"+actor.UserID, &out, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		student, err := s.repo.Student().GetByUserID(ctx, nil, actor.UserID)
		if err != nil {
			return nil, notFoundOr(err, ErrStudentNotFound)
		}
		ids := []string{student.ID}

		upcoming, err := s.upcomingLessons(ctx, repositories.LessonFilters{StudentIDs: ids}, dashboardListSize)
		if err != nil {
			return nil, err
		}

		assigned := models.HomeworkAssigned
		open, _, err := s.repo.Homework().List(ctx, nil, repositories.HomeworkFilters{
			StudentIDs: ids,
			Status:     &assigned,
			Limit:      dashboardListSize,
			SortBy:     "due_date",
			SortOrder:  "asc",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list open homework: %w", err)
		}

		scores, _, err := s.repo.Feedback().ListPerformance(ctx, nil, repositories.PerformanceFilters{StudentIDs: ids, Limit: childListSize})
		if err != nil {
			return nil, fmt.Errorf("failed to list recent scores: %w", err)
		}

		return &models.StudentDashboard{
			UpcomingLessons: upcoming,
			OpenHomework:    open,
			RecentScores:    scores,
			HoursPurchased:  student.TotalHoursPurchased,
			HoursUsed:       student.HoursUsed,
			HoursRemaining:  student.HoursRemaining(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *dashboardService) Parent(ctx context.Context, actor Actor) (*models.ParentDashboard, error) {
	if err := requireRole(actor, models.RoleParent, "dashboard"); err != nil {
		return nil, err
	}

	var out models.ParentDashboard
	err := s.stats.CacheOrExecute(ctx, "dashboard:parent:"+actor.UserID, &out, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		children, err := s.repo.Student().GetByParent(ctx, nil, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list children: %w", err)
		}

		summaries := make([]models.ChildSummary, 0, len(children))
		for _, child := range children {
			ids := []string{child.ID}

			upcoming, err := s.upcomingLessons(ctx, repositories.LessonFilters{StudentIDs: ids}, childListSize)
			if err != nil {
				return nil, err
			}
			scores, _, err := s.repo.Feedback().ListPerformance(ctx, nil, repositories.PerformanceFilters{StudentIDs: ids, Limit: childListSize})
			if err != nil {
				return nil, fmt.Errorf("failed to list child scores: %w", err)
			}

			summaries = append(summaries, models.ChildSummary{
				Student:         child,
				UpcomingLessons: upcoming,
				RecentScores:    scores,
				HoursRemaining:  child.HoursRemaining(),
			})
		}

		return &models.ParentDashboard{Children: summaries}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== HELPERS =====

func (s *dashboardService) upcomingLessons(ctx context.Context, filters repositories.LessonFilters, limit int) ([]*models.Lesson, error) {
	now := s.now().UTC()
	status := models.LessonScheduled
	filters.Status = &status
	filters.From = &now
	filters.Limit = limit
	filters.SortBy = "scheduled_date"
	filters.SortOrder = "asc"

	lessons, _, err := s.repo.Lesson().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming lessons: %w", err)
	}
	return lessons, nil
}

func (s *dashboardService) countByStatus(ctx context.Context, tutorID *string, status models.LessonStatus) (int64, error) {
	n, err := s.repo.Lesson().Count(ctx, nil, repositories.LessonFilters{TutorID: tutorID, Status: &status})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s lessons: %w", status, err)
	}
	return n, nil
}

func requireRole(actor Actor, role models.Role, resource string) error {
	if actor.Is(role) {
		return nil
	}
	return NewPermissionError(actor.UserID, "", resource, ActionRead, fmt.Sprintf("requires role %s", role))
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
