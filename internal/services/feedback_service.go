package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

// FeedbackService covers lesson ratings and performance records.
type FeedbackService interface {
	Leave(ctx context.Context, actor Actor, req *CreateFeedbackRequest) (*models.Feedback, error)
	List(ctx context.Context, actor Actor, filters repositories.FeedbackFilters) ([]*models.Feedback, int64, error)

	RecordPerformance(ctx context.Context, actor Actor, req *RecordPerformanceRequest) (*models.Performance, error)
	ListPerformance(ctx context.Context, actor Actor, filters repositories.PerformanceFilters) ([]*models.Performance, int64, error)
}

type feedbackService struct {
	repo       repositories.Repository
	cache      *cache.CacheManager
	authorizer *Authorizer
	publisher  events.EventPublisher
	validator  *validator.Validator
	logger     *slog.Logger
}

func NewFeedbackService(
	repo repositories.Repository,
	cacheManager *cache.CacheManager,
	authorizer *Authorizer,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) FeedbackService {
	return &feedbackService{
		repo:       repo,
		cache:      cacheManager,
		authorizer: authorizer,
		publisher:  publisher,
		validator:  validator,
		logger:     logger,
	}
}

// Leave rates a completed lesson. Each lesson takes one feedback entry.
func (s *feedbackService) Leave(ctx context.Context, actor Actor, req *CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFeedback, ActionCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var feedback *models.Feedback
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		lesson, err := s.repo.Lesson().GetByID(ctx, tx, req.LessonID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrLessonNotFound
			}
			return err
		}

		scope, err := resolveScope(ctx, s.repo, tx, actor)
		if err != nil {
			return err
		}
		if !scope.allows(lesson.StudentID, lesson.TutorID) {
			return NewPermissionError(actor.UserID, lesson.ID, ResourceFeedback, ActionCreate, "lesson is not in your scope")
		}
		if lesson.Status != models.LessonCompleted {
			return NewBusinessRuleError("lesson_not_completed", "feedback can only be left for completed lessons",
				map[string]interface{}{"status": lesson.Status})
		}

		exists, err := s.repo.Feedback().ExistsForLesson(ctx, tx, lesson.ID, lesson.StudentID)
		if err != nil {
			return err
		}
		if exists {
			return ErrFeedbackExists
		}

		feedback = &models.Feedback{
			LessonID:  lesson.ID,
			StudentID: lesson.StudentID,
			TutorID:   lesson.TutorID,
			Rating:    req.Rating,
			Comments:  req.Comments,
		}
		return s.repo.Feedback().Create(ctx, tx, feedback)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventFeedbackLeft, events.LessonEventData{
		LessonID:  feedback.LessonID,
		StudentID: feedback.StudentID,
		TutorID:   feedback.TutorID,
		Status:    string(models.LessonCompleted),
		ActorID:   actor.UserID,
	})
	s.logger.Info("Feedback left", "lesson_id", feedback.LessonID, "by", actor.UserID)
	return feedback, nil
}

func (s *feedbackService) List(ctx context.Context, actor Actor, filters repositories.FeedbackFilters) ([]*models.Feedback, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFeedback, ActionRead); err != nil {
		return nil, 0, err
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, 0, err
	}
	filters.StudentIDs = scope.studentIDs(filters.StudentIDs)
	filters.TutorID = scope.tutorID(filters.TutorID)

	items, total, err := s.repo.Feedback().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feedback: %w", err)
	}
	return items, total, nil
}

// ===== PERFORMANCE =====

func (s *feedbackService) RecordPerformance(ctx context.Context, actor Actor, req *RecordPerformanceRequest) (*models.Performance, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourcePerformance, ActionCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	maxScore := req.MaxScore
	if maxScore == 0 {
		maxScore = defaultMaxScore
	}
	if errs := s.validator.Business().ValidateGrade(req.Score, maxScore); len(errs) > 0 {
		return nil, errs
	}

	performance := &models.Performance{
		StudentID:      req.StudentID,
		LessonID:       req.LessonID,
		Subject:        strings.TrimSpace(req.Subject),
		AssignmentType: req.AssignmentType,
		Score:          req.Score,
		MaxScore:       maxScore,
		Notes:          req.Notes,
	}
	if req.DateRecorded != nil {
		performance.DateRecorded = req.DateRecorded.UTC()
	} else {
		performance.DateRecorded = time.Now().UTC()
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.Student().GetByID(ctx, tx, req.StudentID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}

		allowed, err := s.performanceScope(ctx, tx, actor)
		if err != nil {
			return err
		}
		if !allowed.allowsStudent(req.StudentID) {
			return NewPermissionError(actor.UserID, req.StudentID, ResourcePerformance, ActionCreate, "student is not in your scope")
		}

		if req.LessonID != nil && *req.LessonID != "" {
			lesson, err := s.repo.Lesson().GetByID(ctx, tx, *req.LessonID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrLessonNotFound
				}
				return err
			}
			if lesson.StudentID != req.StudentID {
				return NewBusinessRuleError("lesson_student", "lesson belongs to another student",
					map[string]interface{}{"lesson_id": lesson.ID})
			}
		} else {
			performance.LessonID = nil
		}

		return s.repo.Feedback().CreatePerformance(ctx, tx, performance)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Performance recorded",
		"student_id", performance.StudentID,
		"subject", performance.Subject,
		"percentage", performance.Percentage())
	return performance, nil
}

func (s *feedbackService) ListPerformance(ctx context.Context, actor Actor, filters repositories.PerformanceFilters) ([]*models.Performance, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourcePerformance, ActionRead); err != nil {
		return nil, 0, err
	}

	scope, err := s.performanceScope(ctx, nil, actor)
	if err != nil {
		return nil, 0, err
	}
	filters.StudentIDs = scope.studentIDs(filters.StudentIDs)

	items, total, err := s.repo.Feedback().ListPerformance(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list performance: %w", err)
	}
	return items, total, nil
}

// performanceScope expresses a tutor's scope as the students they teach,
// since performance rows carry no tutor.
func (s *feedbackService) performanceScope(ctx context.Context, tx *gorm.DB, actor Actor) (recordScope, error) {
	scope, err := resolveScope(ctx, s.repo, tx, actor)
	if err != nil || scope.TutorID == nil {
		return scope, err
	}

	ids, err := s.repo.Student().IDsByTutor(ctx, tx, *scope.TutorID)
	if err != nil {
		return recordScope{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return recordScope{StudentIDs: ids}, nil
}
