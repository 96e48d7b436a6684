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

const defaultMaxScore = 100

type HomeworkService interface {
	Assign(ctx context.Context, actor Actor, req *CreateHomeworkRequest) (*models.Homework, error)
	GetByID(ctx context.Context, actor Actor, id string) (*models.Homework, error)
	List(ctx context.Context, actor Actor, filters repositories.HomeworkFilters) ([]*models.Homework, int64, error)
	Update(ctx context.Context, actor Actor, id string, req *UpdateHomeworkRequest) (*models.Homework, error)
	Delete(ctx context.Context, actor Actor, id string) error

	// Submissions
	Submit(ctx context.Context, actor Actor, homeworkID string, req *SubmitHomeworkRequest) (*models.Submission, error)
	Grade(ctx context.Context, actor Actor, submissionID string, req *GradeSubmissionRequest) (*models.Submission, error)
	PendingGrading(ctx context.Context, actor Actor, limit int) ([]*models.Submission, error)
}

type homeworkService struct {
	repo       repositories.Repository
	cache      *cache.CacheManager
	authorizer *Authorizer
	publisher  events.EventPublisher
	validator  *validator.Validator
	logger     *slog.Logger
}

func NewHomeworkService(
	repo repositories.Repository,
	cacheManager *cache.CacheManager,
	authorizer *Authorizer,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) HomeworkService {
	return &homeworkService{
		repo:       repo,
		cache:      cacheManager,
		authorizer: authorizer,
		publisher:  publisher,
		validator:  validator,
		logger:     logger,
	}
}

func (s *homeworkService) Assign(ctx context.Context, actor Actor, req *CreateHomeworkRequest) (*models.Homework, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	homework := &models.Homework{
		LessonID:    req.LessonID,
		StudentID:   req.StudentID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Subject:     strings.TrimSpace(req.Subject),
		DueDate:     req.DueDate,
		Status:      models.HomeworkAssigned,
		FileURL:     req.FileURL,
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.Student().GetByID(ctx, tx, req.StudentID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}

		scope, err := resolveScope(ctx, s.repo, tx, actor)
		if err != nil {
			return err
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
			if !scope.allows(lesson.StudentID, lesson.TutorID) {
				return NewPermissionError(actor.UserID, lesson.ID, ResourceHomework, ActionCreate, "lesson is not in your scope")
			}
			homework.TutorID = lesson.TutorID
			return s.repo.Homework().Create(ctx, tx, homework)
		}

		homework.LessonID = nil
		if scope.TutorID == nil {
			return ValidationErrors{{Field: "lesson_id", Message: "is required when assigning on behalf of a tutor", Rule: "required"}}
		}
		homework.TutorID = *scope.TutorID
		return s.repo.Homework().Create(ctx, tx, homework)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventHomeworkAssigned, events.HomeworkEventData{
		HomeworkID: homework.ID,
		StudentID:  homework.StudentID,
		TutorID:    homework.TutorID,
		ActorID:    actor.UserID,
	})
	s.logger.Info("Homework assigned", "homework_id", homework.ID, "student_id", homework.StudentID)
	return homework, nil
}

func (s *homeworkService) GetByID(ctx context.Context, actor Actor, id string) (*models.Homework, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionRead); err != nil {
		return nil, err
	}

	homework, err := s.repo.Homework().GetByIDWithSubmissions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrHomeworkNotFound
		}
		return nil, fmt.Errorf("failed to get homework: %w", err)
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, err
	}
	if !scope.allows(homework.StudentID, homework.TutorID) {
		return nil, ErrHomeworkNotFound
	}
	return homework, nil
}

func (s *homeworkService) List(ctx context.Context, actor Actor, filters repositories.HomeworkFilters) ([]*models.Homework, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionRead); err != nil {
		return nil, 0, err
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, 0, err
	}
	filters.StudentIDs = scope.studentIDs(filters.StudentIDs)
	filters.TutorID = scope.tutorID(filters.TutorID)

	items, total, err := s.repo.Homework().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list homework: %w", err)
	}
	return items, total, nil
}

func (s *homeworkService) Update(ctx context.Context, actor Actor, id string, req *UpdateHomeworkRequest) (*models.Homework, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var homework *models.Homework
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		homework, err = s.loadScoped(ctx, tx, actor, id, ActionUpdate)
		if err != nil {
			return err
		}
		if homework.Status == models.HomeworkGraded {
			return NewBusinessRuleError("homework_graded", "graded homework cannot be edited", nil)
		}

		if req.Title != nil {
			homework.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			homework.Description = req.Description
		}
		if req.DueDate != nil {
			homework.DueDate = req.DueDate
		}
		if req.FileURL != nil {
			homework.FileURL = req.FileURL
		}
		return s.repo.Homework().Update(ctx, tx, homework)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Homework updated", "homework_id", id, "by", actor.UserID)
	return homework, nil
}

func (s *homeworkService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionDelete); err != nil {
		return err
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.loadScoped(ctx, tx, actor, id, ActionDelete); err != nil {
			return err
		}
		return s.repo.Homework().Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Homework deleted", "homework_id", id, "by", actor.UserID)
	return nil
}

// ===== SUBMISSIONS =====

func (s *homeworkService) Submit(ctx context.Context, actor Actor, homeworkID string, req *SubmitHomeworkRequest) (*models.Submission, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionSubmit); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var submission *models.Submission
	var homework *models.Homework
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		homework, err = s.loadScoped(ctx, tx, actor, homeworkID, ActionSubmit)
		if err != nil {
			return err
		}
		if errs := s.validator.Business().ValidateSubmission(homework, req.SubmissionText, req.FileURL); len(errs) > 0 {
			return errs
		}

		submission = &models.Submission{
			HomeworkID:     homework.ID,
			StudentID:      homework.StudentID,
			SubmissionText: req.SubmissionText,
			FileURL:        req.FileURL,
			SubmittedAt:    time.Now().UTC(),
		}
		if err := s.repo.Homework().CreateSubmission(ctx, tx, submission); err != nil {
			return err
		}

		homework.Status = models.HomeworkSubmitted
		return s.repo.Homework().Update(ctx, tx, homework)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventHomeworkSubmitted, events.HomeworkEventData{
		HomeworkID:   homework.ID,
		SubmissionID: submission.ID,
		StudentID:    homework.StudentID,
		TutorID:      homework.TutorID,
		ActorID:      actor.UserID,
	})
	s.logger.Info("Homework submitted", "homework_id", homeworkID, "submission_id", submission.ID)
	return submission, nil
}

// Grade scores a submission, closes its homework and records the score as a
// performance entry.
func (s *homeworkService) Grade(ctx context.Context, actor Actor, submissionID string, req *GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionGrade); err != nil {
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

	var submission *models.Submission
	var homework *models.Homework
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		submission, err = s.repo.Homework().GetSubmission(ctx, tx, submissionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSubmissionNotFound
			}
			return err
		}
		if submission.IsGraded() {
			return NewBusinessRuleError("already_graded", "submission has already been graded",
				map[string]interface{}{"graded_at": submission.GradedAt})
		}

		homework, err = s.loadScoped(ctx, tx, actor, submission.HomeworkID, ActionGrade)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		score := req.Score
		submission.Score = &score
		submission.Feedback = req.Feedback
		submission.GradedBy = &actor.UserID
		submission.GradedAt = &now
		if err := s.repo.Homework().UpdateSubmission(ctx, tx, submission); err != nil {
			return err
		}

		homework.Status = models.HomeworkGraded
		if err := s.repo.Homework().Update(ctx, tx, homework); err != nil {
			return err
		}

		assignmentType := "homework"
		return s.repo.Feedback().CreatePerformance(ctx, tx, &models.Performance{
			StudentID:      homework.StudentID,
			LessonID:       homework.LessonID,
			Subject:        homework.Subject,
			AssignmentType: &assignmentType,
			Score:          req.Score,
			MaxScore:       maxScore,
			Notes:          req.Feedback,
			DateRecorded:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, events.EventHomeworkGraded, events.HomeworkEventData{
		HomeworkID:   homework.ID,
		SubmissionID: submission.ID,
		StudentID:    homework.StudentID,
		TutorID:      homework.TutorID,
		Score:        submission.Score,
		ActorID:      actor.UserID,
	})
	s.logger.Info("Submission graded", "submission_id", submissionID, "score", req.Score, "max_score", maxScore)
	return submission, nil
}

func (s *homeworkService) PendingGrading(ctx context.Context, actor Actor, limit int) ([]*models.Submission, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceHomework, ActionGrade); err != nil {
		return nil, err
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.Homework().PendingSubmissions(ctx, nil, scope.TutorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}
	return pending, nil
}

func (s *homeworkService) loadScoped(ctx context.Context, tx *gorm.DB, actor Actor, id, action string) (*models.Homework, error) {
	homework, err := s.repo.Homework().GetByID(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrHomeworkNotFound
		}
		return nil, err
	}

	scope, err := resolveScope(ctx, s.repo, tx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.allows(homework.StudentID, homework.TutorID) {
		return nil, NewPermissionError(actor.UserID, id, ResourceHomework, action, "homework is not in your scope")
	}
	return homework, nil
}
