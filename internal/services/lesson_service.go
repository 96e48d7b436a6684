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

type LessonService interface {
	Create(ctx context.Context, actor Actor, req *CreateLessonRequest) (*models.Lesson, error)
	GetByID(ctx context.Context, actor Actor, id string) (*models.Lesson, error)
	List(ctx context.Context, actor Actor, filters repositories.LessonFilters) ([]*models.Lesson, int64, error)
	Update(ctx context.Context, actor Actor, id string, req *UpdateLessonRequest) (*models.Lesson, error)
	Delete(ctx context.Context, actor Actor, id string) error

	// Status transitions
	Complete(ctx context.Context, actor Actor, id string, req *CompleteLessonRequest) (*models.Lesson, error)
	Cancel(ctx context.Context, actor Actor, id string) (*models.Lesson, error)
}

type lessonService struct {
	repo       repositories.Repository
	cache      *cache.CacheManager
	authorizer *Authorizer
	publisher  events.EventPublisher
	validator  *validator.Validator
	logger     *slog.Logger
}

func NewLessonService(
	repo repositories.Repository,
	cacheManager *cache.CacheManager,
	authorizer *Authorizer,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) LessonService {
	return &lessonService{
		repo:       repo,
		cache:      cacheManager,
		authorizer: authorizer,
		publisher:  publisher,
		validator:  validator,
		logger:     logger,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *lessonService) Create(ctx context.Context, actor Actor, req *CreateLessonRequest) (*models.Lesson, error) {
	s.logger.Info("Scheduling lesson", "student_id", req.StudentID, "actor", actor.UserID)

	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		StudentID:       req.StudentID,
		Subject:         strings.TrimSpace(req.Subject),
		Topic:           req.Topic,
		ScheduledDate:   req.ScheduledDate.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          models.LessonScheduled,
		Notes:           req.Notes,
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		tutorID, err := s.tutorFor(ctx, tx, actor, req.TutorID)
		if err != nil {
			return err
		}
		lesson.TutorID = tutorID

		if _, err := s.repo.Student().GetByID(ctx, tx, req.StudentID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}

		return s.repo.Lesson().Create(ctx, tx, lesson)
	})
	if err != nil {
		s.logger.Error("Failed to schedule lesson", "error", err, "student_id", req.StudentID)
		return nil, err
	}

	s.afterChange(ctx, events.EventLessonScheduled, lesson, actor)
	s.logger.Info("Lesson scheduled", "lesson_id", lesson.ID, "tutor_id", lesson.TutorID)
	return lesson, nil
}

func (s *lessonService) GetByID(ctx context.Context, actor Actor, id string) (*models.Lesson, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionRead); err != nil {
		return nil, err
	}

	lesson, err := s.repo.Lesson().GetByIDWithDetails(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, err
	}
	if !scope.allows(lesson.StudentID, lesson.TutorID) {
		// Out of scope reads look like a missing lesson.
		return nil, ErrLessonNotFound
	}
	return lesson, nil
}

func (s *lessonService) List(ctx context.Context, actor Actor, filters repositories.LessonFilters) ([]*models.Lesson, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionRead); err != nil {
		return nil, 0, err
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return nil, 0, err
	}
	filters.StudentIDs = scope.studentIDs(filters.StudentIDs)
	filters.TutorID = scope.tutorID(filters.TutorID)

	lessons, total, err := s.repo.Lesson().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list lessons: %w", err)
	}
	return lessons, total, nil
}

func (s *lessonService) Update(ctx context.Context, actor Actor, id string, req *UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var lesson *models.Lesson
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		lesson, err = s.loadScoped(ctx, tx, actor, id, ActionUpdate)
		if err != nil {
			return err
		}
		if lesson.Status != models.LessonScheduled {
			return NewBusinessRuleError("lesson_final", "only scheduled lessons can be edited",
				map[string]interface{}{"status": lesson.Status})
		}

		if req.Subject != nil {
			lesson.Subject = strings.TrimSpace(*req.Subject)
		}
		if req.Topic != nil {
			lesson.Topic = req.Topic
		}
		if req.ScheduledDate != nil {
			lesson.ScheduledDate = req.ScheduledDate.UTC()
		}
		if req.DurationMinutes != nil {
			lesson.DurationMinutes = *req.DurationMinutes
		}
		if req.Notes != nil {
			lesson.Notes = req.Notes
		}
		return s.repo.Lesson().Update(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Lesson updated", "lesson_id", id, "by", actor.UserID)
	return lesson, nil
}

func (s *lessonService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionDelete); err != nil {
		return err
	}

	if err := s.repo.Lesson().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrLessonNotFound
		}
		return fmt.Errorf("failed to delete lesson: %w", err)
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Lesson deleted", "lesson_id", id, "by", actor.UserID)
	return nil
}

// ===== STATUS TRANSITIONS =====

// Complete marks a lesson done and charges its length to the student's hours
// in the same transaction.
func (s *lessonService) Complete(ctx context.Context, actor Actor, id string, req *CompleteLessonRequest) (*models.Lesson, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionComplete); err != nil {
		return nil, err
	}
	if req == nil {
		req = &CompleteLessonRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var lesson *models.Lesson
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		lesson, err = s.loadScoped(ctx, tx, actor, id, ActionComplete)
		if err != nil {
			return err
		}
		if errs := s.validator.Business().ValidateLessonTransition(lesson.Status, models.LessonCompleted); len(errs) > 0 {
			return errs
		}

		student, err := s.repo.Student().GetByID(ctx, tx, lesson.StudentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}
		if errs := s.validator.Business().ValidateHoursAvailable(student, lesson.Hours()); len(errs) > 0 {
			return errs
		}
		if err := s.repo.Student().AddUsedHours(ctx, tx, student.ID, lesson.Hours()); err != nil {
			return err
		}

		lesson.Status = models.LessonCompleted
		if req.Notes != nil {
			lesson.Notes = req.Notes
		}
		return s.repo.Lesson().Update(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, events.EventLessonCompleted, lesson, actor)
	s.logger.Info("Lesson completed", "lesson_id", id, "hours", lesson.Hours())
	return lesson, nil
}

func (s *lessonService) Cancel(ctx context.Context, actor Actor, id string) (*models.Lesson, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceLessons, ActionCancel); err != nil {
		return nil, err
	}

	var lesson *models.Lesson
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		lesson, err = s.loadScoped(ctx, tx, actor, id, ActionCancel)
		if err != nil {
			return err
		}
		if errs := s.validator.Business().ValidateLessonTransition(lesson.Status, models.LessonCancelled); len(errs) > 0 {
			return errs
		}
		lesson.Status = models.LessonCancelled
		return s.repo.Lesson().Update(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, events.EventLessonCancelled, lesson, actor)
	s.logger.Info("Lesson cancelled", "lesson_id", id, "by", actor.UserID)
	return lesson, nil
}

// ===== HELPERS =====

// tutorFor picks the tutor of a new lesson. Tutors always schedule for
// themselves; admins must name one.
func (s *lessonService) tutorFor(ctx context.Context, tx *gorm.DB, actor Actor, requested *string) (string, error) {
	if actor.Is(models.RoleTutor) {
		tutor, err := s.repo.Tutor().GetByUserID(ctx, tx, actor.UserID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return "", ErrTutorNotFound
			}
			return "", err
		}
		if requested != nil && *requested != "" && *requested != tutor.ID {
			return "", NewPermissionError(actor.UserID, *requested, ResourceLessons, ActionCreate, "tutors schedule only their own lessons")
		}
		return tutor.ID, nil
	}

	if requested == nil || *requested == "" {
		return "", ValidationErrors{{Field: "tutor_id", Message: "is required", Rule: "required"}}
	}
	tutor, err := s.repo.Tutor().GetByID(ctx, tx, *requested)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return "", ErrTutorNotFound
		}
		return "", err
	}
	return tutor.ID, nil
}

func (s *lessonService) loadScoped(ctx context.Context, tx *gorm.DB, actor Actor, id, action string) (*models.Lesson, error) {
	lesson, err := s.repo.Lesson().GetByID(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	scope, err := resolveScope(ctx, s.repo, tx, actor)
	if err != nil {
		return nil, err
	}
	if !scope.allows(lesson.StudentID, lesson.TutorID) {
		return nil, NewPermissionError(actor.UserID, id, ResourceLessons, action, "lesson is not in your scope")
	}
	return lesson, nil
}

func (s *lessonService) afterChange(ctx context.Context, eventType events.EventType, lesson *models.Lesson, actor Actor) {
	cache.InvalidateDashboards(ctx, s.cache)
	publishEvent(ctx, s.publisher, s.logger, eventType, events.LessonEventData{
		LessonID:  lesson.ID,
		StudentID: lesson.StudentID,
		TutorID:   lesson.TutorID,
		Status:    string(lesson.Status),
		ActorID:   actor.UserID,
	})
}

// weekBounds returns the Monday-start week containing t, in UTC.
func weekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 7)
}
