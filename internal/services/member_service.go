package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

// MemberService manages the role extension rows of students, tutors and parents.
type MemberService interface {
	// Students
	GetStudent(ctx context.Context, actor Actor, studentID string) (*models.Student, error)
	GetMyStudent(ctx context.Context, actor Actor) (*models.Student, error)
	ListStudents(ctx context.Context, actor Actor, limit, offset int) ([]*models.Student, int64, error)
	UpdateStudent(ctx context.Context, actor Actor, studentID string, req *UpdateStudentRequest) (*models.Student, error)
	PurchaseHours(ctx context.Context, actor Actor, studentID string, req *PurchaseHoursRequest) (*models.Student, error)

	// Parents
	MyChildren(ctx context.Context, actor Actor) ([]*models.Student, error)

	// Tutors
	ListTutors(ctx context.Context, actor Actor, limit, offset int) ([]*models.Tutor, int64, error)
	GetTutor(ctx context.Context, actor Actor, tutorID string) (*models.Tutor, error)
	GetMyTutor(ctx context.Context, actor Actor) (*models.Tutor, error)
	UpdateMyTutor(ctx context.Context, actor Actor, req *UpdateTutorRequest) (*models.Tutor, error)
}

type memberService struct {
	repo       repositories.Repository
	cache      *cache.CacheManager
	authorizer *Authorizer
	validator  *validator.Validator
	logger     *slog.Logger
}

func NewMemberService(
	repo repositories.Repository,
	cacheManager *cache.CacheManager,
	authorizer *Authorizer,
	validator *validator.Validator,
	logger *slog.Logger,
) MemberService {
	return &memberService{
		repo:       repo,
		cache:      cacheManager,
		authorizer: authorizer,
		validator:  validator,
		logger:     logger,
	}
}

// ===== STUDENTS =====

func (s *memberService) GetStudent(ctx context.Context, actor Actor, studentID string) (*models.Student, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceStudents, ActionRead); err != nil {
		// Students may still read their own row.
		if !actor.Is(models.RoleStudent) {
			return nil, err
		}
	}

	student, err := s.getStudent(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStudentVisible(ctx, actor, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *memberService) GetMyStudent(ctx context.Context, actor Actor) (*models.Student, error) {
	if !actor.Is(models.RoleStudent) {
		return nil, NewPermissionError(actor.UserID, "", ResourceStudents, ActionRead, "only students have a student record")
	}
	student, err := s.repo.Student().GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}

// ListStudents returns the students an actor may see: all for admins, the
// ones they teach for tutors, their children for parents.
func (s *memberService) ListStudents(ctx context.Context, actor Actor, limit, offset int) ([]*models.Student, int64, error) {
	filters := repositories.StudentFilters{Limit: limit, Offset: offset}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleParent:
		filters.ParentID = &actor.UserID
	case models.RoleTutor:
		scope, err := resolveScope(ctx, s.repo, nil, actor)
		if err != nil {
			return nil, 0, err
		}
		filters.TutorID = scope.TutorID
	default:
		student, err := s.GetMyStudent(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		return []*models.Student{student}, 1, nil
	}

	students, total, err := s.repo.Student().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list students: %w", err)
	}
	return students, total, nil
}

// UpdateStudent changes grade, subjects and the parent link. Admins may edit
// any student; students may edit their own grade and subjects.
func (s *memberService) UpdateStudent(ctx context.Context, actor Actor, studentID string, req *UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	student, err := s.getStudent(ctx, nil, studentID)
	if err != nil {
		return nil, err
	}

	isSelf := student.UserID != nil && *student.UserID == actor.UserID
	if !isSelf {
		if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceStudents, ActionUpdate); err != nil {
			return nil, err
		}
	}
	if req.ParentUserID != nil && !actor.Is(models.RoleAdmin) {
		return nil, NewPermissionError(actor.UserID, studentID, ResourceStudents, ActionUpdate, "only admins link parents")
	}

	if req.Grade != nil {
		grade := strings.TrimSpace(*req.Grade)
		student.Grade = &grade
	}
	if req.Subjects != nil {
		student.Subjects = normalizeSubjects(req.Subjects)
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if req.ParentUserID != nil {
			if *req.ParentUserID == "" {
				student.ParentID = nil
			} else {
				if err := s.linkParent(ctx, tx, *req.ParentUserID); err != nil {
					return err
				}
				parentID := *req.ParentUserID
				student.ParentID = &parentID
			}
		}
		return s.repo.Student().Update(ctx, tx, student)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Student updated", "student_id", studentID, "by", actor.UserID)
	return student, nil
}

func (s *memberService) PurchaseHours(ctx context.Context, actor Actor, studentID string, req *PurchaseHoursRequest) (*models.Student, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceStudents, ActionManage); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var student *models.Student
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Student().AddPurchasedHours(ctx, tx, studentID, req.Hours); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrStudentNotFound
			}
			return err
		}
		var err error
		student, err = s.getStudent(ctx, tx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateDashboards(ctx, s.cache)
	s.logger.Info("Hours purchased",
		"student_id", studentID,
		"hours", req.Hours,
		"total", student.TotalHoursPurchased,
		"by", actor.UserID)
	return student, nil
}

// ===== PARENTS =====

func (s *memberService) MyChildren(ctx context.Context, actor Actor) ([]*models.Student, error) {
	if !actor.Is(models.RoleParent) {
		return nil, NewPermissionError(actor.UserID, "", ResourceStudents, ActionRead, "only parents have children")
	}
	children, err := s.repo.Student().GetByParent(ctx, nil, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	return children, nil
}

// ===== TUTORS =====

func (s *memberService) ListTutors(ctx context.Context, actor Actor, limit, offset int) ([]*models.Tutor, int64, error) {
	tutors, total, err := s.repo.Tutor().List(ctx, nil, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tutors: %w", err)
	}
	return tutors, total, nil
}

func (s *memberService) GetTutor(ctx context.Context, actor Actor, tutorID string) (*models.Tutor, error) {
	tutor, err := s.repo.Tutor().GetByID(ctx, nil, tutorID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTutorNotFound
		}
		return nil, fmt.Errorf("failed to get tutor: %w", err)
	}
	return tutor, nil
}

func (s *memberService) GetMyTutor(ctx context.Context, actor Actor) (*models.Tutor, error) {
	if !actor.Is(models.RoleTutor) {
		return nil, NewPermissionError(actor.UserID, "", "tutors", ActionRead, "only tutors have a tutor record")
	}
	tutor, err := s.repo.Tutor().GetByUserID(ctx, nil, actor.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTutorNotFound
		}
		return nil, fmt.Errorf("failed to get tutor: %w", err)
	}
	return tutor, nil
}

func (s *memberService) UpdateMyTutor(ctx context.Context, actor Actor, req *UpdateTutorRequest) (*models.Tutor, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	tutor, err := s.GetMyTutor(ctx, actor)
	if err != nil {
		return nil, err
	}

	if req.Bio != nil {
		tutor.Bio = req.Bio
	}
	if req.HourlyRate != nil {
		tutor.HourlyRate = req.HourlyRate
	}
	if req.Qualifications != nil {
		tutor.Qualifications = req.Qualifications
	}
	if req.Subjects != nil {
		tutor.Subjects = normalizeSubjects(req.Subjects)
	}

	if err := s.repo.Tutor().Update(ctx, nil, tutor); err != nil {
		return nil, fmt.Errorf("failed to update tutor: %w", err)
	}

	s.logger.Info("Tutor updated", "tutor_id", tutor.ID, "user_id", actor.UserID)
	return tutor, nil
}

// ===== HELPERS =====

func (s *memberService) getStudent(ctx context.Context, tx *gorm.DB, studentID string) (*models.Student, error) {
	student, err := s.repo.Student().GetByID(ctx, tx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}

func (s *memberService) checkStudentVisible(ctx context.Context, actor Actor, student *models.Student) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if student.UserID != nil && *student.UserID == actor.UserID {
			return nil
		}
	case models.RoleParent:
		if student.ParentID != nil && *student.ParentID == actor.UserID {
			return nil
		}
	case models.RoleTutor:
		scope, err := resolveScope(ctx, s.repo, nil, actor)
		if err != nil {
			return err
		}
		n, err := s.repo.Lesson().Count(ctx, nil, repositories.LessonFilters{
			StudentIDs: []string{student.ID},
			TutorID:    scope.TutorID,
		})
		if err != nil {
			return fmt.Errorf("failed to check tutor access: %w", err)
		}
		if n > 0 {
			return nil
		}
	}
	return NewPermissionError(actor.UserID, student.ID, ResourceStudents, ActionRead, "student is not in your scope")
}

// linkParent checks the target user is a parent and makes sure its parent row exists.
func (s *memberService) linkParent(ctx context.Context, tx *gorm.DB, parentUserID string) error {
	profile, err := s.repo.Profile().GetByUserID(ctx, tx, parentUserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrParentNotFound
		}
		return err
	}
	if profile.Role != models.RoleParent {
		return NewBusinessRuleError("parent_role", "linked user must have the parent role",
			map[string]interface{}{"user_id": parentUserID, "role": profile.Role})
	}
	_, err = s.repo.Parent().EnsureForUser(ctx, tx, parentUserID)
	return err
}

func normalizeSubjects(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, subject := range in {
		subject = strings.TrimSpace(subject)
		key := strings.ToLower(subject)
		if subject == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, subject)
	}
	return out
}
