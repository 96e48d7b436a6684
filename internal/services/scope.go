package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

// recordScope limits record listings to what an actor may see. A nil
// StudentIDs and TutorID means everything.
type recordScope struct {
	StudentIDs []string
	TutorID    *string
}

func resolveScope(ctx context.Context, repo repositories.Repository, tx *gorm.DB, actor Actor) (recordScope, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return recordScope{}, nil

	case models.RoleTutor:
		tutor, err := repo.Tutor().GetByUserID(ctx, tx, actor.UserID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return recordScope{}, ErrTutorNotFound
			}
			return recordScope{}, err
		}
		return recordScope{TutorID: &tutor.ID}, nil

	case models.RoleStudent:
		student, err := repo.Student().GetByUserID(ctx, tx, actor.UserID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return recordScope{}, ErrStudentNotFound
			}
			return recordScope{}, err
		}
		return recordScope{StudentIDs: []string{student.ID}}, nil

	case models.RoleParent:
		ids, err := repo.Student().IDsByParent(ctx, tx, actor.UserID)
		if err != nil {
			return recordScope{}, err
		}
		if ids == nil {
			ids = []string{}
		}
		return recordScope{StudentIDs: ids}, nil
	}

	return recordScope{}, NewPermissionError(actor.UserID, "", "records", ActionRead, "unknown role")
}

// allows reports whether a record belonging to studentID and tutorID is in scope.
func (s recordScope) allows(studentID, tutorID string) bool {
	if s.TutorID != nil && *s.TutorID != tutorID {
		return false
	}
	return s.allowsStudent(studentID)
}

// studentIDs intersects requested with the scope. nil means unrestricted.
func (s recordScope) studentIDs(requested []string) []string {
	if s.StudentIDs == nil {
		return requested
	}
	if requested == nil {
		return s.StudentIDs
	}
	out := []string{}
	for _, id := range requested {
		if s.allowsStudent(id) {
			out = append(out, id)
		}
	}
	return out
}

func (s recordScope) allowsStudent(studentID string) bool {
	if s.StudentIDs == nil {
		return true
	}
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// tutorID returns the tutor a listing is pinned to, overriding requested.
func (s recordScope) tutorID(requested *string) *string {
	if s.TutorID != nil {
		return s.TutorID
	}
	return requested
}
