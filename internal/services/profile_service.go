package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/cache"
	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/validator"
)

type ProfileService interface {
	GetMe(ctx context.Context, actor Actor) (*models.Profile, error)
	UpdateMe(ctx context.Context, actor Actor, req *UpdateProfileRequest) (*models.Profile, error)

	// Admin operations
	GetByUserID(ctx context.Context, actor Actor, userID string) (*models.Profile, error)
	List(ctx context.Context, actor Actor, filters repositories.ProfileFilters) ([]*models.Profile, int64, error)
	ChangeRole(ctx context.Context, actor Actor, userID string, req *ChangeRoleRequest) (*models.Profile, error)
	Delete(ctx context.Context, actor Actor, userID string) error
}

type profileService struct {
	repo       repositories.Repository
	cache      *cache.CacheManager
	authorizer *Authorizer
	publisher  events.EventPublisher
	validator  *validator.Validator
	logger     *slog.Logger
}

func NewProfileService(
	repo repositories.Repository,
	cacheManager *cache.CacheManager,
	authorizer *Authorizer,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) ProfileService {
	return &profileService{
		repo:       repo,
		cache:      cacheManager,
		authorizer: authorizer,
		publisher:  publisher,
		validator:  validator,
		logger:     logger,
	}
}

func (s *profileService) GetMe(ctx context.Context, actor Actor) (*models.Profile, error) {
	return s.getProfile(ctx, nil, actor.UserID)
}

func (s *profileService) UpdateMe(ctx context.Context, actor Actor, req *UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	profile, err := s.getProfile(ctx, nil, actor.UserID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		profile.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			profile.Phone = nil
		} else {
			profile.Phone = &phone
		}
	}

	if err := s.repo.Profile().Update(ctx, nil, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	cache.InvalidateProfileCache(ctx, s.cache, actor.UserID)

	s.logger.Info("Profile updated", "user_id", actor.UserID)
	return profile, nil
}

func (s *profileService) GetByUserID(ctx context.Context, actor Actor, userID string) (*models.Profile, error) {
	if actor.UserID != userID {
		if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceProfiles, ActionRead); err != nil {
			return nil, err
		}
	}
	return s.getProfile(ctx, nil, userID)
}

func (s *profileService) List(ctx context.Context, actor Actor, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceProfiles, ActionRead); err != nil {
		return nil, 0, err
	}
	if filters.Role != nil && !filters.Role.IsValid() {
		return nil, 0, ValidationErrors{{Field: "role", Message: "must be one of admin, tutor, student, parent", Value: *filters.Role, Rule: "user_role"}}
	}

	profiles, total, err := s.repo.Profile().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, total, nil
}

// ChangeRole moves a user to another role and makes sure the matching
// students/tutors/parents row exists.
func (s *profileService) ChangeRole(ctx context.Context, actor Actor, userID string, req *ChangeRoleRequest) (*models.Profile, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceProfiles, ActionManage); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if actor.UserID == userID && req.Role != models.RoleAdmin {
		return nil, NewBusinessRuleError("self_demotion", "admins cannot remove their own admin role", nil)
	}

	var profile *models.Profile
	var prevRole models.UserRole
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		current, err := s.getProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		prevRole = current.Role

		if err := s.repo.Profile().UpdateRole(ctx, tx, userID, req.Role); err != nil {
			return err
		}
		if err := ensureRoleRow(ctx, s.repo, tx, userID, req.Role); err != nil {
			return err
		}

		current.Role = req.Role
		profile = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateProfileCache(ctx, s.cache, userID)
	cache.InvalidateDashboards(ctx, s.cache)

	s.logger.Info("Role changed", "user_id", userID, "from", prevRole, "to", req.Role, "by", actor.UserID)
	publishEvent(ctx, s.publisher, s.logger, events.EventProfileRoleChanged, events.ProfileEventData{
		ProfileID: profile.ID,
		UserID:    userID,
		Role:      req.Role.String(),
		PrevRole:  prevRole.String(),
		ActorID:   actor.UserID,
	})
	return profile, nil
}

func (s *profileService) Delete(ctx context.Context, actor Actor, userID string) error {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceProfiles, ActionDelete); err != nil {
		return err
	}
	if actor.UserID == userID {
		return NewBusinessRuleError("self_delete", "admins cannot delete their own profile", nil)
	}

	if err := s.repo.Profile().Delete(ctx, nil, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	cache.InvalidateProfileCache(ctx, s.cache, userID)
	s.logger.Info("Profile deleted", "user_id", userID, "by", actor.UserID)
	return nil
}

func (s *profileService) getProfile(ctx context.Context, tx *gorm.DB, userID string) (*models.Profile, error) {
	profile, err := s.repo.Profile().GetByUserID(ctx, tx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}
