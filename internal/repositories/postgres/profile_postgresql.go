package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type profileRepository struct {
	db *gorm.DB
}

func NewProfilePostgreSQL(db *gorm.DB) repositories.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *profileRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.getDB(tx).WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get profile by id")
	}
	return &profile, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.getDB(tx).WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, handleDBError(err, "get profile by user id")
	}
	return &profile, nil
}

func (r *profileRepository) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []string) ([]*models.Profile, error) {
	if len(userIDs) == 0 {
		return []*models.Profile{}, nil
	}
	var profiles []*models.Profile
	if err := r.getDB(tx).WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, handleDBError(err, "get profiles by user ids")
	}
	return profiles, nil
}

func (r *profileRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, profile *models.Profile) (*models.Profile, bool, error) {
	db := r.getDB(tx).WithContext(ctx)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(profile)
	if result.Error != nil {
		return nil, false, handleDBError(result.Error, "create profile")
	}

	if result.RowsAffected == 1 {
		return profile, true, nil
	}

	// Someone else won the insert; return their row.
	stored, err := r.GetByUserID(ctx, tx, profile.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *profileRepository) Update(ctx context.Context, tx *gorm.DB, profile *models.Profile) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]interface{}{
			"full_name": profile.FullName,
			"phone":     profile.Phone,
		}).Error
	return handleDBError(err, "update profile")
}

func (r *profileRepository) UpdateRole(ctx context.Context, tx *gorm.DB, userID string, role models.UserRole) error {
	if !role.IsValid() {
		return models.ErrInvalidRole
	}
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("role", role)
	if result.Error != nil {
		return handleDBError(result.Error, "update profile role")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "update profile role")
	}
	return nil
}

func (r *profileRepository) Delete(ctx context.Context, tx *gorm.DB, userID string) error {
	result := r.getDB(tx).WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Profile{})
	if result.Error != nil {
		return handleDBError(result.Error, "delete profile")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete profile")
	}
	return nil
}

func (r *profileRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	var profiles []*models.Profile
	var total int64

	query := r.applyProfileFilters(r.getDB(tx).WithContext(ctx).Model(&models.Profile{}), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count profiles")
	}

	query = applyPaginationAndSort(query, map[string]string{
		"created_at": "created_at",
		"full_name":  "full_name",
		"email":      "email",
		"role":       "role",
	}, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&profiles).Error; err != nil {
		return nil, 0, handleDBError(err, "list profiles")
	}
	return profiles, total, nil
}

func (r *profileRepository) applyProfileFilters(query *gorm.DB, filters repositories.ProfileFilters) *gorm.DB {
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	return query
}
