package postgres

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *userRepository) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if err := r.getDB(tx).WithContext(ctx).Create(user).Error; err != nil {
		return handleDBError(err, "create user")
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := r.getDB(tx).WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get user by id")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	var user models.User
	err := r.getDB(tx).WithContext(ctx).
		First(&user, "email = ?", normalizeEmail(email)).Error
	if err != nil {
		return nil, handleDBError(err, "get user by email")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, tx *gorm.DB, user *models.User) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"password_hash": user.PasswordHash,
			"metadata":      user.Metadata,
		}).Error
	return handleDBError(err, "update user")
}

func (r *userRepository) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, handleDBError(err, "check user email")
	}
	return count > 0, nil
}

func (r *userRepository) MarkEmailConfirmed(ctx context.Context, tx *gorm.DB, id string, at time.Time) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND email_confirmed_at IS NULL", id).
		Update("email_confirmed_at", at).Error
	return handleDBError(err, "confirm user email")
}

func (r *userRepository) TouchLastSignIn(ctx context.Context, tx *gorm.DB, id string, at time.Time) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_sign_in_at", at).Error
	return handleDBError(err, "update last sign in")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
