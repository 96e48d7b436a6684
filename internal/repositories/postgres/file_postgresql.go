package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

type fileRepository struct {
	db *gorm.DB
}

func NewFilePostgreSQL(db *gorm.DB) repositories.FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, tx *gorm.DB, file *models.File) error {
	if err := pickDB(r.db, tx).WithContext(ctx).Create(file).Error; err != nil {
		return handleDBError(err, "create file")
	}
	return nil
}

func (r *fileRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.File, error) {
	var file models.File
	if err := pickDB(r.db, tx).WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get file by id")
	}
	return &file, nil
}

func (r *fileRepository) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	result := pickDB(r.db, tx).WithContext(ctx).Delete(&models.File{}, "id = ?", id)
	if result.Error != nil {
		return handleDBError(result.Error, "delete file")
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete file")
	}
	return nil
}

func (r *fileRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.FileFilters) ([]*models.File, int64, error) {
	var files []*models.File
	var total int64

	query := pickDB(r.db, tx).WithContext(ctx).Model(&models.File{})
	if filters.AssociatedID != nil {
		query = query.Where("associated_id = ?", *filters.AssociatedID)
	}
	if filters.AssociatedType != nil {
		query = query.Where("associated_type = ?", *filters.AssociatedType)
	}
	if filters.UploadedBy != nil {
		query = query.Where("uploaded_by = ?", *filters.UploadedBy)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count files")
	}
	if err := applyPagination(query.Order("created_at DESC"), filters.Limit, filters.Offset).Find(&files).Error; err != nil {
		return nil, 0, handleDBError(err, "list files")
	}
	return files, total, nil
}
