package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
)

// ===== STUDENTS =====

type studentRepository struct {
	db *gorm.DB
}

func NewStudentPostgreSQL(db *gorm.DB) repositories.StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *studentRepository) Create(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	if err := r.getDB(tx).WithContext(ctx).Create(student).Error; err != nil {
		return handleDBError(err, "create student")
	}
	return nil
}

func (r *studentRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Student, error) {
	var student models.Student
	if err := r.getDB(tx).WithContext(ctx).Preload("Profile").First(&student, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get student by id")
	}
	return &student, nil
}

func (r *studentRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error) {
	var student models.Student
	if err := r.getDB(tx).WithContext(ctx).Preload("Profile").First(&student, "user_id = ?", userID).Error; err != nil {
		return nil, handleDBError(err, "get student by user id")
	}
	return &student, nil
}

func (r *studentRepository) Update(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", student.ID).
		Updates(map[string]interface{}{
			"parent_id": student.ParentID,
			"grade":     student.Grade,
			"subjects":  student.Subjects,
		}).Error
	return handleDBError(err, "update student")
}

func (r *studentRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	var students []*models.Student
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Student{})
	if filters.ParentID != nil {
		query = query.Where("parent_id = ?", *filters.ParentID)
	}
	if filters.TutorID != nil {
		query = query.Where("id IN (?)", r.getDB(tx).
			Model(&models.Lesson{}).
			Select("student_id").
			Where("tutor_id = ?", *filters.TutorID))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count students")
	}
	query = applyPagination(query.Order("created_at DESC"), filters.Limit, filters.Offset)

	if err := query.Preload("Profile").Find(&students).Error; err != nil {
		return nil, 0, handleDBError(err, "list students")
	}
	return students, total, nil
}

func (r *studentRepository) EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Student, error) {
	db := r.getDB(tx).WithContext(ctx)
	uid := userID
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Student{UserID: &uid}).Error
	if err != nil {
		return nil, handleDBError(err, "ensure student")
	}
	return r.GetByUserID(ctx, tx, userID)
}

func (r *studentRepository) GetByParent(ctx context.Context, tx *gorm.DB, parentUserID string) ([]*models.Student, error) {
	var students []*models.Student
	err := r.getDB(tx).WithContext(ctx).
		Preload("Profile").
		Where("parent_id = ?", parentUserID).
		Order("created_at ASC").
		Find(&students).Error
	if err != nil {
		return nil, handleDBError(err, "get students by parent")
	}
	return students, nil
}

func (r *studentRepository) IDsByParent(ctx context.Context, tx *gorm.DB, parentUserID string) ([]string, error) {
	var ids []string
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Student{}).
		Where("parent_id = ?", parentUserID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, handleDBError(err, "get student ids by parent")
	}
	return ids, nil
}

func (r *studentRepository) IDsByTutor(ctx context.Context, tx *gorm.DB, tutorID string) ([]string, error) {
	var ids []string
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Lesson{}).
		Distinct("student_id").
		Where("tutor_id = ?", tutorID).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, handleDBError(err, "get student ids by tutor")
	}
	return ids, nil
}

func (r *studentRepository) AddPurchasedHours(ctx context.Context, tx *gorm.DB, id string, hours float64) error {
	return r.addHours(ctx, tx, id, "total_hours_purchased", hours, "add purchased hours")
}

func (r *studentRepository) AddUsedHours(ctx context.Context, tx *gorm.DB, id string, hours float64) error {
	return r.addHours(ctx, tx, id, "hours_used", hours, "add used hours")
}

func (r *studentRepository) addHours(ctx context.Context, tx *gorm.DB, id, column string, hours float64, op string) error {
	result := r.getDB(tx).WithContext(ctx).
		Model(&models.Student{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", hours))
	if result.Error != nil {
		return handleDBError(result.Error, op)
	}
	if result.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, op)
	}
	return nil
}

// ===== TUTORS =====

type tutorRepository struct {
	db *gorm.DB
}

func NewTutorPostgreSQL(db *gorm.DB) repositories.TutorRepository {
	return &tutorRepository{db: db}
}

func (r *tutorRepository) getDB(tx *gorm.DB) *gorm.DB {
	return pickDB(r.db, tx)
}

func (r *tutorRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.getDB(tx).WithContext(ctx).Preload("Profile").First(&tutor, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get tutor by id")
	}
	return &tutor, nil
}

func (r *tutorRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.getDB(tx).WithContext(ctx).Preload("Profile").First(&tutor, "user_id = ?", userID).Error; err != nil {
		return nil, handleDBError(err, "get tutor by user id")
	}
	return &tutor, nil
}

func (r *tutorRepository) Update(ctx context.Context, tx *gorm.DB, tutor *models.Tutor) error {
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.Tutor{}).
		Where("id = ?", tutor.ID).
		Updates(map[string]interface{}{
			"bio":            tutor.Bio,
			"hourly_rate":    tutor.HourlyRate,
			"qualifications": tutor.Qualifications,
			"subjects":       tutor.Subjects,
		}).Error
	return handleDBError(err, "update tutor")
}

func (r *tutorRepository) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*models.Tutor, int64, error) {
	var tutors []*models.Tutor
	var total int64

	query := r.getDB(tx).WithContext(ctx).Model(&models.Tutor{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count tutors")
	}
	if err := applyPagination(query.Order("created_at DESC"), limit, offset).Preload("Profile").Find(&tutors).Error; err != nil {
		return nil, 0, handleDBError(err, "list tutors")
	}
	return tutors, total, nil
}

func (r *tutorRepository) EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Tutor, error) {
	uid := userID
	err := r.getDB(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Tutor{UserID: &uid}).Error
	if err != nil {
		return nil, handleDBError(err, "ensure tutor")
	}
	return r.GetByUserID(ctx, tx, userID)
}

// ===== PARENTS =====

type parentRepository struct {
	db *gorm.DB
}

func NewParentPostgreSQL(db *gorm.DB) repositories.ParentRepository {
	return &parentRepository{db: db}
}

func (r *parentRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.Parent, error) {
	var parent models.Parent
	err := pickDB(r.db, tx).WithContext(ctx).
		Preload("Profile").
		Preload("Children.Profile").
		First(&parent, "user_id = ?", userID).Error
	if err != nil {
		return nil, handleDBError(err, "get parent by user id")
	}
	return &parent, nil
}

func (r *parentRepository) EnsureForUser(ctx context.Context, tx *gorm.DB, userID string) (*models.Parent, error) {
	uid := userID
	err := pickDB(r.db, tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Parent{UserID: &uid}).Error
	if err != nil {
		return nil, handleDBError(err, "ensure parent")
	}
	return r.GetByUserID(ctx, tx, userID)
}
