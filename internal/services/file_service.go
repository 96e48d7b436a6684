package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/yolymatics/tutoring-service/internal/events"
	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/repositories"
	"github.com/yolymatics/tutoring-service/internal/storage"
)

const defaultMaxUploadSize = 10 << 20

// UploadInput is a file received from a client.
type UploadInput struct {
	Filename       string
	Size           int64
	Content        io.Reader
	AssociatedID   *string
	AssociatedType *models.FileAssociation
}

type FileService interface {
	Upload(ctx context.Context, actor Actor, in UploadInput) (*models.File, error)
	GetByID(ctx context.Context, actor Actor, id string) (*models.File, error)
	List(ctx context.Context, actor Actor, filters repositories.FileFilters) ([]*models.File, int64, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type fileService struct {
	repo       repositories.Repository
	store      storage.Store
	authorizer *Authorizer
	publisher  events.EventPublisher
	logger     *slog.Logger
	maxSize    int64
}

func NewFileService(
	repo repositories.Repository,
	store storage.Store,
	authorizer *Authorizer,
	publisher events.EventPublisher,
	logger *slog.Logger,
	maxSize int64,
) FileService {
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
	}
	return &fileService{
		repo:       repo,
		store:      store,
		authorizer: authorizer,
		publisher:  publisher,
		logger:     logger,
		maxSize:    maxSize,
	}
}

func (s *fileService) Upload(ctx context.Context, actor Actor, in UploadInput) (*models.File, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFiles, ActionUpload); err != nil {
		return nil, err
	}
	if in.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}
	if (in.AssociatedID == nil) != (in.AssociatedType == nil) {
		return nil, ValidationErrors{{Field: "associated_type", Message: "associated_id and associated_type go together", Rule: "required_with"}}
	}
	if in.AssociatedID != nil {
		if err := s.checkAssociation(ctx, actor, *in.AssociatedType, *in.AssociatedID, ActionUpload); err != nil {
			return nil, err
		}
	}

	sniffed, err := storage.Sniff(in.Content, s.maxSize)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, ErrFileTooLarge
		case errors.Is(err, storage.ErrTypeDenied):
			return nil, fmt.Errorf("%w: %v", ErrFileTypeDenied, err)
		case errors.Is(err, storage.ErrEmptyObject):
			return nil, ValidationErrors{{Field: "file", Message: "is empty", Rule: "required"}}
		}
		return nil, err
	}

	folder := "misc"
	if in.AssociatedType != nil {
		folder = string(*in.AssociatedType)
	}
	key := storage.NewKey(folder, sniffed.Ext)

	obj, err := s.store.Put(ctx, key, sniffed.Data, sniffed.MimeType)
	if err != nil {
		s.logger.Error("Failed to store upload", "error", err, "store", s.store.Name())
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	file := &models.File{
		Filename:         filepath.Base(obj.Key),
		OriginalFilename: sanitizeFilename(in.Filename),
		FileURL:          obj.URL,
		StorageKey:       obj.Key,
		FileSize:         obj.Size,
		MimeType:         sniffed.MimeType,
		UploadedBy:       actor.UserID,
		AssociatedID:     in.AssociatedID,
		AssociatedType:   in.AssociatedType,
	}
	if err := s.repo.File().Create(ctx, nil, file); err != nil {
		if delErr := s.store.Delete(ctx, obj.Key); delErr != nil {
			s.logger.Error("Failed to remove orphaned upload", "error", delErr, "key", obj.Key)
		}
		return nil, fmt.Errorf("failed to save file metadata: %w", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.EventFileUploaded, map[string]interface{}{
		"file_id":         file.ID,
		"uploaded_by":     file.UploadedBy,
		"mime_type":       file.MimeType,
		"associated_id":   file.AssociatedID,
		"associated_type": file.AssociatedType,
	})
	s.logger.Info("File uploaded", "file_id", file.ID, "mime_type", file.MimeType, "size", file.FileSize)
	return file, nil
}

func (s *fileService) GetByID(ctx context.Context, actor Actor, id string) (*models.File, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFiles, ActionRead); err != nil {
		return nil, err
	}

	file, err := s.getFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, actor, file); err != nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// List returns files attached to a record the actor can see, or the actor's
// own uploads when no record is named.
func (s *fileService) List(ctx context.Context, actor Actor, filters repositories.FileFilters) ([]*models.File, int64, error) {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFiles, ActionRead); err != nil {
		return nil, 0, err
	}

	switch {
	case actor.Is(models.RoleAdmin):
	case filters.AssociatedID != nil && filters.AssociatedType != nil:
		if err := s.checkAssociation(ctx, actor, *filters.AssociatedType, *filters.AssociatedID, ActionRead); err != nil {
			return nil, 0, err
		}
	default:
		filters.UploadedBy = &actor.UserID
	}

	files, total, err := s.repo.File().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	return files, total, nil
}

func (s *fileService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := s.authorizer.Check(actor.UserID, actor.Role, ResourceFiles, ActionDelete); err != nil {
		return err
	}

	file, err := s.getFile(ctx, id)
	if err != nil {
		return err
	}
	if file.UploadedBy != actor.UserID && !actor.Is(models.RoleAdmin) {
		return NewPermissionError(actor.UserID, id, ResourceFiles, ActionDelete, "only the uploader can delete a file")
	}

	if err := s.repo.File().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	if file.StorageKey != "" {
		if err := s.store.Delete(ctx, file.StorageKey); err != nil {
			s.logger.Error("Failed to delete stored object", "error", err, "file_id", id, "key", file.StorageKey)
		}
	}

	s.logger.Info("File deleted", "file_id", id, "by", actor.UserID)
	return nil
}

func (s *fileService) getFile(ctx context.Context, id string) (*models.File, error) {
	file, err := s.repo.File().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

func (s *fileService) checkVisible(ctx context.Context, actor Actor, file *models.File) error {
	if actor.Is(models.RoleAdmin) || file.UploadedBy == actor.UserID {
		return nil
	}
	if file.AssociatedID == nil || file.AssociatedType == nil {
		return NewPermissionError(actor.UserID, file.ID, ResourceFiles, ActionRead, "file is private")
	}
	return s.checkAssociation(ctx, actor, *file.AssociatedType, *file.AssociatedID, ActionRead)
}

// checkAssociation verifies actor can reach the record a file belongs to.
func (s *fileService) checkAssociation(ctx context.Context, actor Actor, kind models.FileAssociation, id, action string) error {
	if actor.Is(models.RoleAdmin) {
		return nil
	}

	scope, err := resolveScope(ctx, s.repo, nil, actor)
	if err != nil {
		return err
	}
	denied := NewPermissionError(actor.UserID, id, ResourceFiles, action, fmt.Sprintf("%s is not in your scope", kind))

	var studentID, tutorID string
	switch kind {
	case models.AssociationLesson:
		lesson, err := s.repo.Lesson().GetByID(ctx, nil, id)
		if err != nil {
			return notFoundOr(err, ErrLessonNotFound)
		}
		studentID, tutorID = lesson.StudentID, lesson.TutorID
	case models.AssociationHomework:
		hw, err := s.repo.Homework().GetByID(ctx, nil, id)
		if err != nil {
			return notFoundOr(err, ErrHomeworkNotFound)
		}
		studentID, tutorID = hw.StudentID, hw.TutorID
	case models.AssociationSubmission:
		sub, err := s.repo.Homework().GetSubmission(ctx, nil, id)
		if err != nil {
			return notFoundOr(err, ErrSubmissionNotFound)
		}
		hw, err := s.repo.Homework().GetByID(ctx, nil, sub.HomeworkID)
		if err != nil {
			return notFoundOr(err, ErrHomeworkNotFound)
		}
		studentID, tutorID = hw.StudentID, hw.TutorID
	case models.AssociationProfile:
		if id == actor.UserID {
			return nil
		}
		return denied
	default:
		return ValidationErrors{{Field: "associated_type", Message: "must be one of lesson, homework, submission, profile", Value: kind, Rule: "oneof"}}
	}

	if !scope.allows(studentID, tutorID) {
		return denied
	}
	return nil
}

func notFoundOr(err, sentinel error) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return err
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
