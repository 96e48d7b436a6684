package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileAssociation string

const (
	AssociationLesson     FileAssociation = "lesson"
	AssociationHomework   FileAssociation = "homework"
	AssociationSubmission FileAssociation = "submission"
	AssociationProfile    FileAssociation = "profile"
)

// File is the metadata row for an object kept in blob storage.
type File struct {
	ID               string           `json:"id" gorm:"primaryKey;size:36"`
	Filename         string           `json:"filename" gorm:"not null;size:255"`
	OriginalFilename string           `json:"original_filename" gorm:"not null;size:255"`
	FileURL          string           `json:"file_url" gorm:"not null;size:500"`
	StorageKey       string           `json:"-" gorm:"size:255"`
	FileSize         int64            `json:"file_size" gorm:"not null"`
	MimeType         string           `json:"mime_type" gorm:"not null;size:100"`
	UploadedBy       string           `json:"uploaded_by" gorm:"not null;index;size:36"`
	AssociatedID     *string          `json:"associated_id" gorm:"index:idx_files_association;size:36"`
	AssociatedType   *FileAssociation `json:"associated_type" gorm:"index:idx_files_association;size:20"`

	CreatedAt time.Time `json:"created_at"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
