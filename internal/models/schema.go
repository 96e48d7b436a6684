package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AllModels lists every persisted model in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Profile{},
		&Student{},
		&Tutor{},
		&Parent{},
		&Lesson{},
		&Homework{},
		&Submission{},
		&Feedback{},
		&Performance{},
		&File{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
