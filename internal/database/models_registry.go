package database

import "intelliblog/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Subscription{},
		&models.ModerationRecord{},
		&models.Job{},
		&models.JobStep{},
	}
}
