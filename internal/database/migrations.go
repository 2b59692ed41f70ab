package database

import (
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Post{},
		&models.Like{},
		&models.Bookmark{},
		&models.Vote{},
		&models.Comment{},
		&models.Notification{},
		&models.Chat{},
		&models.Message{},
		&models.Group{},
		&models.GroupMember{},
		&models.CacheEntry{},
	)
}
