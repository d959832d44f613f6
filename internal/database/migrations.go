package database

import (
	"gorm.io/gorm"

	"github.com/aecdata/pipeline/internal/models"
)

// AutoMigrate creates or updates the file metadata table and the SQL cache
// fallback tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.FileMetadata{},
		&models.CacheEntry{},
		&models.RateCounter{},
	)
}
