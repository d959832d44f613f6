package models

import (
	"time"

	"gorm.io/gorm"
)

// FileMetadata records one uploaded artifact and where its bytes live.
type FileMetadata struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename        string    `gorm:"size:255;not null" json:"filename"`
	StorageKey      string    `gorm:"size:512;not null;uniqueIndex" json:"storage_key"`
	StorageBucket   string    `gorm:"size:255;not null" json:"storage_bucket"`
	FileSize        int64     `gorm:"not null;default:0" json:"file_size"`
	ContentType     *string   `gorm:"size:255" json:"content_type"`
	ProjectID       *string   `gorm:"size:100;index" json:"project_id"`
	Description     *string   `gorm:"type:text" json:"description"`
	UploadTimestamp time.Time `gorm:"not null;index" json:"upload_timestamp"`
}

// TableName pins the table shared by the ingestion and query services.
func (FileMetadata) TableName() string {
	return "file_metadata"
}

// BeforeCreate stamps the upload time when the caller did not provide one.
func (m *FileMetadata) BeforeCreate(tx *gorm.DB) error {
	if m.UploadTimestamp.IsZero() {
		m.UploadTimestamp = time.Now().UTC()
	} else {
		m.UploadTimestamp = m.UploadTimestamp.UTC()
	}
	return nil
}
