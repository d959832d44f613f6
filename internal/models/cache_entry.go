package models

import (
	"time"
)

// CacheEntry persists a memoized response or rate-limit counter when neither
// Redis nor the in-process cache is configured.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the fallback cache table name stable across drivers.
func (CacheEntry) TableName() string {
	return "cache_entries"
}
