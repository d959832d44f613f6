package models

import "time"

// RateCounter is a fixed-window request counter for the SQL cache fallback.
// The window restarts on the first hit after WindowEnds.
type RateCounter struct {
	Key        string    `gorm:"primaryKey;size:256"`
	Hits       int64     `gorm:"not null;default:0"`
	WindowEnds time.Time `gorm:"not null;index"`
}

// TableName keeps the counter table name stable across drivers.
func (RateCounter) TableName() string {
	return "rate_limit_counters"
}
