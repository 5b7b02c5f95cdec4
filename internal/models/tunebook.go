package models

import (
	"time"

	"gorm.io/gorm"
)

// TuneBook is a stored ABC source document. The raw source is kept verbatim;
// tunes are extracted from it on demand by reference number rather than being
// stored individually.
type TuneBook struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	PublicID  string         `gorm:"uniqueIndex;not null" json:"public_id"` // UUID handed to clients
	Title     string         `json:"title"`
	Source    string         `gorm:"type:text;not null" json:"-"`
	TuneCount int            `gorm:"not null" json:"tune_count"`
	RequestID string         `gorm:"index" json:"request_id"`
}

// ParseLog tracks parse requests for usage reporting.
type ParseLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	RequestID    string    `gorm:"index" json:"request_id"`
	SourceBytes  int       `gorm:"not null" json:"source_bytes"`
	TuneCount    int       `gorm:"not null" json:"tune_count"`
	WarningCount int       `gorm:"default:0" json:"warning_count"`
	ErrorCount   int       `gorm:"default:0" json:"error_count"`
	DurationMS   int       `gorm:"not null" json:"duration_ms"`
}
