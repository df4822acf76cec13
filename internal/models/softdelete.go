package models

import (
	"time"

	"gorm.io/gorm"
)

// SoftDelete marks rows as deleted instead of removing them. Queries must
// opt in to the filter with the NotDeleted scope; there is no implicit
// global filter, so every read spells out which rows it wants.
type SoftDelete struct {
	IsDeleted bool `gorm:"not null;default:false;index"`
	DeletedAt *time.Time
}

func (s *SoftDelete) MarkDeleted(now time.Time) {
	s.IsDeleted = true
	s.DeletedAt = &now
}

// NotDeleted excludes soft-deleted rows.
func NotDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("is_deleted = ?", false)
}
