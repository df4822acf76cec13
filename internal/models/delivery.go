package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery is a shipping method the customer picks at checkout, e.g.
// post or courier.
type Delivery struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"size:75;unique;not null"`
	Cost      int64     `gorm:"not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
	SoftDelete
}

func (delivery *Delivery) BeforeCreate(tx *gorm.DB) (err error) {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	return
}
