package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPendingSend OrderStatus = "pending_send"
	OrderSent        OrderStatus = "sent"
	OrderDone        OrderStatus = "done"
	OrderCanceled    OrderStatus = "canceled"
)

type Order struct {
	ID            uuid.UUID   `gorm:"type:uuid;primary_key"`
	CreatedBy     uuid.UUID   `gorm:"type:uuid;not null;index"`
	CartID        uuid.UUID   `gorm:"type:uuid;not null;unique"`
	Status        OrderStatus `gorm:"size:20;not null;default:'pending_send'"`
	BuyDate       time.Time   `gorm:"not null"`
	SendDate      *time.Time
	TrackingCode  string
	TotalPrice    int64 `gorm:"not null"`
	DiscountPrice int64 `gorm:"not null;default:0"`
	DeliveryPrice int64 `gorm:"not null;default:0"`
	FinalPrice    int64 `gorm:"not null"`
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SoftDelete
}

func (order *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return
}

// OrderItem is a frozen copy of the cart line at purchase time. Name,
// color and prices are snapshotted so later catalog edits never touch
// historical orders.
type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductName  string    `gorm:"not null"`
	ColorCode    string    `gorm:"not null"`
	ProductPrice int64     `gorm:"not null"`
	ProductCount int       `gorm:"not null"`
	TotalPrice   int64     `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (item *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return
}
