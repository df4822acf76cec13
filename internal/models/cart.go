package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CartStatus string

const (
	CartPendingPay CartStatus = "pending_pay"
	CartPaid       CartStatus = "paid"
	CartPayError   CartStatus = "pay_error"
)

// Cart is the single open cart of a user. Totals are always derived from
// the items, never stored.
type Cart struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	CreatedBy      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status         CartStatus `gorm:"size:20;not null;default:'pending_pay'"`
	DiscountCodeID *uuid.UUID `gorm:"type:uuid"`
	DiscountCode   *DiscountCode
	DeliveryID     *uuid.UUID `gorm:"type:uuid"`
	Delivery       *Delivery
	Items          []CartItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SoftDelete
}

func (cart *Cart) BeforeCreate(tx *gorm.DB) (err error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	return
}

type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CartID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_cart_variant"`
	VariantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_variant"`
	Variant   ProductVariant
	Count     int `gorm:"not null;default:1"`
	// DiscountTargeted marks the single item that absorbed a
	// product-scoped code; Discounted is that line's total after the
	// code, which can legitimately be zero on a full discount.
	DiscountTargeted bool      `gorm:"not null;default:false"`
	Discounted       int64     `gorm:"not null;default:0"`
	CreatedBy  uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	SoftDelete
}

func (item *CartItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return
}

func (item *CartItem) TotalPrice() int64 {
	return int64(item.Count) * item.Variant.EffectivePrice()
}

func (cart *Cart) TotalPrice() int64 {
	var total int64
	for i := range cart.Items {
		total += cart.Items[i].TotalPrice()
	}
	return total
}

// DiscountedTotal is the cart total after the attached discount code, or
// the plain total when no code applies.
func (cart *Cart) DiscountedTotal(now time.Time) int64 {
	total := cart.TotalPrice()
	if cart.DiscountCode == nil {
		return total
	}
	if cart.DiscountCode.Scope == ScopeCart {
		discounted, err := cart.DiscountCode.Apply(nil, &total, now)
		if err != nil {
			return total
		}
		return discounted
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.DiscountTargeted {
			return total - item.TotalPrice() + item.Discounted
		}
	}
	return total
}

// SelectDiscountTarget picks the one item that absorbs a product-scoped
// code: the highest-value eligible line, ties broken by lowest item id so
// the choice is stable. Nil when no line is eligible.
func (cart *Cart) SelectDiscountTarget() *CartItem {
	if cart.DiscountCode == nil || cart.DiscountCode.Scope != ScopeProductSet {
		return nil
	}
	var target *CartItem
	for i := range cart.Items {
		item := &cart.Items[i]
		if !cart.DiscountCode.IncludesProduct(item.Variant.ProductID) {
			continue
		}
		if target == nil {
			target = item
			continue
		}
		switch value, best := item.TotalPrice(), target.TotalPrice(); {
		case value > best:
			target = item
		case value == best && bytes.Compare(item.ID[:], target.ID[:]) < 0:
			target = item
		}
	}
	return target
}
