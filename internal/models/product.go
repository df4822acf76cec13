package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	Name            string    `gorm:"not null;index"`
	FixedPrice      int64     `gorm:"not null;default:0"`
	DiscountPercent int64     `gorm:"not null;default:0"`
	IsPublished     bool      `gorm:"not null;default:true;index"`
	Variants        []ProductVariant
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SoftDelete
}

func (product *Product) BeforeCreate(tx *gorm.DB) (err error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return
}

type Color struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"unique;not null"`
	Code      string    `gorm:"unique;not null"` // hex, lowercase
	CreatedAt time.Time
	UpdatedAt time.Time
	SoftDelete
}

func (color *Color) BeforeCreate(tx *gorm.DB) (err error) {
	if color.ID == uuid.Nil {
		color.ID = uuid.New()
	}
	return
}

// ProductVariant is one color of a product with its own price, discount
// and stock. Zero values fall back to the owning product.
type ProductVariant struct {
	ID                  uuid.UUID `gorm:"type:uuid;primary_key"`
	ProductID           uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_product_color"`
	Product             Product
	ColorID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_color"`
	Color               Color
	BasePrice           int64 `gorm:"not null;default:0"`
	BaseDiscountPercent int64 `gorm:"not null;default:0"`
	Stock               int   `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	SoftDelete
}

func (variant *ProductVariant) BeforeCreate(tx *gorm.DB) (err error) {
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	return
}

func (variant *ProductVariant) EffectivePrice() int64 {
	if variant.BasePrice == 0 {
		return variant.Product.FixedPrice
	}
	return variant.BasePrice
}

func (variant *ProductVariant) EffectiveDiscountPercent() int64 {
	if variant.BaseDiscountPercent == 0 {
		return variant.Product.DiscountPercent
	}
	return variant.BaseDiscountPercent
}

// DiscountedPrice is the catalog price after the variant's own discount
// percent. Always within [0, EffectivePrice].
func (variant *ProductVariant) DiscountedPrice() int64 {
	return PercentOff(variant.EffectivePrice(), variant.EffectiveDiscountPercent())
}
