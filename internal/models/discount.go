package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiscountScope string

const (
	ScopeCart       DiscountScope = "cart"
	ScopeProductSet DiscountScope = "product_set"
)

var (
	ErrDiscountExpired     = errors.New("discount code is expired or used up")
	ErrDiscountNotIncluded = errors.New("product is not included in this discount code")
	ErrMissingTarget       = errors.New("discount application needs a product or an amount")
)

// DiscountCode is applied to at most one cart at a time. Amount is a
// percentage when IsPercentage is set, otherwise a fixed toman amount.
//
// MaxUsage zero does NOT mean unlimited: such a code is usable exactly
// once across all users before its expiry.
type DiscountCode struct {
	ID           uuid.UUID     `gorm:"type:uuid;primary_key"`
	Name         string
	Code         string        `gorm:"size:20;unique;not null;index"`
	Amount       int64         `gorm:"not null"`
	IsPercentage bool          `gorm:"not null;default:true"`
	Scope        DiscountScope `gorm:"size:20;not null;default:'cart'"`
	MaxUsage     int           `gorm:"not null;default:0"`
	CurrentUsage int           `gorm:"not null;default:0"`
	ExpiresAt    time.Time     `gorm:"not null"`
	Products     []Product     `gorm:"many2many:discount_code_products;"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SoftDelete
}

func (code *DiscountCode) BeforeCreate(tx *gorm.DB) (err error) {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	if code.ExpiresAt.IsZero() {
		code.ExpiresAt = time.Now().Add(48 * time.Hour)
	}
	return
}

// IsValid fails closed: a code is dead once its usage count reaches
// MaxUsage (with MaxUsage 0 both start at zero, so the first use kills
// it) or its expiry passes.
func (code *DiscountCode) IsValid(now time.Time) bool {
	if code.MaxUsage != 0 && code.CurrentUsage >= code.MaxUsage {
		return false
	}
	if code.MaxUsage == 0 && code.CurrentUsage > 0 {
		return false
	}
	return !now.After(code.ExpiresAt)
}

// IncludesProduct reports whether a product may absorb this code.
// Cart-scoped codes cover everything, and a product-scoped code with an
// empty set behaves as "all products".
func (code *DiscountCode) IncludesProduct(productID uuid.UUID) bool {
	if code.Scope != ScopeProductSet {
		return true
	}
	if len(code.Products) == 0 {
		return true
	}
	for _, p := range code.Products {
		if p.ID == productID {
			return true
		}
	}
	return false
}

// Apply computes the discounted value of a base amount. The base is the
// given amount when non-nil, otherwise the product's fixed price. Callers
// must defer IncrementUsage to checkout commit, never to apply time.
func (code *DiscountCode) Apply(product *Product, amount *int64, now time.Time) (int64, error) {
	if !code.IsValid(now) {
		return 0, ErrDiscountExpired
	}
	if code.Scope == ScopeProductSet && len(code.Products) > 0 {
		if product == nil || !code.IncludesProduct(product.ID) {
			return 0, ErrDiscountNotIncluded
		}
	}

	var base int64
	switch {
	case amount != nil:
		base = *amount
	case product != nil:
		base = product.FixedPrice
	default:
		return 0, ErrMissingTarget
	}

	if code.IsPercentage {
		return PercentOff(base, code.Amount), nil
	}
	return SubtractClamped(base, code.Amount), nil
}

// Codes avoid look-alike characters so they survive being read aloud.
const codeSafeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultCodeLength = 10

func GenerateDiscountCode(length int) (string, error) {
	if length < 6 {
		return "", fmt.Errorf("discount code length must be at least 6, got %d", length)
	}
	chars := make([]byte, length)
	max := big.NewInt(int64(len(codeSafeChars)))
	for i := range chars {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		chars[i] = codeSafeChars[n.Int64()]
	}
	return string(chars), nil
}
