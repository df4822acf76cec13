package cart

import (
	"errors"

	"github.com/google/uuid"
	"github.com/miladrsm/colorcart/internal/models"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrOutOfStock = errors.New("out of stock")
)

type VariantStore interface {
	Get(id uuid.UUID) (*models.ProductVariant, error)
	// GetForUpdate takes a row lock so concurrent stock checks against the
	// same variant serialize. Only meaningful inside Transact.
	GetForUpdate(id uuid.UUID) (*models.ProductVariant, error)
	Save(variant *models.ProductVariant) error
}

type DiscountStore interface {
	GetByCode(code string) (*models.DiscountCode, error)
	// IncrementUsage burns one use of the code. Call it exactly once per
	// committed order, never at apply-to-cart time.
	IncrementUsage(code *models.DiscountCode) error
}

type CartStore interface {
	// GetOrCreate returns the user's open cart, creating it when missing.
	// Safe against two requests racing on the same user. The discount code
	// (with its product set) and delivery are loaded, items are not.
	GetOrCreate(userID uuid.UUID) (*models.Cart, error)
	Save(cart *models.Cart) error
	LoadItems(cart *models.Cart) error
	GetItem(cartID, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByVariant(cartID, variantID uuid.UUID) (*models.CartItem, error)
	CreateItem(item *models.CartItem) error
	SaveItem(item *models.CartItem) error
	PurgeItem(item *models.CartItem) error
}

type DeliveryStore interface {
	GetActive(id uuid.UUID) (*models.Delivery, error)
	ListActive() ([]models.Delivery, error)
}

type OrderStore interface {
	Create(order *models.Order) error
}

// Stores bundles the persistence contracts the cart and checkout services
// depend on. Transact runs fn against transactional stores; any error
// rolls the whole unit of work back.
type Stores interface {
	Variants() VariantStore
	Discounts() DiscountStore
	Carts() CartStore
	Deliveries() DeliveryStore
	Orders() OrderStore
	Transact(fn func(Stores) error) error
}
