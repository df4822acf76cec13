package cart

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/miladrsm/colorcart/internal/models"
)

// GormStores is the Postgres-backed implementation of Stores. A value
// wraps either the root *gorm.DB or, inside Transact, the transaction
// handle.
type GormStores struct {
	db *gorm.DB
}

func NewGormStores(db *gorm.DB) *GormStores {
	return &GormStores{db: db}
}

func (g *GormStores) Variants() VariantStore   { return &gormVariantStore{db: g.db} }
func (g *GormStores) Discounts() DiscountStore { return &gormDiscountStore{db: g.db} }
func (g *GormStores) Carts() CartStore         { return &gormCartStore{db: g.db} }
func (g *GormStores) Deliveries() DeliveryStore {
	return &gormDeliveryStore{db: g.db}
}
func (g *GormStores) Orders() OrderStore { return &gormOrderStore{db: g.db} }

func (g *GormStores) Transact(fn func(Stores) error) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStores{db: tx})
	})
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type gormVariantStore struct {
	db *gorm.DB
}

func (s *gormVariantStore) Get(id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := s.db.Scopes(models.NotDeleted).
		Preload("Product").Preload("Color").
		First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &variant, nil
}

func (s *gormVariantStore) GetForUpdate(id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(models.NotDeleted).
		First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	// preloads run unlocked; only the variant row itself needs the lock
	if err := s.db.Scopes(models.NotDeleted).First(&variant.Product, "id = ?", variant.ProductID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	if err := s.db.Scopes(models.NotDeleted).First(&variant.Color, "id = ?", variant.ColorID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &variant, nil
}

func (s *gormVariantStore) Save(variant *models.ProductVariant) error {
	return s.db.Omit(clause.Associations).Save(variant).Error
}

type gormDiscountStore struct {
	db *gorm.DB
}

func (s *gormDiscountStore) GetByCode(code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := s.db.Scopes(models.NotDeleted).
		Preload("Products").
		Where("code = ?", code).
		First(&discount).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &discount, nil
}

func (s *gormDiscountStore) IncrementUsage(code *models.DiscountCode) error {
	err := s.db.Model(&models.DiscountCode{}).
		Where("id = ?", code.ID).
		UpdateColumn("current_usage", gorm.Expr("current_usage + 1")).Error
	if err != nil {
		return err
	}
	code.CurrentUsage++
	return nil
}

type gormCartStore struct {
	db *gorm.DB
}

func (s *gormCartStore) GetOrCreate(userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.fetchOpen(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// The partial unique index on open carts turns a creation race into a
	// no-op conflict, so two tabs can never end up with two carts.
	fresh := models.Cart{CreatedBy: userID, Status: models.CartPendingPay}
	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "created_by"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "status = 'pending_pay' AND is_deleted = false"},
		}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, err
	}
	return s.fetchOpen(userID)
}

func (s *gormCartStore) fetchOpen(userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.Scopes(models.NotDeleted).
		Preload("DiscountCode", models.NotDeleted).
		Preload("DiscountCode.Products").
		Preload("Delivery", models.NotDeleted).
		Where("created_by = ? AND status = ?", userID, models.CartPendingPay).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	// a soft-deleted code preloads as nil while the id column stays set;
	// reconciliation spots the dangling reference and clears it
	return &cart, nil
}

func (s *gormCartStore) Save(cart *models.Cart) error {
	return s.db.Omit(clause.Associations).Save(cart).Error
}

func (s *gormCartStore) LoadItems(cart *models.Cart) error {
	cart.Items = nil
	return s.db.Scopes(models.NotDeleted).
		Preload("Variant.Product").Preload("Variant.Color").
		Where("cart_id = ?", cart.ID).
		Order("created_at ASC").
		Find(&cart.Items).Error
}

func (s *gormCartStore) GetItem(cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.Scopes(models.NotDeleted).
		Preload("Variant.Product").Preload("Variant.Color").
		Where("cart_id = ? AND id = ?", cartID, itemID).
		First(&item).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &item, nil
}

func (s *gormCartStore) FindItemByVariant(cartID, variantID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.Scopes(models.NotDeleted).
		Where("cart_id = ? AND variant_id = ?", cartID, variantID).
		First(&item).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &item, nil
}

func (s *gormCartStore) CreateItem(item *models.CartItem) error {
	return s.db.Omit(clause.Associations).Create(item).Error
}

func (s *gormCartStore) SaveItem(item *models.CartItem) error {
	return s.db.Omit(clause.Associations).Save(item).Error
}

// PurgeItem removes the row for real. Cart items are never soft-deleted:
// a removed line must free the (cart, variant) slot for re-adding.
func (s *gormCartStore) PurgeItem(item *models.CartItem) error {
	return s.db.Delete(&models.CartItem{}, "id = ?", item.ID).Error
}

type gormDeliveryStore struct {
	db *gorm.DB
}

func (s *gormDeliveryStore) GetActive(id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.db.Scopes(models.NotDeleted).
		Where("id = ? AND is_active = ?", id, true).
		First(&delivery).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &delivery, nil
}

func (s *gormDeliveryStore) ListActive() ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := s.db.Scopes(models.NotDeleted).
		Where("is_active = ?", true).
		Order("cost ASC").
		Find(&deliveries).Error
	return deliveries, err
}

type gormOrderStore struct {
	db *gorm.DB
}

func (s *gormOrderStore) Create(order *models.Order) error {
	return s.db.Create(order).Error
}
