package cart_test

import (
	"maps"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladrsm/colorcart/internal/cart"
	"github.com/miladrsm/colorcart/internal/models"
)

// memStores is an in-memory cart.Stores. Transact snapshots the maps and
// restores them on error, mirroring a database rollback.
type memStores struct {
	variants   map[uuid.UUID]models.ProductVariant
	discounts  map[uuid.UUID]models.DiscountCode
	carts      map[uuid.UUID]models.Cart
	items      map[uuid.UUID]models.CartItem
	deliveries map[uuid.UUID]models.Delivery
	orders     map[uuid.UUID]models.Order

	seq             int
	usageIncrements int
	failOrderCreate bool
}

func newMemStores() *memStores {
	return &memStores{
		variants:   map[uuid.UUID]models.ProductVariant{},
		discounts:  map[uuid.UUID]models.DiscountCode{},
		carts:      map[uuid.UUID]models.Cart{},
		items:      map[uuid.UUID]models.CartItem{},
		deliveries: map[uuid.UUID]models.Delivery{},
		orders:     map[uuid.UUID]models.Order{},
	}
}

func (m *memStores) Variants() cart.VariantStore    { return &memVariants{m} }
func (m *memStores) Discounts() cart.DiscountStore  { return &memDiscounts{m} }
func (m *memStores) Carts() cart.CartStore          { return &memCarts{m} }
func (m *memStores) Deliveries() cart.DeliveryStore { return &memDeliveries{m} }
func (m *memStores) Orders() cart.OrderStore        { return &memOrders{m} }

func (m *memStores) Transact(fn func(cart.Stores) error) error {
	variants := maps.Clone(m.variants)
	discounts := maps.Clone(m.discounts)
	carts := maps.Clone(m.carts)
	items := maps.Clone(m.items)
	orders := maps.Clone(m.orders)
	usage := m.usageIncrements

	if err := fn(m); err != nil {
		m.variants = variants
		m.discounts = discounts
		m.carts = carts
		m.items = items
		m.orders = orders
		m.usageIncrements = usage
		return err
	}
	return nil
}

type memVariants struct{ m *memStores }

func (s *memVariants) Get(id uuid.UUID) (*models.ProductVariant, error) {
	variant, ok := s.m.variants[id]
	if !ok || variant.IsDeleted {
		return nil, cart.ErrNotFound
	}
	return &variant, nil
}

func (s *memVariants) GetForUpdate(id uuid.UUID) (*models.ProductVariant, error) {
	return s.Get(id)
}

func (s *memVariants) Save(variant *models.ProductVariant) error {
	s.m.variants[variant.ID] = *variant
	return nil
}

type memDiscounts struct{ m *memStores }

func (s *memDiscounts) GetByCode(code string) (*models.DiscountCode, error) {
	for _, d := range s.m.discounts {
		if d.Code == code && !d.IsDeleted {
			found := d
			return &found, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (s *memDiscounts) IncrementUsage(code *models.DiscountCode) error {
	stored := s.m.discounts[code.ID]
	stored.CurrentUsage++
	s.m.discounts[code.ID] = stored
	code.CurrentUsage++
	s.m.usageIncrements++
	return nil
}

type memCarts struct{ m *memStores }

func (s *memCarts) GetOrCreate(userID uuid.UUID) (*models.Cart, error) {
	for _, c := range s.m.carts {
		if c.CreatedBy == userID && c.Status == models.CartPendingPay && !c.IsDeleted {
			return s.load(c), nil
		}
	}
	c := models.Cart{ID: uuid.New(), CreatedBy: userID, Status: models.CartPendingPay}
	s.m.carts[c.ID] = c
	return s.load(c), nil
}

func (s *memCarts) load(c models.Cart) *models.Cart {
	if c.DiscountCodeID != nil {
		if d, ok := s.m.discounts[*c.DiscountCodeID]; ok && !d.IsDeleted {
			c.DiscountCode = &d
		}
	}
	if c.DeliveryID != nil {
		if d, ok := s.m.deliveries[*c.DeliveryID]; ok {
			c.Delivery = &d
		}
	}
	return &c
}

func (s *memCarts) Save(c *models.Cart) error {
	stored := *c
	stored.Items = nil
	stored.DiscountCode = nil
	stored.Delivery = nil
	s.m.carts[c.ID] = stored
	return nil
}

func (s *memCarts) LoadItems(c *models.Cart) error {
	c.Items = nil
	for _, item := range s.m.items {
		if item.CartID != c.ID {
			continue
		}
		item.Variant = s.m.variants[item.VariantID]
		c.Items = append(c.Items, item)
	}
	sort.Slice(c.Items, func(i, j int) bool {
		return c.Items[i].CreatedAt.Before(c.Items[j].CreatedAt)
	})
	return nil
}

func (s *memCarts) GetItem(cartID, itemID uuid.UUID) (*models.CartItem, error) {
	item, ok := s.m.items[itemID]
	if !ok || item.CartID != cartID {
		return nil, cart.ErrNotFound
	}
	item.Variant = s.m.variants[item.VariantID]
	return &item, nil
}

func (s *memCarts) FindItemByVariant(cartID, variantID uuid.UUID) (*models.CartItem, error) {
	for _, item := range s.m.items {
		if item.CartID == cartID && item.VariantID == variantID {
			item.Variant = s.m.variants[item.VariantID]
			return &item, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (s *memCarts) CreateItem(item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.m.seq++
	item.CreatedAt = time.Unix(int64(s.m.seq), 0)
	stored := *item
	stored.Variant = models.ProductVariant{}
	s.m.items[item.ID] = stored
	return nil
}

func (s *memCarts) SaveItem(item *models.CartItem) error {
	stored := *item
	stored.Variant = models.ProductVariant{}
	s.m.items[item.ID] = stored
	return nil
}

func (s *memCarts) PurgeItem(item *models.CartItem) error {
	delete(s.m.items, item.ID)
	return nil
}

type memDeliveries struct{ m *memStores }

func (s *memDeliveries) GetActive(id uuid.UUID) (*models.Delivery, error) {
	delivery, ok := s.m.deliveries[id]
	if !ok || !delivery.IsActive || delivery.IsDeleted {
		return nil, cart.ErrNotFound
	}
	return &delivery, nil
}

func (s *memDeliveries) ListActive() ([]models.Delivery, error) {
	var out []models.Delivery
	for _, d := range s.m.deliveries {
		if d.IsActive && !d.IsDeleted {
			out = append(out, d)
		}
	}
	return out, nil
}

type memOrders struct{ m *memStores }

func (s *memOrders) Create(order *models.Order) error {
	if s.m.failOrderCreate {
		return assert.AnError
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.m.orders[order.ID] = *order
	return nil
}

// --- fixtures ---

func (m *memStores) addVariant(name string, price int64, stock int) models.ProductVariant {
	productID := uuid.New()
	variant := models.ProductVariant{
		ID:        uuid.New(),
		ProductID: productID,
		Product:   models.Product{ID: productID, Name: name, FixedPrice: price},
		ColorID:   uuid.New(),
		Color:     models.Color{Name: "black", Code: "#000000"},
		BasePrice: price,
		Stock:     stock,
	}
	m.variants[variant.ID] = variant
	return variant
}

func (m *memStores) addDiscount(code string, amount int64, scope models.DiscountScope, expiresAt time.Time, products ...models.Product) models.DiscountCode {
	discount := models.DiscountCode{
		ID:           uuid.New(),
		Code:         code,
		Amount:       amount,
		IsPercentage: true,
		Scope:        scope,
		ExpiresAt:    expiresAt,
		Products:     products,
	}
	m.discounts[discount.ID] = discount
	return discount
}

// --- tests ---

func TestAddItemStockSequence(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 3)

	wantRemaining := []int{2, 1, 0}
	for _, want := range wantRemaining {
		result, err := svc.AddItem(userID, variant.ID)
		require.NoError(t, err)
		assert.Equal(t, want, result.RemainingStock)
	}

	_, err := svc.AddItem(userID, variant.ID)
	assert.ErrorIs(t, err, cart.ErrOutOfStock)
}

func TestAddItemZeroStockVariant(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	variant := stores.addVariant("mug", 1000, 0)

	_, err := svc.AddItem(uuid.New(), variant.ID)
	assert.ErrorIs(t, err, cart.ErrOutOfStock)
}

func TestAddItemSoftDeletedVariant(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	variant := stores.addVariant("mug", 1000, 5)

	removed := stores.variants[variant.ID]
	removed.MarkDeleted(time.Now())
	stores.variants[variant.ID] = removed

	_, err := svc.AddItem(uuid.New(), variant.ID)
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestAddItemUnknownVariant(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)

	_, err := svc.AddItem(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 10)

	first, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	second, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ItemID, second.ItemID)
	assert.Len(t, stores.items, 1)
	assert.Equal(t, 2, stores.items[first.ItemID].Count)
}

func TestRemoveItemDecrements(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 10)

	result, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(userID, variant.ID)
	require.NoError(t, err)

	deleted, err := svc.RemoveItem(userID, result.ItemID, false)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 2, stores.items[result.ItemID].Count)
}

func TestRemoveItemDeletesAtCountOne(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 10)

	result, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)

	deleted, err := svc.RemoveItem(userID, result.ItemID, false)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, stores.items)
}

func TestRemoveItemForceDelete(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 10)

	result, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = svc.AddItem(userID, variant.ID)
		require.NoError(t, err)
	}

	deleted, err := svc.RemoveItem(userID, result.ItemID, true)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, stores.items)
}

func TestRemoveItemNotFound(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)

	_, err := svc.RemoveItem(uuid.New(), uuid.New(), false)
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestApplyDiscount(t *testing.T) {
	future := time.Now().Add(time.Hour)

	t.Run("cart_scope_applies", func(t *testing.T) {
		stores := newMemStores()
		svc := cart.NewService(stores)
		userID := uuid.New()
		variant := stores.addVariant("mug", 1000, 5)
		discount := stores.addDiscount("SAVE10", 10, models.ScopeCart, future)

		_, err := svc.AddItem(userID, variant.ID)
		require.NoError(t, err)
		attached, err := svc.ApplyDiscount(userID, "SAVE10")
		require.NoError(t, err)
		assert.True(t, attached)

		viewed, _, err := svc.View(userID)
		require.NoError(t, err)
		require.NotNil(t, viewed.DiscountCode)
		assert.Equal(t, discount.ID, viewed.DiscountCode.ID)
		// usage only burns at checkout commit
		assert.Equal(t, 0, stores.usageIncrements)
	})

	t.Run("reapplying_same_code_toggles_off", func(t *testing.T) {
		stores := newMemStores()
		svc := cart.NewService(stores)
		userID := uuid.New()
		variant := stores.addVariant("mug", 1000, 5)
		stores.addDiscount("SAVE10", 10, models.ScopeCart, future)

		_, err := svc.AddItem(userID, variant.ID)
		require.NoError(t, err)
		attached, err := svc.ApplyDiscount(userID, "SAVE10")
		require.NoError(t, err)
		require.True(t, attached)

		attached, err = svc.ApplyDiscount(userID, "SAVE10")
		require.NoError(t, err)
		assert.False(t, attached)

		viewed, _, err := svc.View(userID)
		require.NoError(t, err)
		assert.Nil(t, viewed.DiscountCode)
	})

	t.Run("unknown_code", func(t *testing.T) {
		stores := newMemStores()
		svc := cart.NewService(stores)
		_, err := svc.ApplyDiscount(uuid.New(), "NOPE")
		assert.ErrorIs(t, err, cart.ErrNotFound)
	})

	t.Run("expired_code", func(t *testing.T) {
		stores := newMemStores()
		svc := cart.NewService(stores)
		stores.addDiscount("OLD123", 10, models.ScopeCart, time.Now().Add(-time.Hour))
		_, err := svc.ApplyDiscount(uuid.New(), "OLD123")
		assert.ErrorIs(t, err, models.ErrDiscountExpired)
	})

	t.Run("product_scope_needs_matching_item", func(t *testing.T) {
		stores := newMemStores()
		svc := cart.NewService(stores)
		userID := uuid.New()
		variant := stores.addVariant("mug", 1000, 5)
		stores.addDiscount("SCOPED", 10, models.ScopeProductSet, future, models.Product{ID: uuid.New()})

		_, err := svc.AddItem(userID, variant.ID)
		require.NoError(t, err)
		_, err = svc.ApplyDiscount(userID, "SCOPED")
		assert.ErrorIs(t, err, models.ErrDiscountNotIncluded)
	})
}

func TestUnapplyDiscount(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()
	variant := stores.addVariant("mug", 1000, 5)
	stores.addDiscount("SAVE10", 10, models.ScopeProductSet, time.Now().Add(time.Hour), variant.Product)

	result, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	mustApply(t, svc, userID, "SAVE10")
	assert.NotZero(t, stores.items[result.ItemID].Discounted)

	require.NoError(t, svc.UnapplyDiscount(userID))

	viewed, warnings, err := svc.View(userID)
	require.NoError(t, err)
	assert.Nil(t, viewed.DiscountCode)
	assert.Empty(t, warnings)
	assert.Zero(t, stores.items[result.ItemID].Discounted)
}

func TestViewReconciliation(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()

	gone := stores.addVariant("mug", 1000, 5)
	scarce := stores.addVariant("plate", 2000, 5)
	stores.addDiscount("OLD123", 10, models.ScopeCart, time.Now().Add(time.Hour))

	goneResult, err := svc.AddItem(userID, gone.ID)
	require.NoError(t, err)
	scarceResult, err := svc.AddItem(userID, scarce.ID)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = svc.AddItem(userID, scarce.ID)
		require.NoError(t, err)
	}
	mustApply(t, svc, userID, "OLD123")

	// admin edits after the cart was built
	soldOut := stores.variants[gone.ID]
	soldOut.Stock = 0
	stores.variants[gone.ID] = soldOut

	reduced := stores.variants[scarce.ID]
	reduced.Stock = 2
	stores.variants[scarce.ID] = reduced

	expired := stores.discounts[mustDiscountID(stores, "OLD123")]
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	stores.discounts[expired.ID] = expired

	viewed, warnings, err := svc.View(userID)
	require.NoError(t, err)

	require.Len(t, warnings, 3)
	assert.Equal(t, cart.WarnOutOfStock, warnings[0].Code)
	assert.Equal(t, goneResult.ItemID, *warnings[0].ItemID)
	assert.Equal(t, cart.WarnQuantityAdjusted, warnings[1].Code)
	assert.Equal(t, scarceResult.ItemID, *warnings[1].ItemID)
	assert.Equal(t, cart.WarnDiscountExpired, warnings[2].Code)
	assert.Nil(t, warnings[2].ItemID)

	require.Len(t, viewed.Items, 1)
	assert.Equal(t, 2, viewed.Items[0].Count)
	assert.Nil(t, viewed.DiscountCode)

	// idempotent: a second view finds nothing left to fix
	again, warnings, err := svc.View(userID)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, again.Items, 1)
	assert.Equal(t, viewed.Items[0].Count, again.Items[0].Count)
}

func TestViewTargetsHighestValueLine(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()

	cheap := stores.addVariant("mug", 1000, 10)
	dear := stores.addVariant("plate", 2500, 10)
	stores.addDiscount("SCOPED", 10, models.ScopeProductSet, time.Now().Add(time.Hour), cheap.Product, dear.Product)

	cheapResult, err := svc.AddItem(userID, cheap.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(userID, cheap.ID) // 2 x 1000
	require.NoError(t, err)
	dearResult, err := svc.AddItem(userID, dear.ID) // 1 x 2500
	require.NoError(t, err)

	mustApply(t, svc, userID, "SCOPED")

	_, warnings, err := svc.View(userID)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Zero(t, stores.items[cheapResult.ItemID].Discounted)
	assert.False(t, stores.items[cheapResult.ItemID].DiscountTargeted)
	assert.Equal(t, int64(2250), stores.items[dearResult.ItemID].Discounted)
	assert.True(t, stores.items[dearResult.ItemID].DiscountTargeted)
}

func TestViewFullDiscountOnTargetLine(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()

	variant := stores.addVariant("mug", 1000, 10)
	stores.addDiscount("FREEBIE", 100, models.ScopeProductSet, time.Now().Add(time.Hour), variant.Product)

	result, err := svc.AddItem(userID, variant.ID)
	require.NoError(t, err)
	mustApply(t, svc, userID, "FREEBIE")

	viewed, warnings, err := svc.View(userID)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	// a line discounted to zero is still the target, not an untargeted line
	item := stores.items[result.ItemID]
	assert.True(t, item.DiscountTargeted)
	assert.Zero(t, item.Discounted)
	assert.Equal(t, int64(1000), viewed.TotalPrice())
	assert.Zero(t, viewed.DiscountedTotal(time.Now()))
}

func TestViewClearsInapplicableDiscount(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()

	eligible := stores.addVariant("mug", 1000, 10)
	other := stores.addVariant("plate", 2000, 10)
	stores.addDiscount("SCOPED", 10, models.ScopeProductSet, time.Now().Add(time.Hour), eligible.Product)

	result, err := svc.AddItem(userID, eligible.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(userID, other.ID)
	require.NoError(t, err)
	mustApply(t, svc, userID, "SCOPED")

	// the only eligible line leaves the cart
	deleted, err := svc.RemoveItem(userID, result.ItemID, true)
	require.NoError(t, err)
	assert.True(t, deleted)

	viewed, warnings, err := svc.View(userID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, cart.WarnDiscountNotApplicable, warnings[0].Code)
	assert.Nil(t, viewed.DiscountCode)
}

func TestSelectDelivery(t *testing.T) {
	stores := newMemStores()
	svc := cart.NewService(stores)
	userID := uuid.New()

	active := models.Delivery{ID: uuid.New(), Name: "Post", Cost: 45000, IsActive: true}
	inactive := models.Delivery{ID: uuid.New(), Name: "Courier", Cost: 90000, IsActive: false}
	stores.deliveries[active.ID] = active
	stores.deliveries[inactive.ID] = inactive

	require.NoError(t, svc.SelectDelivery(userID, active.ID))
	viewed, _, err := svc.View(userID)
	require.NoError(t, err)
	require.NotNil(t, viewed.Delivery)
	assert.Equal(t, active.ID, viewed.Delivery.ID)

	assert.ErrorIs(t, svc.SelectDelivery(userID, inactive.ID), cart.ErrNotFound)
}

func mustApply(t *testing.T, svc *cart.Service, userID uuid.UUID, code string) {
	t.Helper()
	attached, err := svc.ApplyDiscount(userID, code)
	require.NoError(t, err)
	require.True(t, attached)
}

func mustDiscountID(stores *memStores, code string) uuid.UUID {
	for id, d := range stores.discounts {
		if d.Code == code {
			return id
		}
	}
	panic("discount not found: " + code)
}
