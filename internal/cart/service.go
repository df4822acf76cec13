package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/miladrsm/colorcart/internal/models"
)

// Service owns the cart flows: view with reconciliation, item add/remove,
// discount apply/unapply and delivery selection. Every operation is a
// short-lived unit of work over the shared store.
type Service struct {
	stores Stores
	now    func() time.Time
}

func NewService(stores Stores) *Service {
	return &Service{stores: stores, now: time.Now}
}

// View returns the user's reconciled cart plus the ordered warnings the
// reconciliation produced. Reconciliation never fails the read: stale
// stock and dead discounts are fixed in place and reported.
func (s *Service) View(userID uuid.UUID) (*models.Cart, []Warning, error) {
	var (
		cart     *models.Cart
		warnings []Warning
	)
	err := s.stores.Transact(func(st Stores) error {
		c, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		if err := st.Carts().LoadItems(c); err != nil {
			return err
		}
		warnings, err = s.reconcile(st, c)
		if err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return cart, warnings, nil
}

// reconcile runs the self-healing pass: drop out-of-stock items, clamp
// over-quantity items, clear dead discounts, then re-run discount
// targeting. Idempotent: a second run right after changes nothing and
// reports nothing.
func (s *Service) reconcile(st Stores, cart *models.Cart) ([]Warning, error) {
	warnings := []Warning{}
	now := s.now()

	kept := cart.Items[:0]
	for i := range cart.Items {
		item := cart.Items[i]
		switch {
		case item.Variant.Stock == 0:
			if err := st.Carts().PurgeItem(&item); err != nil {
				return nil, err
			}
			itemID := item.ID
			warnings = append(warnings, Warning{Code: WarnOutOfStock, ItemID: &itemID})
			log.Warn().Str("item_id", item.ID.String()).Msg("cart: dropped out-of-stock item")
			continue
		case item.Count > item.Variant.Stock:
			item.Count = item.Variant.Stock
			if err := st.Carts().SaveItem(&item); err != nil {
				return nil, err
			}
			itemID := item.ID
			warnings = append(warnings, Warning{Code: WarnQuantityAdjusted, ItemID: &itemID})
		}
		kept = append(kept, item)
	}
	cart.Items = kept

	if cart.DiscountCodeID != nil && (cart.DiscountCode == nil || !cart.DiscountCode.IsValid(now)) {
		cart.DiscountCodeID = nil
		cart.DiscountCode = nil
		if err := st.Carts().Save(cart); err != nil {
			return nil, err
		}
		warnings = append(warnings, Warning{Code: WarnDiscountExpired})
	}

	if cart.DiscountCode != nil && cart.DiscountCode.Scope == models.ScopeProductSet &&
		cart.SelectDiscountTarget() == nil {
		cart.DiscountCodeID = nil
		cart.DiscountCode = nil
		if err := st.Carts().Save(cart); err != nil {
			return nil, err
		}
		warnings = append(warnings, Warning{Code: WarnDiscountNotApplicable})
	}

	if err := s.retarget(st, cart); err != nil {
		return nil, err
	}
	return warnings, nil
}

// retarget resets every item's discounted amount and re-selects the single
// line that absorbs a product-scoped code. Selection is never sticky: it
// reruns on every view and every cart mutation. An inapplicable code is
// left attached here; only reconciliation clears it, with a warning.
func (s *Service) retarget(st Stores, cart *models.Cart) error {
	now := s.now()

	target := cart.SelectDiscountTarget()
	for i := range cart.Items {
		item := &cart.Items[i]
		targeted := target != nil && item.ID == target.ID
		var want int64
		if targeted {
			unit := item.Variant.EffectivePrice()
			discountedUnit, err := cart.DiscountCode.Apply(&item.Variant.Product, &unit, now)
			if err != nil {
				return err
			}
			want = int64(item.Count) * discountedUnit
		}
		if item.Discounted != want || item.DiscountTargeted != targeted {
			item.Discounted = want
			item.DiscountTargeted = targeted
			if err := st.Carts().SaveItem(item); err != nil {
				return err
			}
		}
	}
	return nil
}

type AddResult struct {
	ItemID         uuid.UUID
	RemainingStock int
}

// AddItem puts one unit of a variant into the user's cart, or bumps the
// count of the existing line. The variant row is locked for the duration
// of the transaction so two concurrent adds cannot both pass the stock
// check and oversell.
func (s *Service) AddItem(userID, variantID uuid.UUID) (*AddResult, error) {
	var result *AddResult
	err := s.stores.Transact(func(st Stores) error {
		variant, err := st.Variants().GetForUpdate(variantID)
		if err != nil {
			return err
		}
		if variant.Stock == 0 {
			return ErrOutOfStock
		}

		cart, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}

		item, err := st.Carts().FindItemByVariant(cart.ID, variantID)
		switch {
		case errors.Is(err, ErrNotFound):
			item = &models.CartItem{
				CartID:    cart.ID,
				VariantID: variantID,
				Count:     1,
				CreatedBy: userID,
			}
			if err := st.Carts().CreateItem(item); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if item.Count >= variant.Stock {
				return ErrOutOfStock
			}
			item.Count++
			if err := st.Carts().SaveItem(item); err != nil {
				return err
			}
		}

		if err := s.refreshTargeting(st, cart); err != nil {
			return err
		}
		result = &AddResult{ItemID: item.ID, RemainingStock: variant.Stock - item.Count}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem drops one unit from a cart line. The line is hard-deleted
// when forceDelete is set or the count would fall to zero or below, so a
// racing double-remove can never leave a non-positive count behind.
func (s *Service) RemoveItem(userID, itemID uuid.UUID, forceDelete bool) (deleted bool, err error) {
	err = s.stores.Transact(func(st Stores) error {
		cart, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		item, err := st.Carts().GetItem(cart.ID, itemID)
		if err != nil {
			return err
		}

		item.Count--
		if forceDelete || item.Count <= 0 {
			if err := st.Carts().PurgeItem(item); err != nil {
				return err
			}
			deleted = true
		} else if err := st.Carts().SaveItem(item); err != nil {
			return err
		}

		return s.refreshTargeting(st, cart)
	})
	return deleted, err
}

// ApplyDiscount attaches a code to the cart after validating it, or
// detaches it when the cart already carries that same code. Usage is not
// incremented here; that happens once, at checkout commit.
func (s *Service) ApplyDiscount(userID uuid.UUID, codeValue string) (attached bool, err error) {
	err = s.stores.Transact(func(st Stores) error {
		cart, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		if err := st.Carts().LoadItems(cart); err != nil {
			return err
		}

		code, err := st.Discounts().GetByCode(codeValue)
		if err != nil {
			return err
		}

		// re-sending the attached code toggles it off, even when it has
		// expired in the meantime
		if cart.DiscountCodeID != nil && *cart.DiscountCodeID == code.ID {
			cart.DiscountCodeID = nil
			cart.DiscountCode = nil
			if err := st.Carts().Save(cart); err != nil {
				return err
			}
			return s.retarget(st, cart)
		}

		if !code.IsValid(s.now()) {
			return models.ErrDiscountExpired
		}
		if code.Scope == models.ScopeProductSet {
			included := false
			for i := range cart.Items {
				if code.IncludesProduct(cart.Items[i].Variant.ProductID) {
					included = true
					break
				}
			}
			if !included {
				return models.ErrDiscountNotIncluded
			}
		}

		cart.DiscountCodeID = &code.ID
		cart.DiscountCode = code
		if err := st.Carts().Save(cart); err != nil {
			return err
		}
		attached = true

		return s.retarget(st, cart)
	})
	return attached, err
}

func (s *Service) UnapplyDiscount(userID uuid.UUID) error {
	return s.stores.Transact(func(st Stores) error {
		cart, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		cart.DiscountCodeID = nil
		cart.DiscountCode = nil
		if err := st.Carts().Save(cart); err != nil {
			return err
		}
		return s.refreshTargeting(st, cart)
	})
}

func (s *Service) SelectDelivery(userID, deliveryID uuid.UUID) error {
	return s.stores.Transact(func(st Stores) error {
		delivery, err := st.Deliveries().GetActive(deliveryID)
		if err != nil {
			return err
		}
		cart, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		cart.DeliveryID = &delivery.ID
		cart.Delivery = delivery
		return st.Carts().Save(cart)
	})
}

func (s *Service) ListDeliveries() ([]models.Delivery, error) {
	return s.stores.Deliveries().ListActive()
}

// refreshTargeting reloads the cart's items and re-runs discount
// targeting after a mutation. A code left without an eligible line stays
// attached; the next view reconciles and reports it.
func (s *Service) refreshTargeting(st Stores, cart *models.Cart) error {
	if err := st.Carts().LoadItems(cart); err != nil {
		return fmt.Errorf("reload cart items: %w", err)
	}
	return s.retarget(st, cart)
}
