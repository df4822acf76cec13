package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/miladrsm/colorcart/internal/cart"
	"github.com/miladrsm/colorcart/internal/models"
)

var ErrEmptyCart = errors.New("cart has no items")

// Service turns a cart into an order. Commit is the single point where
// money state changes hands: prices are frozen, stock is decremented and
// discount usage is burned, all inside one transaction.
type Service struct {
	stores cart.Stores
	now    func() time.Time
}

func NewService(stores cart.Stores) *Service {
	return &Service{stores: stores, now: time.Now}
}

// Commit snapshots the user's open cart into an immutable order. The
// order rows, stock decrements, usage increment and cart status flip
// commit together or not at all, so a failed checkout leaves the cart
// exactly as it was and a retry can never burn a discount use twice.
func (s *Service) Commit(userID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.stores.Transact(func(st cart.Stores) error {
		c, err := st.Carts().GetOrCreate(userID)
		if err != nil {
			return err
		}
		if err := st.Carts().LoadItems(c); err != nil {
			return err
		}
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}

		now := s.now()
		if c.DiscountCode != nil && !c.DiscountCode.IsValid(now) {
			return models.ErrDiscountExpired
		}

		// re-check stock under row locks; a concurrent checkout of the
		// same variant blocks here instead of overselling
		for i := range c.Items {
			item := &c.Items[i]
			variant, err := st.Variants().GetForUpdate(item.VariantID)
			if err != nil {
				return err
			}
			if item.Count > variant.Stock {
				return cart.ErrOutOfStock
			}
			variant.Stock -= item.Count
			if err := st.Variants().Save(variant); err != nil {
				return err
			}
		}

		order, err = s.buildOrder(c, now)
		if err != nil {
			return err
		}
		if err := st.Orders().Create(order); err != nil {
			return err
		}

		if c.DiscountCode != nil {
			if err := st.Discounts().IncrementUsage(c.DiscountCode); err != nil {
				return err
			}
		}

		c.Status = models.CartPaid
		return st.Carts().Save(c)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("order_id", order.ID.String()).
		Int64("final_price", order.FinalPrice).
		Msg("checkout: order committed")
	return order, nil
}

// buildOrder freezes the cart lines. The discount-targeted line is
// snapshotted at its discounted unit price; every other line at the
// variant's effective price, so later catalog edits never reach the order.
func (s *Service) buildOrder(c *models.Cart, now time.Time) (*models.Order, error) {
	target := c.SelectDiscountTarget()

	items := make([]models.OrderItem, 0, len(c.Items))
	var lineSum int64
	for i := range c.Items {
		item := &c.Items[i]
		unit := item.Variant.EffectivePrice()
		if target != nil && item.ID == target.ID {
			discountedUnit, err := c.DiscountCode.Apply(&item.Variant.Product, &unit, now)
			if err != nil {
				return nil, err
			}
			unit = discountedUnit
		}
		lineTotal := int64(item.Count) * unit
		items = append(items, models.OrderItem{
			ProductName:  item.Variant.Product.Name,
			ColorCode:    item.Variant.Color.Code,
			ProductPrice: unit,
			ProductCount: item.Count,
			TotalPrice:   lineTotal,
		})
		lineSum += lineTotal
	}

	gross := c.TotalPrice()
	var discountPrice int64
	if c.DiscountCode != nil {
		if c.DiscountCode.Scope == models.ScopeCart {
			discounted, err := c.DiscountCode.Apply(nil, &gross, now)
			if err != nil {
				return nil, err
			}
			discountPrice = gross - discounted
		} else {
			discountPrice = gross - lineSum
		}
	}

	var deliveryPrice int64
	if c.Delivery != nil {
		deliveryPrice = c.Delivery.Cost
	}

	final := gross - discountPrice + deliveryPrice
	if final < 0 {
		final = 0
	}

	return &models.Order{
		CreatedBy:     c.CreatedBy,
		CartID:        c.ID,
		Status:        models.OrderPendingSend,
		BuyDate:       now,
		TotalPrice:    gross,
		DiscountPrice: discountPrice,
		DeliveryPrice: deliveryPrice,
		FinalPrice:    final,
		Items:         items,
	}, nil
}
