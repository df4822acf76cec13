package cart

import "github.com/google/uuid"

type WarningCode string

const (
	WarnOutOfStock            WarningCode = "out_of_stock"
	WarnQuantityAdjusted      WarningCode = "quantity_adjusted"
	WarnDiscountExpired       WarningCode = "discount_expired"
	WarnDiscountNotApplicable WarningCode = "discount_not_applicable"
)

// Warning reports a self-healing fix made while reconciling a cart. It is
// informational, never an error: the request still succeeds.
type Warning struct {
	Code   WarningCode `json:"code"`
	ItemID *uuid.UUID  `json:"item_id,omitempty"`
}
