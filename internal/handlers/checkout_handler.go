package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miladrsm/colorcart/internal/cart"
	"github.com/miladrsm/colorcart/internal/checkout"
	"github.com/miladrsm/colorcart/internal/helpers"
)

// CheckoutCart commits the user's cart into an order.
func CheckoutCart(c *gin.Context) {
	gormDB, userID, ok := requestContext(c)
	if !ok {
		return
	}

	svc := checkout.NewService(cart.NewGormStores(gormDB))
	order, err := svc.Commit(userID)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			helpers.RespondWithError(c, http.StatusBadRequest, "Cart is empty.")
			return
		}
		respondCartError(c, err)
		return
	}

	items := make([]gin.H, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		items = append(items, gin.H{
			"product_name":  item.ProductName,
			"color_code":    item.ColorCode,
			"product_price": item.ProductPrice,
			"product_count": item.ProductCount,
			"total_price":   item.TotalPrice,
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"result": "Order placed.",
		"order": gin.H{
			"id":             order.ID,
			"status":         order.Status,
			"buy_date":       order.BuyDate,
			"total_price":    order.TotalPrice,
			"discount_price": order.DiscountPrice,
			"delivery_price": order.DeliveryPrice,
			"final_price":    order.FinalPrice,
			"items":          items,
		},
	})
}
