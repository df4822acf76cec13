package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miladrsm/colorcart/internal/cart"
	"github.com/miladrsm/colorcart/internal/helpers"
	"github.com/miladrsm/colorcart/internal/models"
)

type AddItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
}

type RemoveItemRequest struct {
	Deleted bool `json:"deleted"`
}

type ApplyDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

type SelectDeliveryRequest struct {
	DeliveryID uuid.UUID `json:"delivery_id" binding:"required"`
}

func requestContext(c *gin.Context) (*gorm.DB, uuid.UUID, bool) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return nil, uuid.Nil, false
	}
	gormDB := db.(*gorm.DB)

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User not authenticated.")
		return nil, uuid.Nil, false
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID format.")
		return nil, uuid.Nil, false
	}

	return gormDB, userUUID, true
}

func cartService(c *gin.Context) (*cart.Service, uuid.UUID, bool) {
	gormDB, userUUID, ok := requestContext(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	return cart.NewService(cart.NewGormStores(gormDB)), userUUID, true
}

func respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Not found.")
	case errors.Is(err, cart.ErrOutOfStock):
		helpers.RespondWithError(c, http.StatusBadRequest, "This product color is out of stock.")
	case errors.Is(err, models.ErrDiscountExpired):
		helpers.RespondWithError(c, http.StatusBadRequest, "Discount code is invalid.")
	case errors.Is(err, models.ErrDiscountNotIncluded):
		helpers.RespondWithError(c, http.StatusBadRequest, "Discount code is not included in this cart.")
	default:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Something went wrong.")
	}
}

func GetCart(c *gin.Context) {
	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	userCart, warnings, err := svc.View(userID)
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"warnings": warnings,
		"cart":     serializeCart(userCart),
	})
}

func serializeCart(userCart *models.Cart) gin.H {
	items := make([]gin.H, 0, len(userCart.Items))
	for i := range userCart.Items {
		item := &userCart.Items[i]
		items = append(items, gin.H{
			"id": item.ID,
			"variant": gin.H{
				"id":      item.VariantID,
				"product": item.Variant.Product.Name,
				"color": gin.H{
					"name": item.Variant.Color.Name,
					"code": item.Variant.Color.Code,
				},
				"price": item.Variant.EffectivePrice(),
				"stock": item.Variant.Stock,
			},
			"count":       item.Count,
			"total_price": item.TotalPrice(),
			"discounted":  item.Discounted,
		})
	}

	var discountCode any
	if userCart.DiscountCode != nil {
		discountCode = userCart.DiscountCode.Code
	}
	var deliveryType any
	if userCart.Delivery != nil {
		deliveryType = gin.H{
			"id":   userCart.Delivery.ID,
			"name": userCart.Delivery.Name,
			"cost": userCart.Delivery.Cost,
		}
	}

	return gin.H{
		"id":               userCart.ID,
		"status":           userCart.Status,
		"discount_code":    discountCode,
		"delivery_type":    deliveryType,
		"total_price":      userCart.TotalPrice(),
		"discounted_price": userCart.DiscountedTotal(time.Now()),
		"item_count":       len(userCart.Items),
		"items":            items,
	}
}

func AddCartItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Variant ID is required.")
		return
	}

	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	result, err := svc.AddItem(userID, req.VariantID)
	if err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":          "Item added to cart.",
		"item_id":         result.ItemID,
		"remaining_stock": result.RemainingStock,
	})
}

func RemoveCartItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid item ID.")
		return
	}

	var req RemoveItemRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input.")
			return
		}
	}

	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	deleted, err := svc.RemoveItem(userID, itemID, req.Deleted)
	if err != nil {
		respondCartError(c, err)
		return
	}

	if deleted {
		c.JSON(http.StatusOK, gin.H{"result": "Item deleted from cart."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "Item decreased from cart."})
}

func ApplyCartDiscount(c *gin.Context) {
	var req ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Discount code is required.")
		return
	}

	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	attached, err := svc.ApplyDiscount(userID, req.Code)
	if err != nil {
		respondCartError(c, err)
		return
	}

	if attached {
		c.JSON(http.StatusOK, gin.H{"result": "Discount applied."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "Discount removed."})
}

func UnapplyCartDiscount(c *gin.Context) {
	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	if err := svc.UnapplyDiscount(userID); err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "Discount unapplied."})
}

func SelectCartDelivery(c *gin.Context) {
	var req SelectDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Delivery ID is required.")
		return
	}

	svc, userID, ok := cartService(c)
	if !ok {
		return
	}

	if err := svc.SelectDelivery(userID, req.DeliveryID); err != nil {
		respondCartError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "Delivery method selected."})
}
