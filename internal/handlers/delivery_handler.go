package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/miladrsm/colorcart/internal/cart"
	"github.com/miladrsm/colorcart/internal/helpers"
)

// ListDeliveries returns the active delivery methods for checkout.
func ListDeliveries(c *gin.Context) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	deliveries, err := cart.NewGormStores(gormDB).Deliveries().ListActive()
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving delivery methods.")
		return
	}

	result := make([]gin.H, 0, len(deliveries))
	for i := range deliveries {
		result = append(result, gin.H{
			"id":   deliveries[i].ID,
			"name": deliveries[i].Name,
			"cost": deliveries[i].Cost,
		})
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": result})
}
