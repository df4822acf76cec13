package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/miladrsm/colorcart/internal/helpers"
	"github.com/miladrsm/colorcart/internal/models"
)

// lookupOutcome classifies a First() lookup into taken / free / failed.
// Anything other than the not-found sentinel is a real database failure
// and must never be read as "the row does not exist".
func lookupOutcome(err error) (found bool, failure error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}

// generateUnusedCode draws codes from the safe charset until one is free.
// lookup reports gorm.ErrRecordNotFound for a free code and nil for a
// taken one; any other error aborts the search.
func generateUnusedCode(lookup func(code string) error) (string, error) {
	for {
		generated, err := models.GenerateDiscountCode(models.DefaultCodeLength)
		if err != nil {
			return "", err
		}
		found, failure := lookupOutcome(lookup(generated))
		if failure != nil {
			return "", failure
		}
		if !found {
			return generated, nil
		}
	}
}

type DiscountRequest struct {
	Name         string      `json:"name"`
	Code         *string     `json:"code"`
	Amount       int64       `json:"amount" binding:"required,min=1"`
	IsPercentage *bool       `json:"is_percentage"`
	Scope        string      `json:"scope" binding:"omitempty,oneof=cart product_set"`
	MaxUsage     int         `json:"max_usage" binding:"min=0"`
	ExpiresAt    *time.Time  `json:"expires_at"`
	ProductIDs   []uuid.UUID `json:"product_ids"`
}

// CreateDiscount is admin-only. A missing code is generated from the safe
// charset and retried until it does not collide with an existing one.
func CreateDiscount(c *gin.Context) {
	var req DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	isPercentage := true
	if req.IsPercentage != nil {
		isPercentage = *req.IsPercentage
	}
	if isPercentage && req.Amount > 100 {
		helpers.RespondWithError(c, http.StatusBadRequest, "Percentage discount cannot exceed 100.")
		return
	}

	scope := models.ScopeCart
	if req.Scope != "" {
		scope = models.DiscountScope(req.Scope)
	}

	var code string
	if req.Code != nil {
		if len(*req.Code) < 6 {
			helpers.RespondWithError(c, http.StatusBadRequest, "Discount code must be at least 6 characters.")
			return
		}
		code = *req.Code
		var existing models.DiscountCode
		found, failure := lookupOutcome(gormDB.Where("code = ?", code).First(&existing).Error)
		if failure != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to check existing discount codes.")
			return
		}
		if found {
			helpers.RespondWithError(c, http.StatusConflict, "Discount code already exists.")
			return
		}
	} else {
		generated, err := generateUnusedCode(func(candidate string) error {
			var existing models.DiscountCode
			return gormDB.Where("code = ?", candidate).First(&existing).Error
		})
		if err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate discount code.")
			return
		}
		code = generated
	}

	discount := models.DiscountCode{
		ID:           uuid.New(),
		Name:         req.Name,
		Code:         code,
		Amount:       req.Amount,
		IsPercentage: isPercentage,
		Scope:        scope,
		MaxUsage:     req.MaxUsage,
	}
	if req.ExpiresAt != nil {
		discount.ExpiresAt = *req.ExpiresAt
	}

	if scope == models.ScopeProductSet && len(req.ProductIDs) > 0 {
		var products []models.Product
		if err := gormDB.Scopes(models.NotDeleted).Find(&products, "id IN ?", req.ProductIDs).Error; err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to resolve products.")
			return
		}
		if len(products) != len(req.ProductIDs) {
			helpers.RespondWithError(c, http.StatusBadRequest, "One or more product IDs do not exist.")
			return
		}
		discount.Products = products
	}

	if err := gormDB.Create(&discount).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create discount code.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Discount code created successfully.",
		"id":         discount.ID,
		"code":       discount.Code,
		"expires_at": discount.ExpiresAt,
	})
}
