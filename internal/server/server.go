package server

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/miladrsm/colorcart/config"
	"github.com/miladrsm/colorcart/internal/handlers"
	"github.com/miladrsm/colorcart/internal/middleware"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	r := gin.Default()

	setupRoutes(r, db)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info().Str("port", port).Msg("server: listening")
	return r.Run(":" + port)
}

func setupRoutes(r *gin.Engine, db *gorm.DB) {
	r.Use(middleware.DatabaseMiddleware(db))

	public := r.Group("/v1")
	{
		public.POST("/register", handlers.Register)
		public.POST("/login", handlers.Login)
		public.GET("/deliveries", handlers.ListDeliveries)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		cartProtected := protected.Group("/cart")
		{
			cartProtected.GET("", handlers.GetCart)
			cartProtected.POST("/items", handlers.AddCartItem)
			cartProtected.PATCH("/items/:id/remove", handlers.RemoveCartItem)
			cartProtected.PATCH("/discount/apply", handlers.ApplyCartDiscount)
			cartProtected.PATCH("/discount/unapply", handlers.UnapplyCartDiscount)
			cartProtected.PATCH("/delivery", handlers.SelectCartDelivery)
			cartProtected.POST("/checkout", handlers.CheckoutCart)
		}
	}

	admin := r.Group("/v1")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/discounts", handlers.CreateDiscount)
	}
}
