package config

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/miladrsm/colorcart/internal/models"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

func LoadConfig() (*Config, error) {
	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
	}, nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

// ensureOpenCartIndex backs the one-open-cart-per-user rule. Get-or-create
// relies on this index to turn a creation race into a no-op conflict.
func ensureOpenCartIndex(db *gorm.DB) error {
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_open_cart_per_user ON carts (created_by) " +
			"WHERE status = 'pending_pay' AND is_deleted = false",
	).Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Role{}, &models.User{},
		&models.Product{}, &models.Color{}, &models.ProductVariant{},
		&models.DiscountCode{}, &models.Delivery{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	)
	if err != nil {
		return nil, err
	}

	if err := ensureOpenCartIndex(db); err != nil {
		return nil, err
	}

	seedRoles(db)
	seedDeliveries(db)

	return db, nil
}

func seedRoles(db *gorm.DB) {
	roles := []models.Role{
		{Name: models.RoleCustomer},
		{Name: models.RoleAdmin},
	}

	for _, role := range roles {
		var existingRole models.Role
		result := db.Where("name = ?", role.Name).First(&existingRole)
		if result.Error != nil {
			db.Create(&role)
		}
	}
}

func seedDeliveries(db *gorm.DB) {
	deliveries := []models.Delivery{
		{Name: "Post", Cost: 450000, IsActive: true},
		{Name: "Tipax", Cost: 800000, IsActive: true},
	}

	for _, delivery := range deliveries {
		var existing models.Delivery
		result := db.Where("name = ?", delivery.Name).First(&existing)
		if result.Error != nil {
			db.Create(&delivery)
		}
	}
}
