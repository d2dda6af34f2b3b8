package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is the unit of inventory. StockQuantity is only ever
// mutated through the stock engine so every movement leaves a ledger entry.
type ProductVariant struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SKU              string          `gorm:"column:sku;not null;uniqueIndex"`
	Title            string          `gorm:"column:title;not null"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0"`
	MinOrderQuantity int             `gorm:"column:min_order_quantity;not null;default:1"`
	MaxOrderQuantity int             `gorm:"column:max_order_quantity;not null;default:0"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
