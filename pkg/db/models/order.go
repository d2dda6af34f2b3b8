package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

// Order is a customer purchase. Status is the single source of truth for
// the lifecycle; stock movements hang off it via the stock ledger.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:created;index"`
	CurrencyCode    string            `gorm:"column:currency_code;not null;default:INR"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount      decimal.Decimal   `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	DueAmount       decimal.Decimal   `gorm:"column:due_amount;type:numeric(12,2);not null;default:0"`
	CustomerEmail   *string           `gorm:"column:customer_email"`
	GatewayOrderRef *string           `gorm:"column:gateway_order_ref;index"`
	LineItems       []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
