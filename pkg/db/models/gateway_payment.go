package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

// GatewayPayment mirrors a payment object reported by the gateway. The
// unique index on GatewayPaymentRef is what makes reconciliation idempotent
// under concurrent webhook redelivery.
type GatewayPayment struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayPaymentRef string                     `gorm:"column:gateway_payment_ref;not null;uniqueIndex"`
	GatewayOrderRef   string                     `gorm:"column:gateway_order_ref;not null"`
	Status            enums.GatewayPaymentStatus `gorm:"column:status;not null"`
	AmountMinor       int64                      `gorm:"column:amount_minor;not null"`
	CurrencyCode      string                     `gorm:"column:currency_code;not null"`
	Method            *string                    `gorm:"column:method"`
	ErrorCode         *string                    `gorm:"column:error_code"`
	ErrorDescription  *string                    `gorm:"column:error_description"`
	RawPayload        json.RawMessage            `gorm:"column:raw_payload;type:jsonb"`
	IsAmountValid     bool                       `gorm:"column:is_amount_valid;not null;default:false"`
	IsProcessed       bool                       `gorm:"column:is_processed;not null;default:false"`
	ProcessedAt       *time.Time                 `gorm:"column:processed_at"`
	CapturedAt        *time.Time                 `gorm:"column:captured_at"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *GatewayPayment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
