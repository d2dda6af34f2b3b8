package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

// WebhookDelivery logs every inbound gateway delivery, including the ones
// that fail signature verification. The row is written before dispatch and
// finalized after, so a crash mid-handler still leaves a trace.
type WebhookDelivery struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	Provider          string                      `gorm:"column:provider;not null"`
	EventType         string                      `gorm:"column:event_type;not null;index"`
	EventID           *string                     `gorm:"column:event_id;index"`
	SignatureValid    bool                        `gorm:"column:signature_valid;not null;default:false"`
	ReceivedSignature *string                     `gorm:"column:received_signature"`
	ComputedSignature *string                     `gorm:"column:computed_signature"`
	Status            enums.WebhookDeliveryStatus `gorm:"column:status;not null"`
	OrderID           *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	GatewayPaymentRef *string                     `gorm:"column:gateway_payment_ref"`
	Detail            *string                     `gorm:"column:detail"`
	Payload           json.RawMessage             `gorm:"column:payload;type:jsonb"`
	DurationMS        int64                       `gorm:"column:duration_ms;not null;default:0"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *WebhookDelivery) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
