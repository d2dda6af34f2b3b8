package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

// StockLedgerEntry is one immutable stock movement. Entries are never
// updated in place except to flip IsReversed when a restore cancels them.
type StockLedgerEntry struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID         uuid.UUID            `gorm:"column:variant_id;type:uuid;not null;index"`
	Operation         enums.StockOperation `gorm:"column:operation;not null"`
	QuantityDelta     int                  `gorm:"column:quantity_delta;not null"`
	StockBefore       int                  `gorm:"column:stock_before;not null"`
	StockAfter        int                  `gorm:"column:stock_after;not null"`
	IsReversed        bool                 `gorm:"column:is_reversed;not null;default:false"`
	ReversedByEntryID *uuid.UUID           `gorm:"column:reversed_by_entry_id;type:uuid"`
	OrderStatusAtTime enums.OrderStatus    `gorm:"column:order_status_at_time;not null"`
	Metadata          json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *StockLedgerEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
