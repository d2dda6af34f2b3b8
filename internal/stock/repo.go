package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

// Repository manages persistence for the stock ledger and variant counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ActiveEntries(ctx context.Context, orderID uuid.UUID, op enums.StockOperation) ([]models.StockLedgerEntry, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error)
	CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error
	MarkReversed(ctx context.Context, entryID, reversedByEntryID uuid.UUID) error
	LockVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error)
	UpdateVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderWithItems(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ActiveEntries(ctx context.Context, orderID uuid.UUID, op enums.StockOperation) ([]models.StockLedgerEntry, error) {
	var entries []models.StockLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND operation = ? AND is_reversed = ?", orderID, op, false).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error) {
	var entries []models.StockLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.StockLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) MarkReversed(ctx context.Context, entryID, reversedByEntryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.StockLedgerEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"is_reversed":          true,
			"reversed_by_entry_id": reversedByEntryID,
		}).Error
}

// LockVariants loads the variants in deterministic id order, taking row
// locks on Postgres. The sqlite driver used in tests has no FOR UPDATE.
func (r *repository) LockVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var variants []models.ProductVariant
	if err := query.
		Where("id IN ?", variantIDs).
		Order("id ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repository) UpdateVariantStock(ctx context.Context, variantID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock_quantity", quantity).Error
}
