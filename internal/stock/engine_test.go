package stock

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/db"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	apperrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.StockLedgerEntry{},
	))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	return newTestServiceWithRepo(t, conn, NewRepository(conn))
}

func newTestServiceWithRepo(t *testing.T, conn *gorm.DB, repo Repository) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	svc, err := NewService(repo, db.NewFromConn(conn), logg)
	require.NoError(t, err)
	return svc
}

type seedItem struct {
	sku      string
	stock    int
	quantity int
}

// seedOrder creates a product, one variant per seed item, and an order
// whose line items reference those variants. Returns the order id and the
// variant ids keyed by sku.
func seedOrder(t *testing.T, conn *gorm.DB, items ...seedItem) (uuid.UUID, map[string]uuid.UUID) {
	t.Helper()

	product := models.Product{Title: "Test Product"}
	require.NoError(t, conn.Create(&product).Error)

	order := models.Order{
		OrderNumber: "ORD-" + uuid.NewString()[:8],
		Status:      enums.OrderStatusCreated,
		TotalAmount: decimal.NewFromInt(100),
	}
	require.NoError(t, conn.Create(&order).Error)

	variantIDs := make(map[string]uuid.UUID, len(items))
	for _, item := range items {
		variant := models.ProductVariant{
			ProductID:     product.ID,
			SKU:           item.sku,
			Title:         item.sku,
			Price:         decimal.NewFromInt(10),
			StockQuantity: item.stock,
		}
		require.NoError(t, conn.Create(&variant).Error)
		variantIDs[item.sku] = variant.ID

		lineItem := models.OrderLineItem{
			OrderID:   order.ID,
			VariantID: variant.ID,
			SKU:       item.sku,
			Title:     item.sku,
			Quantity:  item.quantity,
			UnitPrice: decimal.NewFromInt(10),
		}
		require.NoError(t, conn.Create(&lineItem).Error)
	}
	return order.ID, variantIDs
}

func variantStock(t *testing.T, conn *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, conn.First(&variant, "id = ?", variantID).Error)
	return variant.StockQuantity
}

func ledgerEntries(t *testing.T, conn *gorm.DB, orderID uuid.UUID) []models.StockLedgerEntry {
	t.Helper()
	var entries []models.StockLedgerEntry
	require.NoError(t, conn.Where("order_id = ?", orderID).Order("created_at ASC").Find(&entries).Error)
	return entries
}

// lockHookRepo wraps a real repository and runs onLock through the same
// transaction right after the row locks are taken. Writes made by the hook
// stand in for a concurrent transaction that committed while this one was
// waiting on the locks.
type lockHookRepo struct {
	Repository
	onLock func(repo Repository)
}

func (r *lockHookRepo) WithTx(tx *gorm.DB) Repository {
	return &lockHookRepo{Repository: r.Repository.WithTx(tx), onLock: r.onLock}
}

func (r *lockHookRepo) LockVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.ProductVariant, error) {
	variants, err := r.Repository.LockVariants(ctx, variantIDs)
	if err == nil && r.onLock != nil {
		hook := r.onLock
		r.onLock = nil
		hook(r.Repository)
	}
	return variants, err
}

func TestReduceStock(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn,
		seedItem{sku: "SKU-A", stock: 10, quantity: 2},
		seedItem{sku: "SKU-B", stock: 5, quantity: 1},
	)

	outcome, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, map[string]any{"payment_ref": "pay_123"})
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.True(t, outcome.Success)
	assert.False(t, outcome.Skipped)
	assert.Len(t, outcome.Transactions, 2)
	assert.Empty(t, outcome.Errors)

	assert.Equal(t, 8, variantStock(t, conn, variants["SKU-A"]))
	assert.Equal(t, 4, variantStock(t, conn, variants["SKU-B"]))

	byVariant := make(map[uuid.UUID]models.StockLedgerEntry)
	for _, entry := range ledgerEntries(t, conn, orderID) {
		byVariant[entry.VariantID] = entry
	}
	entryA := byVariant[variants["SKU-A"]]
	assert.Equal(t, enums.StockOperationReduce, entryA.Operation)
	assert.Equal(t, -2, entryA.QuantityDelta)
	assert.Equal(t, 10, entryA.StockBefore)
	assert.Equal(t, 8, entryA.StockAfter)
	assert.False(t, entryA.IsReversed)
	assert.Equal(t, enums.OrderStatusPaid, entryA.OrderStatusAtTime)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entryA.Metadata, &metadata))
	assert.Equal(t, "pay_123", metadata["payment_ref"])
}

func TestReduceStockIdempotent(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})

	first, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.True(t, second.Success)
	assert.Empty(t, second.Transactions)

	assert.Equal(t, 8, variantStock(t, conn, variants["SKU-A"]))
	assert.Len(t, ledgerEntries(t, conn, orderID), 1)
}

func TestReduceStockSkipsWhenEntryLandsDuringLock(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})
	variantID := variants["SKU-A"]

	// Simulate another reduce committing between the pre-lock idempotency
	// check and lock acquisition: its writes first become visible here.
	repo := &lockHookRepo{
		Repository: NewRepository(conn),
		onLock: func(txRepo Repository) {
			entry := &models.StockLedgerEntry{
				OrderID:           orderID,
				VariantID:         variantID,
				Operation:         enums.StockOperationReduce,
				QuantityDelta:     -2,
				StockBefore:       10,
				StockAfter:        8,
				OrderStatusAtTime: enums.OrderStatusPaid,
			}
			require.NoError(t, txRepo.CreateEntry(ctx, entry))
			require.NoError(t, txRepo.UpdateVariantStock(ctx, variantID, 8))
		},
	}
	svc := newTestServiceWithRepo(t, conn, repo)

	outcome, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.Transactions)

	// No double reduction: only the first writer's entry and stock level.
	assert.Equal(t, 8, variantStock(t, conn, variants["SKU-A"]))
	assert.Len(t, ledgerEntries(t, conn, orderID), 1)
}

func TestRestoreStockSkipsWhenRestoredDuringLock(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})
	variantID := variants["SKU-A"]

	_, err := newTestService(t, conn).ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	require.Equal(t, 8, variantStock(t, conn, variantID))

	repo := &lockHookRepo{
		Repository: NewRepository(conn),
		onLock: func(txRepo Repository) {
			reduces, err := txRepo.ActiveEntries(ctx, orderID, enums.StockOperationReduce)
			require.NoError(t, err)
			require.Len(t, reduces, 1)

			entry := &models.StockLedgerEntry{
				OrderID:           orderID,
				VariantID:         variantID,
				Operation:         enums.StockOperationRestore,
				QuantityDelta:     2,
				StockBefore:       8,
				StockAfter:        10,
				OrderStatusAtTime: enums.OrderStatusRefunded,
			}
			require.NoError(t, txRepo.CreateEntry(ctx, entry))
			require.NoError(t, txRepo.UpdateVariantStock(ctx, variantID, 10))
			require.NoError(t, txRepo.MarkReversed(ctx, reduces[0].ID, entry.ID))
		},
	}
	svc := newTestServiceWithRepo(t, conn, repo)

	outcome, err := svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Empty(t, outcome.Transactions)

	assert.Equal(t, 10, variantStock(t, conn, variantID))
	assert.Len(t, ledgerEntries(t, conn, orderID), 2)
}

func TestReduceStockClampsToZero(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-C", stock: 2, quantity: 5})

	outcome, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, map[string]any{"payment_ref": "pay_456"})
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Skipped)
	assert.Len(t, outcome.Errors, 1)
	assert.Len(t, outcome.Transactions, 1)

	assert.Equal(t, 0, variantStock(t, conn, variants["SKU-C"]))

	entries := ledgerEntries(t, conn, orderID)
	require.Len(t, entries, 1)
	assert.Equal(t, -5, entries[0].QuantityDelta)
	assert.Equal(t, 2, entries[0].StockBefore)
	assert.Equal(t, 0, entries[0].StockAfter)
	assert.Equal(t, enums.OrderStatusPaid, entries[0].OrderStatusAtTime)

	// The shortfall annotation is merged on top of the caller metadata.
	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Metadata, &metadata))
	assert.Equal(t, "insufficient stock", metadata["error"])
	assert.Equal(t, float64(5), metadata["requested"])
	assert.Equal(t, float64(2), metadata["available"])
	assert.Equal(t, "pay_456", metadata["payment_ref"])
}

func TestRestoreStockAfterClamp(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-C", stock: 2, quantity: 5})

	_, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	require.Equal(t, 0, variantStock(t, conn, variants["SKU-C"]))

	outcome, err := svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Len(t, outcome.Transactions, 1)

	// The full ordered quantity comes back even though the reduce was
	// clamped at zero.
	assert.Equal(t, 5, variantStock(t, conn, variants["SKU-C"]))

	entries := ledgerEntries(t, conn, orderID)
	require.Len(t, entries, 2)

	reduceEntry := entries[0]
	restoreEntry := entries[1]
	assert.Equal(t, enums.StockOperationReduce, reduceEntry.Operation)
	assert.True(t, reduceEntry.IsReversed)
	require.NotNil(t, reduceEntry.ReversedByEntryID)
	assert.Equal(t, restoreEntry.ID, *reduceEntry.ReversedByEntryID)

	assert.Equal(t, enums.StockOperationRestore, restoreEntry.Operation)
	assert.Equal(t, 5, restoreEntry.QuantityDelta)
	assert.Equal(t, 0, restoreEntry.StockBefore)
	assert.Equal(t, 5, restoreEntry.StockAfter)
	assert.False(t, restoreEntry.IsReversed)
	assert.Equal(t, enums.OrderStatusRefunded, restoreEntry.OrderStatusAtTime)
}

func TestRestoreStockWithoutReduce(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})

	outcome, err := svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.True(t, outcome.Success)

	assert.Equal(t, 10, variantStock(t, conn, variants["SKU-A"]))
	assert.Empty(t, ledgerEntries(t, conn, orderID))
}

func TestRestoreStockIdempotent(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})

	_, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	_, err = svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)

	second, err := svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	assert.Equal(t, 10, variantStock(t, conn, variants["SKU-A"]))
	assert.Len(t, ledgerEntries(t, conn, orderID), 2)
}

func TestReduceAfterRestoreStartsNewCycle(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, variants := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})

	_, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	_, err = svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)

	outcome, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Skipped)
	assert.True(t, outcome.Success)

	assert.Equal(t, 8, variantStock(t, conn, variants["SKU-A"]))

	// The restore from the first cycle is cancelled by the new reduce, so
	// a later refund can still restore exactly once.
	entries := ledgerEntries(t, conn, orderID)
	require.Len(t, entries, 3)
	active := 0
	for _, entry := range entries {
		if !entry.IsReversed {
			active++
			assert.Equal(t, enums.StockOperationReduce, entry.Operation)
		}
	}
	assert.Equal(t, 1, active)
}

func TestReduceStockOrderNotFound(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.ReduceStock(context.Background(), uuid.New(), enums.OrderStatusPaid, nil)
	require.Error(t, err)

	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestLedgerListsEntriesInOrder(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	orderID, _ := seedOrder(t, conn, seedItem{sku: "SKU-A", stock: 10, quantity: 2})

	_, err := svc.ReduceStock(ctx, orderID, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	_, err = svc.RestoreStock(ctx, orderID, enums.OrderStatusRefunded, nil)
	require.NoError(t, err)

	entries, err := svc.Ledger(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, enums.StockOperationReduce, entries[0].Operation)
	assert.Equal(t, enums.StockOperationRestore, entries[1].Operation)
}
