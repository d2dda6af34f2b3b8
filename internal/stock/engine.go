package stock

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/pkg/db"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	apperrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
	"github.com/storefrontlabs/storefront-backend/pkg/metrics"
)

// Service is the stock reconciliation engine. Reduce and restore are the
// only code paths allowed to mutate variant stock, and every mutation leaves
// a ledger entry stamped with the order status that caused it. The Tx
// variants run inside a caller-owned transaction; the plain variants open
// their own. metadata is merged into each written entry and may carry the
// triggering payment reference or acting admin.
type Service interface {
	ReduceStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error)
	RestoreStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error)
	ReduceStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error)
	RestoreStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error)
	Ledger(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error)
}

type service struct {
	repo Repository
	db   *db.Client
	logg *logger.Logger
}

// NewService wires the stock engine with its dependencies.
func NewService(repo Repository, client *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, db: client, logg: logg}, nil
}

func (s *service) ReduceStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error) {
	var outcome *Outcome
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = s.ReduceStockTx(ctx, tx, orderID, resultingStatus, metadata)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *service) RestoreStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error) {
	var outcome *Outcome
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = s.RestoreStockTx(ctx, tx, orderID, resultingStatus, metadata)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *service) ReduceStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	repo := s.repo.WithTx(tx)

	order, err := s.loadOrder(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if len(order.LineItems) == 0 {
		s.logg.Warn(ctx, "reduce requested for order with no line items")
		return skippedOutcome(), nil
	}

	// Cheap early exit before taking any row locks.
	active, err := repo.ActiveEntries(ctx, orderID, enums.StockOperationReduce)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		s.logg.Info(ctx, "stock already reduced, skipping")
		metrics.StockOperations.WithLabelValues("reduce", "skipped").Inc()
		return skippedOutcome(), nil
	}

	variantIDs := make([]uuid.UUID, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		variantIDs = append(variantIDs, item.VariantID)
	}

	stockByVariant, err := s.lockStock(ctx, repo, variantIDs)
	if err != nil {
		return nil, err
	}

	// Re-check under the locks. A concurrent reduce can commit between the
	// first check and lock acquisition; its entries only become visible to
	// this transaction once the locks are held.
	active, err = repo.ActiveEntries(ctx, orderID, enums.StockOperationReduce)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		s.logg.Info(ctx, "stock reduced by concurrent transaction, skipping")
		metrics.StockOperations.WithLabelValues("reduce", "skipped").Inc()
		return skippedOutcome(), nil
	}

	// Restores left over from an earlier refund cycle are cancelled out by
	// this reduce so the active-entry invariant holds per operation.
	activeRestores, err := repo.ActiveEntries(ctx, orderID, enums.StockOperationRestore)
	if err != nil {
		return nil, err
	}
	restoreByVariant := make(map[uuid.UUID]models.StockLedgerEntry, len(activeRestores))
	for _, entry := range activeRestores {
		restoreByVariant[entry.VariantID] = entry
	}

	outcome := &Outcome{Success: true}
	for _, item := range order.LineItems {
		before, ok := stockByVariant[item.VariantID]
		if !ok {
			outcome.Success = false
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("variant %s not found for line item %s", item.VariantID, item.SKU))
			continue
		}

		after := before - item.Quantity
		entryMeta := metadata
		if after < 0 {
			after = 0
			entryMeta = withInsufficiency(metadata, item.Quantity, before)
			outcome.Success = false
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("insufficient stock for %s: requested %d, available %d", item.SKU, item.Quantity, before))
		}

		entry := &models.StockLedgerEntry{
			OrderID:           orderID,
			VariantID:         item.VariantID,
			Operation:         enums.StockOperationReduce,
			QuantityDelta:     -item.Quantity,
			StockBefore:       before,
			StockAfter:        after,
			OrderStatusAtTime: resultingStatus,
			Metadata:          encodeMetadata(entryMeta),
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return nil, err
		}
		if err := repo.UpdateVariantStock(ctx, item.VariantID, after); err != nil {
			return nil, err
		}
		if prior, ok := restoreByVariant[item.VariantID]; ok {
			if err := repo.MarkReversed(ctx, prior.ID, entry.ID); err != nil {
				return nil, err
			}
			delete(restoreByVariant, item.VariantID)
		}

		stockByVariant[item.VariantID] = after
		outcome.Transactions = append(outcome.Transactions, *entry)
	}

	result := "ok"
	if !outcome.Success {
		result = "partial"
	}
	metrics.StockOperations.WithLabelValues("reduce", result).Inc()
	s.logg.Info(ctx, fmt.Sprintf("stock reduced: %d entries, %d warnings", len(outcome.Transactions), len(outcome.Errors)))
	return outcome, nil
}

func (s *service) RestoreStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*Outcome, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	repo := s.repo.WithTx(tx)

	if _, err := s.loadOrder(ctx, repo, orderID); err != nil {
		return nil, err
	}

	// Cheap early exit before taking any row locks.
	activeRestores, err := repo.ActiveEntries(ctx, orderID, enums.StockOperationRestore)
	if err != nil {
		return nil, err
	}
	if len(activeRestores) > 0 {
		s.logg.Info(ctx, "stock already restored, skipping")
		metrics.StockOperations.WithLabelValues("restore", "skipped").Inc()
		return skippedOutcome(), nil
	}

	activeReduces, err := repo.ActiveEntries(ctx, orderID, enums.StockOperationReduce)
	if err != nil {
		return nil, err
	}
	if len(activeReduces) == 0 {
		s.logg.Info(ctx, "no active reduce entries, nothing to restore")
		metrics.StockOperations.WithLabelValues("restore", "skipped").Inc()
		return skippedOutcome(), nil
	}

	variantIDs := make([]uuid.UUID, 0, len(activeReduces))
	for _, entry := range activeReduces {
		variantIDs = append(variantIDs, entry.VariantID)
	}

	stockByVariant, err := s.lockStock(ctx, repo, variantIDs)
	if err != nil {
		return nil, err
	}

	// Re-check under the locks, and reload the reduce set: a concurrent
	// restore may have committed and reversed the entries this call read
	// before the locks were held.
	activeRestores, err = repo.ActiveEntries(ctx, orderID, enums.StockOperationRestore)
	if err != nil {
		return nil, err
	}
	if len(activeRestores) > 0 {
		s.logg.Info(ctx, "stock restored by concurrent transaction, skipping")
		metrics.StockOperations.WithLabelValues("restore", "skipped").Inc()
		return skippedOutcome(), nil
	}
	activeReduces, err = repo.ActiveEntries(ctx, orderID, enums.StockOperationReduce)
	if err != nil {
		return nil, err
	}
	if len(activeReduces) == 0 {
		s.logg.Info(ctx, "reduce entries reversed by concurrent transaction, skipping")
		metrics.StockOperations.WithLabelValues("restore", "skipped").Inc()
		return skippedOutcome(), nil
	}

	outcome := &Outcome{Success: true}
	for _, reduceEntry := range activeReduces {
		before, ok := stockByVariant[reduceEntry.VariantID]
		if !ok {
			outcome.Success = false
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("variant %s not found for ledger entry %s", reduceEntry.VariantID, reduceEntry.ID))
			continue
		}

		// Always put back the full ordered quantity. A clamped reduce
		// removed fewer units than ordered, but the refund returns what
		// the customer paid for.
		quantity := -reduceEntry.QuantityDelta
		after := before + quantity

		entry := &models.StockLedgerEntry{
			OrderID:           orderID,
			VariantID:         reduceEntry.VariantID,
			Operation:         enums.StockOperationRestore,
			QuantityDelta:     quantity,
			StockBefore:       before,
			StockAfter:        after,
			OrderStatusAtTime: resultingStatus,
			Metadata:          encodeMetadata(metadata),
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return nil, err
		}
		if err := repo.UpdateVariantStock(ctx, reduceEntry.VariantID, after); err != nil {
			return nil, err
		}
		if err := repo.MarkReversed(ctx, reduceEntry.ID, entry.ID); err != nil {
			return nil, err
		}

		stockByVariant[reduceEntry.VariantID] = after
		outcome.Transactions = append(outcome.Transactions, *entry)
	}

	result := "ok"
	if !outcome.Success {
		result = "partial"
	}
	metrics.StockOperations.WithLabelValues("restore", result).Inc()
	s.logg.Info(ctx, fmt.Sprintf("stock restored: %d entries", len(outcome.Transactions)))
	return outcome, nil
}

func (s *service) Ledger(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error) {
	if _, err := s.loadOrder(ctx, s.repo, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrderWithItems(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) lockStock(ctx context.Context, repo Repository, variantIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	variants, err := repo.LockVariants(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	stock := make(map[uuid.UUID]int, len(variants))
	for _, variant := range variants {
		stock[variant.ID] = variant.StockQuantity
	}
	return stock, nil
}

// withInsufficiency copies meta and adds the shortfall annotation.
func withInsufficiency(meta map[string]any, requested, available int) map[string]any {
	merged := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		merged[k] = v
	}
	merged["error"] = "insufficient stock"
	merged["requested"] = requested
	merged["available"] = available
	return merged
}

func encodeMetadata(meta map[string]any) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}
