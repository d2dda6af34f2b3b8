package orders

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/internal/stock"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

// stockEngine is the slice of the stock service orders needs.
type stockEngine interface {
	ReduceStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*stock.Outcome, error)
	RestoreStock(ctx context.Context, orderID uuid.UUID, resultingStatus enums.OrderStatus, metadata map[string]any) (*stock.Outcome, error)
	Ledger(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error)
}

// Service defines order-level operations.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*StatusUpdateResult, error)
	ApplyTransition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, metadata map[string]any) *stock.Outcome
	Ledger(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error)
}

// UpdateStatusInput captures an explicit status change request.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
}

// StatusUpdateResult pairs the updated order with whatever the stock engine
// did (or skipped) as a consequence. StockUpdate is nil when the transition
// required no stock action.
type StatusUpdateResult struct {
	Order       *models.Order  `json:"order"`
	StockUpdate *stock.Outcome `json:"stock_update,omitempty"`
}

type service struct {
	repo  Repository
	stock stockEngine
	logg  *logger.Logger
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, engine stockEngine, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("stock engine required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, stock: engine, logg: logg}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*StatusUpdateResult, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status == input.Status {
		s.logg.Info(ctx, "order already in requested status")
		return &StatusUpdateResult{Order: order}, nil
	}

	previous := order.Status
	if err := s.repo.UpdateStatus(ctx, input.OrderID, input.Status); err != nil {
		return nil, err
	}
	order.Status = input.Status

	s.logg.Info(ctx, fmt.Sprintf("order status updated: %s -> %s", previous, input.Status))

	// The status write above is the primary fact. Stock reconciliation runs
	// after it in its own transaction and its failure never rolls it back.
	outcome := s.ApplyTransition(ctx, input.OrderID, previous, input.Status, nil)

	return &StatusUpdateResult{Order: order, StockUpdate: outcome}, nil
}

func (s *service) ApplyTransition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, metadata map[string]any) *stock.Outcome {
	action := PolicyFor(from, to)
	if action == StockActionNone {
		return nil
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["previous_status"] = from.String()

	var (
		outcome *stock.Outcome
		err     error
	)
	switch action {
	case StockActionReduce:
		outcome, err = s.stock.ReduceStock(ctx, orderID, to, meta)
	case StockActionRestore:
		outcome, err = s.stock.RestoreStock(ctx, orderID, to, meta)
	}
	if err != nil {
		s.logg.Error(ctx, fmt.Sprintf("stock %s failed after status change %s -> %s", action, from, to), err)
		return &stock.Outcome{Success: false, Errors: []string{err.Error()}}
	}
	return outcome
}

func (s *service) Ledger(ctx context.Context, orderID uuid.UUID) ([]models.StockLedgerEntry, error) {
	return s.stock.Ledger(ctx, orderID)
}
