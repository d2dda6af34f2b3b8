package payments

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/internal/orders"
	"github.com/storefrontlabs/storefront-backend/internal/stock"
	"github.com/storefrontlabs/storefront-backend/pkg/db"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
	"github.com/storefrontlabs/storefront-backend/pkg/metrics"
)

// transitionApplier runs the stock side effect of a status change.
type transitionApplier interface {
	ApplyTransition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, metadata map[string]any) *stock.Outcome
}

// Service reconciles gateway payment reports against internal orders.
type Service interface {
	ReconcilePayment(ctx context.Context, input ReconcileInput) (*ReconcileResult, error)
}

// ReconcileInput carries one gateway payment report, whatever its source
// (webhook delivery or client verification call).
type ReconcileInput struct {
	GatewayPaymentRef string
	GatewayOrderRef   string
	AmountMinor       int64
	CurrencyCode      string
	Status            enums.GatewayPaymentStatus
	Method            *string
	RawPayload        json.RawMessage
	EventSource       string
}

// ReconcileResult reports what reconciliation did. AlreadyProcessed means a
// previous call for the same gateway payment won the idempotency gate.
type ReconcileResult struct {
	PaymentID        uuid.UUID         `json:"payment_id"`
	OrderID          uuid.UUID         `json:"order_id"`
	OrderStatus      enums.OrderStatus `json:"order_status"`
	AmountValid      bool              `json:"amount_valid"`
	AlreadyProcessed bool              `json:"already_processed"`
	StockUpdate      *stock.Outcome    `json:"stock_update,omitempty"`
}

type service struct {
	repo        Repository
	orders      orders.Repository
	transitions transitionApplier
	db          *db.Client
	logg        *logger.Logger
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, orderRepo orders.Repository, transitions transitionApplier, client *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("transition applier required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, orders: orderRepo, transitions: transitions, db: client, logg: logg}, nil
}

func (s *service) ReconcilePayment(ctx context.Context, input ReconcileInput) (*ReconcileResult, error) {
	if input.GatewayPaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment reference is required")
	}
	if input.GatewayOrderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order reference is required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway_payment_ref": input.GatewayPaymentRef,
		"event_source":        input.EventSource,
	})

	order, err := s.orders.FindByGatewayOrderRef(ctx, input.GatewayOrderRef)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PaymentReconciliations.WithLabelValues("not_found").Inc()
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway order reference")
		}
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if existing, err := s.repo.FindByGatewayPaymentRef(ctx, input.GatewayPaymentRef); err == nil {
		if existing.IsProcessed {
			s.logg.Info(ctx, "payment already processed, skipping")
			metrics.PaymentReconciliations.WithLabelValues("duplicate").Inc()
			return &ReconcileResult{
				PaymentID:        existing.ID,
				OrderID:          order.ID,
				OrderStatus:      order.Status,
				AmountValid:      existing.IsAmountValid,
				AlreadyProcessed: true,
			}, nil
		}
	} else if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	expectedMinor := order.TotalAmount.Shift(2).Round(0).IntPart()
	amountValid := input.AmountMinor == expectedMinor

	targetStatus := enums.OrderStatusPaymentPending
	switch {
	case !amountValid:
		targetStatus = enums.OrderStatusFlagged
		s.logg.Warn(ctx, fmt.Sprintf("captured amount %d does not match expected %d, flagging order", input.AmountMinor, expectedMinor))
	case input.Status == enums.GatewayPaymentStatusCaptured:
		targetStatus = enums.OrderStatusPaid
	}

	now := time.Now().UTC()
	payment := &models.GatewayPayment{
		OrderID:           order.ID,
		GatewayPaymentRef: input.GatewayPaymentRef,
		GatewayOrderRef:   input.GatewayOrderRef,
		Status:            input.Status,
		AmountMinor:       input.AmountMinor,
		CurrencyCode:      input.CurrencyCode,
		Method:            input.Method,
		RawPayload:        input.RawPayload,
		IsAmountValid:     amountValid,
		IsProcessed:       true,
		ProcessedAt:       &now,
	}
	if input.Status == enums.GatewayPaymentStatusCaptured {
		payment.CapturedAt = &now
	}

	previous := order.Status
	statusChanged := previous != enums.OrderStatusPaid && previous != enums.OrderStatusFlagged && previous != targetStatus

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		if !statusChanged {
			return nil
		}
		paid := decimal.New(input.AmountMinor, -2)
		due := order.TotalAmount.Sub(paid)
		if due.IsNegative() {
			due = decimal.Zero
		}
		return s.orders.WithTx(tx).UpdateStatusAndAmounts(ctx, order.ID, targetStatus, paid, due)
	})
	if err != nil {
		// A concurrent reconcile for the same gateway payment committed
		// first. Treat this attempt as the duplicate it is.
		if db.IsUniqueViolation(err, "gateway_payment_ref") {
			s.logg.Info(ctx, "lost reconcile race, payment already recorded")
			metrics.PaymentReconciliations.WithLabelValues("duplicate").Inc()
			return &ReconcileResult{
				OrderID:          order.ID,
				OrderStatus:      order.Status,
				AmountValid:      amountValid,
				AlreadyProcessed: true,
			}, nil
		}
		metrics.PaymentReconciliations.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &ReconcileResult{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		OrderStatus: previous,
		AmountValid: amountValid,
	}
	if statusChanged {
		result.OrderStatus = targetStatus
		result.StockUpdate = s.transitions.ApplyTransition(ctx, order.ID, previous, targetStatus,
			map[string]any{"gateway_payment_ref": input.GatewayPaymentRef})
	}

	outcome := "processed"
	if !amountValid {
		outcome = "mismatch"
	}
	metrics.PaymentReconciliations.WithLabelValues(outcome).Inc()
	s.logg.Info(ctx, fmt.Sprintf("payment reconciled: order status %s", result.OrderStatus))
	return result, nil
}
