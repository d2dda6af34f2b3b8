package razorpaywebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefrontlabs/storefront-backend/internal/orders"
	"github.com/storefrontlabs/storefront-backend/internal/payments"
	"github.com/storefrontlabs/storefront-backend/pkg/db/models"
	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
	"github.com/storefrontlabs/storefront-backend/pkg/metrics"
	"github.com/storefrontlabs/storefront-backend/pkg/razorpay"
)

type reconciler interface {
	ReconcilePayment(ctx context.Context, input payments.ReconcileInput) (*payments.ReconcileResult, error)
}

type orderUpdater interface {
	UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*orders.StatusUpdateResult, error)
}

type paymentLookup interface {
	FindByGatewayPaymentRef(ctx context.Context, ref string) (*models.GatewayPayment, error)
}

type deliveryGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type secretSource interface {
	WebhookSecret() string
}

type refundFetcher interface {
	FetchRefund(ctx context.Context, refundRef string) (*razorpay.Refund, error)
}

// Result is the acknowledgment returned to the gateway.
type Result struct {
	Event     string `json:"event"`
	Processed bool   `json:"processed"`
	Message   string `json:"message"`
}

// ServiceParams collects the collaborators webhook ingestion needs.
type ServiceParams struct {
	Deliveries Repository
	Payments   reconciler
	Orders     orderUpdater
	OrderRepo  orders.Repository
	PaymentRef paymentLookup
	Guard      deliveryGuard
	Secrets    secretSource
	Refunds    refundFetcher
	Logger     *logger.Logger
}

// Service ingests gateway webhook deliveries: verifies the signature over
// the raw body, logs the delivery, and dispatches on the typed event.
type Service struct {
	deliveries Repository
	payments   reconciler
	orders     orderUpdater
	orderRepo  orders.Repository
	paymentRef paymentLookup
	guard      deliveryGuard
	secrets    secretSource
	refunds    refundFetcher
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.PaymentRef == nil {
		return nil, fmt.Errorf("payment lookup required")
	}
	if params.Secrets == nil {
		return nil, fmt.Errorf("secret source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		deliveries: params.Deliveries,
		payments:   params.Payments,
		orders:     params.Orders,
		orderRepo:  params.OrderRepo,
		paymentRef: params.PaymentRef,
		guard:      params.Guard,
		secrets:    params.Secrets,
		refunds:    params.Refunds,
		logg:       params.Logger,
	}, nil
}

// HandleDelivery runs the full ingestion state machine for one inbound
// delivery. The raw body is the exact bytes received; signature verification
// happens before any parsing. A delivery log row is written whatever the
// outcome, including signature rejections.
func (s *Service) HandleDelivery(ctx context.Context, raw []byte, signature, eventID string) (*Result, error) {
	start := time.Now()

	delivery := &models.WebhookDelivery{
		Provider:  "razorpay",
		EventType: "unknown",
		Status:    enums.WebhookDeliveryStatusError,
		Payload:   raw,
	}
	if eventID != "" {
		delivery.EventID = &eventID
	}

	secret := s.secrets.WebhookSecret()
	if secret == "" {
		s.finalize(ctx, delivery, enums.WebhookDeliveryStatusError, "webhook secret not configured", start)
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret not configured")
	}

	computed := computeSignature(raw, secret)
	delivery.ComputedSignature = &computed
	if signature != "" {
		delivery.ReceivedSignature = &signature
	}

	delivery.SignatureValid = signature != "" && hmac.Equal([]byte(computed), []byte(signature))
	if !delivery.SignatureValid {
		s.finalize(ctx, delivery, enums.WebhookDeliveryStatusInvalid, "signature mismatch", start)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature")
	}

	event, err := ParseEvent(raw)
	if err != nil {
		s.finalize(ctx, delivery, enums.WebhookDeliveryStatusInvalid, "malformed payload", start)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	delivery.EventType = event.Name
	ctx = s.logg.WithEvent(ctx, event.Name)

	// Pessimistic write before dispatch so a crash mid-handler still leaves
	// a trace. Finalize flips the status to the real outcome.
	if err := s.deliveries.Create(ctx, delivery); err != nil {
		s.logg.Error(ctx, "writing webhook delivery log", err)
	}

	if s.guard != nil && eventID != "" {
		duplicate, guardErr := s.guard.CheckAndMark(ctx, eventID)
		if guardErr != nil {
			// Redis being down must not drop webhooks. The database
			// idempotency checks still make redelivery safe.
			s.logg.Warn(ctx, "idempotency guard unavailable, relying on ledger checks")
		} else if duplicate {
			s.finalize(ctx, delivery, enums.WebhookDeliveryStatusIgnored, "duplicate delivery", start)
			return &Result{Event: event.Name, Processed: false, Message: "duplicate delivery"}, nil
		}
	}

	result, status, dispatchErr := s.dispatch(ctx, event, delivery)
	if dispatchErr != nil {
		if typed := pkgerrors.As(dispatchErr); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Unmatched events are logged and acknowledged, never retried.
			s.finalize(ctx, delivery, enums.WebhookDeliveryStatusIgnored, typed.Message(), start)
			return &Result{Event: event.Name, Processed: false, Message: typed.Message()}, nil
		}
		if s.guard != nil && eventID != "" {
			_ = s.guard.Delete(ctx, eventID)
		}
		s.finalize(ctx, delivery, enums.WebhookDeliveryStatusError, dispatchErr.Error(), start)
		return nil, dispatchErr
	}

	s.finalize(ctx, delivery, status, result.Message, start)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event *Event, delivery *models.WebhookDelivery) (*Result, enums.WebhookDeliveryStatus, error) {
	switch event.Kind() {
	case EventPaymentCaptured:
		return s.handleCaptured(ctx, event, delivery)
	case EventPaymentFailed:
		return s.handleFailed(ctx, event, delivery)
	case EventPaymentAuthorized:
		if event.Payment != nil {
			delivery.GatewayPaymentRef = &event.Payment.ID
			s.logg.Info(ctx, fmt.Sprintf("payment %s authorized, awaiting capture", event.Payment.ID))
		}
		return &Result{Event: event.Name, Processed: false, Message: "authorization acknowledged"},
			enums.WebhookDeliveryStatusIgnored, nil
	case EventRefundProcessed:
		return s.handleRefund(ctx, event, delivery)
	default:
		s.logg.Info(ctx, "unrecognized event acknowledged")
		return &Result{Event: event.Name, Processed: false, Message: "event ignored"},
			enums.WebhookDeliveryStatusIgnored, nil
	}
}

func (s *Service) handleCaptured(ctx context.Context, event *Event, delivery *models.WebhookDelivery) (*Result, enums.WebhookDeliveryStatus, error) {
	if event.Payment == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "captured event has no payment entity")
	}
	delivery.GatewayPaymentRef = &event.Payment.ID

	result, err := s.payments.ReconcilePayment(ctx, payments.ReconcileInput{
		GatewayPaymentRef: event.Payment.ID,
		GatewayOrderRef:   event.Payment.OrderID,
		AmountMinor:       event.Payment.Amount,
		CurrencyCode:      event.Payment.Currency,
		Status:            enums.GatewayPaymentStatusCaptured,
		Method:            event.Payment.Method,
		RawPayload:        event.Raw,
		EventSource:       "webhook",
	})
	if err != nil {
		return nil, "", err
	}

	delivery.OrderID = &result.OrderID
	if result.AlreadyProcessed {
		return &Result{Event: event.Name, Processed: false, Message: "already processed"},
			enums.WebhookDeliveryStatusIgnored, nil
	}
	return &Result{Event: event.Name, Processed: true, Message: "payment reconciled"},
		enums.WebhookDeliveryStatusProcessed, nil
}

func (s *Service) handleFailed(ctx context.Context, event *Event, delivery *models.WebhookDelivery) (*Result, enums.WebhookDeliveryStatus, error) {
	if event.Payment == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "failed event has no payment entity")
	}
	delivery.GatewayPaymentRef = &event.Payment.ID

	order, err := s.orderRepo.FindByGatewayOrderRef(ctx, event.Payment.OrderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway order reference")
		}
		return nil, "", err
	}
	delivery.OrderID = &order.ID

	if _, err := s.orders.UpdateStatus(ctx, orders.UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusFailed,
	}); err != nil {
		return nil, "", err
	}
	return &Result{Event: event.Name, Processed: true, Message: "payment failure recorded"},
		enums.WebhookDeliveryStatusProcessed, nil
}

func (s *Service) handleRefund(ctx context.Context, event *Event, delivery *models.WebhookDelivery) (*Result, enums.WebhookDeliveryStatus, error) {
	if event.Refund == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "refund event has no refund entity")
	}
	refund := *event.Refund
	if s.refunds != nil && refund.ID != "" && (refund.Amount <= 0 || refund.PaymentID == "") {
		// Thin payloads happen when refund webhooks are configured without
		// the entity body. Fetch the authoritative resource.
		fetched, err := s.refunds.FetchRefund(ctx, refund.ID)
		if err != nil {
			return nil, "", err
		}
		refund.PaymentID = fetched.PaymentID
		refund.Amount = fetched.Amount
	}
	delivery.GatewayPaymentRef = &refund.PaymentID

	payment, err := s.paymentRef.FindByGatewayPaymentRef(ctx, refund.PaymentID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "no payment for refund reference")
		}
		return nil, "", err
	}

	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found for refunded payment")
		}
		return nil, "", err
	}
	delivery.OrderID = &order.ID

	if order.Status != enums.OrderStatusPaid {
		return &Result{Event: event.Name, Processed: false, Message: "refund for order not in paid status"},
			enums.WebhookDeliveryStatusIgnored, nil
	}

	orderMinor := order.TotalAmount.Shift(2).Round(0).IntPart()
	if refund.Amount >= orderMinor {
		// Full refund restores stock through the transition policy.
		if _, err := s.orders.UpdateStatus(ctx, orders.UpdateStatusInput{
			OrderID: order.ID,
			Status:  enums.OrderStatusRefunded,
		}); err != nil {
			return nil, "", err
		}
		return &Result{Event: event.Name, Processed: true, Message: "full refund recorded"},
			enums.WebhookDeliveryStatusProcessed, nil
	}

	// Partial refunds only mark the order; inventory stays reduced because
	// part of the order was still delivered.
	if err := s.orderRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusPartiallyRefunded); err != nil {
		return nil, "", err
	}
	return &Result{Event: event.Name, Processed: true, Message: "partial refund recorded"},
		enums.WebhookDeliveryStatusProcessed, nil
}

func (s *Service) finalize(ctx context.Context, delivery *models.WebhookDelivery, status enums.WebhookDeliveryStatus, detail string, start time.Time) {
	delivery.Status = status
	delivery.DurationMS = time.Since(start).Milliseconds()
	if detail != "" {
		delivery.Detail = &detail
	}

	var err error
	if delivery.ID == uuid.Nil {
		err = s.deliveries.Create(ctx, delivery)
	} else {
		err = s.deliveries.Update(ctx, delivery)
	}
	if err != nil {
		s.logg.Error(ctx, "writing webhook delivery log", err)
	}

	metrics.WebhookDeliveries.WithLabelValues(delivery.EventType, string(status)).Inc()
	metrics.WebhookDuration.WithLabelValues(delivery.EventType).Observe(time.Since(start).Seconds())
}

func computeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
