package payments

import (
	"context"
	"fmt"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
	"github.com/storefrontlabs/storefront-backend/pkg/razorpay"
)

// GatewayClient is the slice of the gateway API verification needs.
type GatewayClient interface {
	VerifyCheckoutSignature(orderRef, paymentRef, signature string) bool
	FetchPayment(ctx context.Context, paymentRef string) (*razorpay.Payment, error)
}

// VerifyInput is what the browser checkout hands back after payment.
type VerifyInput struct {
	GatewayOrderRef   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentRef string `json:"razorpay_payment_id" validate:"required"`
	Signature         string `json:"razorpay_signature" validate:"required"`
}

// Verifier handles the client-side payment verification call: it checks the
// checkout signature, fetches the authoritative payment from the gateway,
// and runs the same reconciliation path the webhook uses. Whichever of the
// two arrives first wins the idempotency gate.
type Verifier struct {
	gateway    GatewayClient
	reconciler Service
	logg       *logger.Logger
}

// NewVerifier builds a payment verifier with the required dependencies.
func NewVerifier(gateway GatewayClient, reconciler Service, logg *logger.Logger) (*Verifier, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Verifier{gateway: gateway, reconciler: reconciler, logg: logg}, nil
}

func (v *Verifier) VerifyPayment(ctx context.Context, input VerifyInput) (*ReconcileResult, error) {
	if !v.gateway.VerifyCheckoutSignature(input.GatewayOrderRef, input.GatewayPaymentRef, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout signature")
	}

	payment, err := v.gateway.FetchPayment(ctx, input.GatewayPaymentRef)
	if err != nil {
		return nil, err
	}

	status := enums.GatewayPaymentStatusAuthorized
	if parsed, parseErr := enums.ParseGatewayPaymentStatus(payment.Status); parseErr == nil {
		status = parsed
	} else {
		v.logg.Warn(ctx, fmt.Sprintf("unknown gateway payment status %q, treating as authorized", payment.Status))
	}

	return v.reconciler.ReconcilePayment(ctx, ReconcileInput{
		GatewayPaymentRef: payment.ID,
		GatewayOrderRef:   payment.OrderID,
		AmountMinor:       payment.Amount,
		CurrencyCode:      payment.Currency,
		Status:            status,
		Method:            payment.Method,
		EventSource:       "client",
	})
}
