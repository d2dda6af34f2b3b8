package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/storefrontlabs/storefront-backend/api/responses"
	razorpaywebhook "github.com/storefrontlabs/storefront-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

type razorpayWebhookService interface {
	HandleDelivery(ctx context.Context, raw []byte, signature, eventID string) (*razorpaywebhook.Result, error)
}

// RazorpayWebhook receives gateway deliveries. The body is passed through as
// raw bytes because the signature covers the exact bytes on the wire.
func RazorpayWebhook(svc razorpayWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Razorpay-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay signature missing"))
			return
		}
		eventID := r.Header.Get("X-Razorpay-Event-Id")

		result, err := svc.HandleDelivery(ctx, payload, signature, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
