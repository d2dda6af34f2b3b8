package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	razorpaywebhook "github.com/storefrontlabs/storefront-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

type stubWebhookService struct {
	handleFn func(ctx context.Context, raw []byte, signature, eventID string) (*razorpaywebhook.Result, error)
	calls    int
}

func (s *stubWebhookService) HandleDelivery(ctx context.Context, raw []byte, signature, eventID string) (*razorpaywebhook.Result, error) {
	s.calls++
	if s.handleFn != nil {
		return s.handleFn(ctx, raw, signature, eventID)
	}
	return &razorpaywebhook.Result{Processed: true}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("disabled")})
}

func TestRazorpayWebhookProcessed(t *testing.T) {
	svc := &stubWebhookService{
		handleFn: func(_ context.Context, raw []byte, signature, eventID string) (*razorpaywebhook.Result, error) {
			if string(raw) != `{"event":"payment.captured"}` {
				t.Fatalf("unexpected raw body %q", raw)
			}
			if signature != "abc123" {
				t.Fatalf("unexpected signature %q", signature)
			}
			if eventID != "evt_1" {
				t.Fatalf("unexpected event id %q", eventID)
			}
			return &razorpaywebhook.Result{Event: "payment.captured", Processed: true, Message: "payment reconciled"}, nil
		},
	}

	handler := RazorpayWebhook(svc, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set("X-Razorpay-Signature", "abc123")
	req.Header.Set("X-Razorpay-Event-Id", "evt_1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data razorpaywebhook.Result `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Processed || envelope.Data.Event != "payment.captured" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestRazorpayWebhookMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}

	handler := RazorpayWebhook(svc, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service should not be invoked without a signature")
	}
}

func TestRazorpayWebhookInvalidSignature(t *testing.T) {
	svc := &stubWebhookService{
		handleFn: func(context.Context, []byte, string, string) (*razorpaywebhook.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature")
		},
	}

	handler := RazorpayWebhook(svc, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set("X-Razorpay-Signature", "bogus")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
