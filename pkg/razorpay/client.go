package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storefrontlabs/storefront-backend/pkg/config"
	pkgerrors "github.com/storefrontlabs/storefront-backend/pkg/errors"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

// Payment is the gateway's payment resource, fetched when a webhook payload
// is insufficient or a client verification call needs authoritative data.
// Amount is in minor units.
type Payment struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
	Method      *string `json:"method"`
	Description *string `json:"description"`
}

// Refund is the gateway's refund resource.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// Client wraps the gateway REST API with basic auth and error mapping.
type Client struct {
	http          *http.Client
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient validates the credentials and builds the gateway wrapper.
func NewClient(cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	return &Client{
		http:          &http.Client{Timeout: cfg.Timeout},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		logger:        logg,
	}, nil
}

// WebhookSecret returns the shared secret for webhook signature checks.
func (c *Client) WebhookSecret() string {
	return c.webhookSecret
}

// FetchPayment retrieves one payment by its gateway reference.
func (c *Client) FetchPayment(ctx context.Context, paymentRef string) (*Payment, error) {
	var payment Payment
	if err := c.get(ctx, "/v1/payments/"+paymentRef, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FetchRefund retrieves one refund by its gateway reference.
func (c *Client) FetchRefund(ctx context.Context, refundRef string) (*Refund, error) {
	var refund Refund
	if err := c.get(ctx, "/v1/refunds/"+refundRef, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// VerifyCheckoutSignature checks the signature the browser checkout hands
// back after payment: HMAC-SHA256 over "<orderRef>|<paymentRef>" keyed by
// the API key secret.
func (c *Client) VerifyCheckoutSignature(orderRef, paymentRef, signature string) bool {
	if orderRef == "" || paymentRef == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building gateway request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling payment gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading gateway response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway resource not found")
	case resp.StatusCode >= 400:
		c.logger.Warn(ctx, fmt.Sprintf("gateway returned %d for %s", resp.StatusCode, path))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway error %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding gateway response")
	}
	return nil
}
