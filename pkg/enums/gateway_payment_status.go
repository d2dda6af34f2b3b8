package enums

import "fmt"

// GatewayPaymentStatus mirrors the payment states reported by the gateway.
type GatewayPaymentStatus string

const (
	GatewayPaymentStatusCreated    GatewayPaymentStatus = "created"
	GatewayPaymentStatusAuthorized GatewayPaymentStatus = "authorized"
	GatewayPaymentStatusCaptured   GatewayPaymentStatus = "captured"
	GatewayPaymentStatusRefunded   GatewayPaymentStatus = "refunded"
	GatewayPaymentStatusFailed     GatewayPaymentStatus = "failed"
)

var validGatewayPaymentStatuses = []GatewayPaymentStatus{
	GatewayPaymentStatusCreated,
	GatewayPaymentStatusAuthorized,
	GatewayPaymentStatusCaptured,
	GatewayPaymentStatusRefunded,
	GatewayPaymentStatusFailed,
}

// String implements fmt.Stringer.
func (s GatewayPaymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GatewayPaymentStatus.
func (s GatewayPaymentStatus) IsValid() bool {
	for _, candidate := range validGatewayPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGatewayPaymentStatus converts raw input into a GatewayPaymentStatus.
func ParseGatewayPaymentStatus(value string) (GatewayPaymentStatus, error) {
	for _, candidate := range validGatewayPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway payment status %q", value)
}
