package enums

// WebhookDeliveryStatus records the terminal outcome of one inbound delivery.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusProcessed WebhookDeliveryStatus = "processed"
	WebhookDeliveryStatusIgnored   WebhookDeliveryStatus = "ignored"
	WebhookDeliveryStatusInvalid   WebhookDeliveryStatus = "invalid"
	WebhookDeliveryStatusError     WebhookDeliveryStatus = "error"
)

var validWebhookDeliveryStatuses = []WebhookDeliveryStatus{
	WebhookDeliveryStatusProcessed,
	WebhookDeliveryStatusIgnored,
	WebhookDeliveryStatusInvalid,
	WebhookDeliveryStatusError,
}

// String implements fmt.Stringer.
func (s WebhookDeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WebhookDeliveryStatus.
func (s WebhookDeliveryStatus) IsValid() bool {
	for _, candidate := range validWebhookDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
