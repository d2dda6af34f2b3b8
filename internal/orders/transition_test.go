package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storefrontlabs/storefront-backend/pkg/enums"
)

func TestPolicyForListedTransitions(t *testing.T) {
	cases := []struct {
		from   enums.OrderStatus
		to     enums.OrderStatus
		action StockAction
	}{
		{enums.OrderStatusCreated, enums.OrderStatusPaid, StockActionReduce},
		{enums.OrderStatusPaymentPending, enums.OrderStatusPaid, StockActionReduce},
		{enums.OrderStatusPaid, enums.OrderStatusCancelled, StockActionRestore},
		{enums.OrderStatusPaid, enums.OrderStatusRefunded, StockActionRestore},
		{enums.OrderStatusPaid, enums.OrderStatusPartiallyRefunded, StockActionRestore},
		{enums.OrderStatusPaid, enums.OrderStatusFailed, StockActionRestore},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.action, PolicyFor(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

// Every pair not in the policy table must be a stock no-op.
func TestPolicyForUnlistedTransitionsAreNone(t *testing.T) {
	statuses := []enums.OrderStatus{
		enums.OrderStatusCreated,
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaid,
		enums.OrderStatusFlagged,
		enums.OrderStatusFailed,
		enums.OrderStatusRefunded,
		enums.OrderStatusPartiallyRefunded,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if _, listed := stockPolicy[statusPair{from, to}]; listed {
				continue
			}
			assert.Equal(t, StockActionNone, PolicyFor(from, to), "%s -> %s", from, to)
		}
	}
}
