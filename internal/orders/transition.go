package orders

import "github.com/storefrontlabs/storefront-backend/pkg/enums"

// StockAction is what a status change requires from the stock engine.
type StockAction string

const (
	StockActionReduce  StockAction = "reduce"
	StockActionRestore StockAction = "restore"
	StockActionNone    StockAction = "none"
)

type statusPair struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

// stockPolicy maps the status changes that move inventory. Every pair not
// listed here is a no-op for stock.
var stockPolicy = map[statusPair]StockAction{
	{enums.OrderStatusCreated, enums.OrderStatusPaid}:           StockActionReduce,
	{enums.OrderStatusPaymentPending, enums.OrderStatusPaid}:    StockActionReduce,
	{enums.OrderStatusPaid, enums.OrderStatusCancelled}:         StockActionRestore,
	{enums.OrderStatusPaid, enums.OrderStatusRefunded}:          StockActionRestore,
	{enums.OrderStatusPaid, enums.OrderStatusPartiallyRefunded}: StockActionRestore,
	{enums.OrderStatusPaid, enums.OrderStatusFailed}:            StockActionRestore,
}

// PolicyFor returns the stock action a status transition requires.
func PolicyFor(from, to enums.OrderStatus) StockAction {
	if action, ok := stockPolicy[statusPair{from, to}]; ok {
		return action
	}
	return StockActionNone
}
