package enums

import "fmt"

// StockOperation distinguishes the two kinds of ledger mutation.
type StockOperation string

const (
	StockOperationReduce  StockOperation = "reduce"
	StockOperationRestore StockOperation = "restore"
)

var validStockOperations = []StockOperation{
	StockOperationReduce,
	StockOperationRestore,
}

// String implements fmt.Stringer.
func (o StockOperation) String() string {
	return string(o)
}

// IsValid reports whether the value is a known StockOperation.
func (o StockOperation) IsValid() bool {
	for _, candidate := range validStockOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseStockOperation converts raw input into a StockOperation.
func ParseStockOperation(value string) (StockOperation, error) {
	for _, candidate := range validStockOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock operation %q", value)
}
