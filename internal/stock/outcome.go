package stock

import "github.com/storefrontlabs/storefront-backend/pkg/db/models"

// Outcome summarizes one reduce or restore run. Skipped means the engine
// found the work already done and wrote nothing. Errors collects per-item
// notes (insufficient stock) that do not fail the run as a whole.
type Outcome struct {
	Success      bool                      `json:"success"`
	Skipped      bool                      `json:"skipped"`
	Transactions []models.StockLedgerEntry `json:"transactions"`
	Errors       []string                  `json:"errors,omitempty"`
}

func skippedOutcome() *Outcome {
	return &Outcome{Success: true, Skipped: true}
}
