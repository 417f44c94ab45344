package model

import "time"

// Transaction types.
const (
	TransactionExpense = "expense"
	TransactionUsage   = "usage"
)

// Transaction is an append-only ledger entry. ProductName is a denormalized
// snapshot taken at record time so history survives product deletion.
type Transaction struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    float64   `json:"quantity"`
	Amount      float64   `json:"amount"`
}

// MonthKey returns the ledger aggregate key (YYYY-MM) for t in local time.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
