package model

import "time"

// Product status values, derived from ExpiryDate relative to "now".
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusExpired = "expired"
)

// warningWindow is how far ahead of expiry a product is flagged as warning.
const warningWindow = 3 * 24 * time.Hour

type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Quantity   float64    `json:"quantity"`
	Unit       string     `json:"unit"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CategoryID string     `json:"category_id"`
	Status     string     `json:"status"`
	Cost       float64    `json:"cost"`
	AddedDate  time.Time  `json:"added_date"`
}

// ComputeStatus derives the status for the given expiry date. The status
// field is a projection of ExpiryDate: it is recomputed on every apply and
// never trusted from the wire, so two devices with different clocks cannot
// persist drifted values.
func ComputeStatus(expiry *time.Time, now time.Time) string {
	if expiry == nil {
		return StatusOK
	}
	today := now.Truncate(24 * time.Hour)
	exp := expiry.Truncate(24 * time.Hour)
	if exp.Before(today) {
		return StatusExpired
	}
	if exp.Sub(today) <= warningWindow {
		return StatusWarning
	}
	return StatusOK
}
