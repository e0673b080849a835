package models

import "time"

type CheckType string

const (
	CheckFree CheckType = "free"
	CheckPaid CheckType = "paid"
)

// UsageEvent is one append-only ledger entry per performed check.
// AccountID is empty for anonymous callers.
type UsageEvent struct {
	AccountID string    `db:"account_id"`
	IPHash    string    `db:"ip_hash"`
	UAHash    string    `db:"ua_hash"`
	CheckType CheckType `db:"check_type"`
	CreatedAt time.Time `db:"created_at"`
}

// RateWindow is one rolling-hour counter per (identifier, action).
type RateWindow struct {
	Identifier  string    `db:"identifier"`
	Action      string    `db:"action"`
	Count       int       `db:"count"`
	WindowStart time.Time `db:"window_start"`
}

// UsageSnapshot is the usage block returned alongside check results.
type UsageSnapshot struct {
	FreeChecksUsed      int       `json:"freeChecksUsed"`
	PaidChecksRemaining int       `json:"paidChecksRemaining"`
	CheckType           CheckType `json:"checkType"`
}
