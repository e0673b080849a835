package models

import "time"

// Purchase records one completed payment, keyed by the external payment
// reference so webhook redeliveries cannot double-credit.
type Purchase struct {
	PaymentRef    string    `db:"payment_ref"`
	AccountID     string    `db:"account_id"`
	PackageID     string    `db:"package_id"`
	ChecksGranted int       `db:"checks_granted"`
	AmountCents   int64     `db:"amount_cents"`
	CreatedAt     time.Time `db:"created_at"`
}
