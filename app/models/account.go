// Package models defines accounts, usage tracking and billing rows.
package models

import "time"

// Account is an authenticated user's persisted identity and paid-check balance.
type Account struct {
	ID               string    `db:"id"`
	Email            string    `db:"email"`
	StripeCustomerID string    `db:"stripe_customer_id"`
	RemainingChecks  int       `db:"remaining_checks"`
	CreatedAt        time.Time `db:"created_at"`
}
