package app

import (
	"context"
	"time"

	"github.com/DaniBoe/fake-checker/app/models"
)

// Store is the persistence boundary for accounts, the usage ledger, rate
// windows and purchases. The Postgres implementation backs production; the
// in-memory implementation backs tests and local runs without a database.
//
// The store is constructed once and handed to each component; nothing in
// this package keeps package-level database state.
type Store interface {
	// Usage ledger (append-only).
	RecordUsage(ctx context.Context, ev models.UsageEvent) error
	// CountFreeSince counts the account's free-kind events since the given
	// time. With an empty accountID it counts all anonymous events instead,
	// since anonymous traffic is inherently all free.
	CountFreeSince(ctx context.Context, accountID string, since time.Time) (int, error)
	CountByIPSince(ctx context.Context, ipHash string, since time.Time) (int, error)
	CountByUASince(ctx context.Context, uaHash string, since time.Time) (int, error)
	CountDistinctAgentsSince(ctx context.Context, ipHash string, since time.Time) (int, error)

	// Paid-credit account. RemainingChecks lazily creates a zero-balance row.
	// DeductCheck performs a single conditional decrement and reports whether
	// a credit was taken; the balance can never go negative.
	RemainingChecks(ctx context.Context, accountID string) (int, error)
	DeductCheck(ctx context.Context, accountID string) (bool, error)
	AddChecks(ctx context.Context, accountID string, n int) error

	// TakeRateToken counts one action inside the rolling window and reports
	// whether the caller is still under the limit. An expired window restarts
	// at one; a full window rejects without incrementing further.
	TakeRateToken(ctx context.Context, identifier, action string, now time.Time, window time.Duration, limit int) (bool, error)

	// Accounts and purchases.
	EnsureAccount(ctx context.Context, accountID, email string) error
	FindAccountByEmail(ctx context.Context, email string) (string, error)
	StripeCustomerID(ctx context.Context, accountID string) (string, error)
	SetStripeCustomerID(ctx context.Context, accountID, customerID string) error
	// ApplyPurchase records the purchase and credits its checks in one
	// atomic step, keyed on the payment reference. It reports false when the
	// reference was already applied (webhook redelivery).
	ApplyPurchase(ctx context.Context, p models.Purchase) (bool, error)
}
