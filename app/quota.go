package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DaniBoe/fake-checker/app/config"
	"github.com/DaniBoe/fake-checker/app/models"
)

// Caller identifies one inbound check request. AccountID is empty for
// anonymous traffic; the fingerprint hashes are always present.
type Caller struct {
	AccountID string
	IPHash    string
	UAHash    string
}

func (c Caller) anonymous() bool { return c.AccountID == "" }

var (
	// ErrRateLimited means the hourly window for this client is full.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrSuspicious means the weekly abuse heuristics tripped.
	ErrSuspicious = errors.New("suspicious activity detected")
)

// PaywallError rejects a request that neither free quota nor paid balance
// covers; it carries the usage the caller needs to render an upgrade prompt.
type PaywallError struct {
	Usage models.UsageSnapshot
}

func (e *PaywallError) Error() string {
	return fmt.Sprintf("paywall: %d free checks used, %d paid remaining",
		e.Usage.FreeChecksUsed, e.Usage.PaidChecksRemaining)
}

// QuotaPolicy decides whether a check request runs and on whose dime.
type QuotaPolicy struct {
	store    Store
	limiter  *RateLimiter
	detector *AbuseDetector
	quota    config.QuotaConfig
	now      func() time.Time
}

func NewQuotaPolicy(store Store, cfg *config.Config) *QuotaPolicy {
	return &QuotaPolicy{
		store:    store,
		limiter:  NewRateLimiter(store, cfg.RateLimit.ChecksPerHour),
		detector: NewAbuseDetector(store, cfg.Abuse.MaxWeeklyPerIP, cfg.Abuse.MaxWeeklyPerUA, cfg.Abuse.MaxAgentsPerIP),
		quota:    cfg.Quota,
		now:      time.Now,
	}
}

// Admit runs the pre-flight gates: rate limit, abuse heuristics, then the
// freemium paywall. It returns the caller's current usage snapshot on
// success. With enforcement disabled the gates are evaluated but never
// reject, so usage keeps being observed.
func (p *QuotaPolicy) Admit(ctx context.Context, caller Caller) (models.UsageSnapshot, error) {
	ok, err := p.limiter.Allow(ctx, caller.IPHash, "check")
	if err != nil {
		return models.UsageSnapshot{}, err
	}
	if !ok && !p.quota.Disabled {
		return models.UsageSnapshot{}, ErrRateLimited
	}

	suspicious, err := p.detector.IsSuspicious(ctx, caller.IPHash, caller.UAHash)
	if err != nil {
		return models.UsageSnapshot{}, err
	}
	if suspicious && !p.quota.Disabled {
		return models.UsageSnapshot{}, ErrSuspicious
	}

	snapshot, err := usageSnapshot(ctx, p.store, caller.AccountID, p.now())
	if err != nil {
		return models.UsageSnapshot{}, err
	}
	if p.quota.Disabled {
		return snapshot, nil
	}

	limited := snapshot.FreeChecksUsed >= p.quota.FreeWeeklyLimit
	if caller.anonymous() && limited {
		return snapshot, &PaywallError{Usage: snapshot}
	}
	if !caller.anonymous() && limited && snapshot.PaidChecksRemaining == 0 {
		return snapshot, &PaywallError{Usage: snapshot}
	}
	return snapshot, nil
}

// Settle charges an admitted request after the classification succeeded:
// take a paid credit when one is available, otherwise count against the
// free quota, and always append the ledger event. The returned snapshot
// reflects the charge.
func (p *QuotaPolicy) Settle(ctx context.Context, caller Caller, admitted models.UsageSnapshot) (models.UsageSnapshot, error) {
	checkType := models.CheckFree
	if !caller.anonymous() && admitted.PaidChecksRemaining > 0 {
		deducted, err := p.store.DeductCheck(ctx, caller.AccountID)
		if err != nil {
			return models.UsageSnapshot{}, err
		}
		if deducted {
			checkType = models.CheckPaid
		}
	}

	if err := p.store.RecordUsage(ctx, models.UsageEvent{
		AccountID: caller.AccountID,
		IPHash:    caller.IPHash,
		UAHash:    caller.UAHash,
		CheckType: checkType,
		CreatedAt: p.now(),
	}); err != nil {
		return models.UsageSnapshot{}, err
	}

	snapshot, err := usageSnapshot(ctx, p.store, caller.AccountID, p.now())
	if err != nil {
		return models.UsageSnapshot{}, err
	}
	snapshot.CheckType = checkType
	return snapshot, nil
}

// FreeWeeklyLimit exposes the configured limit for usage responses.
func (p *QuotaPolicy) FreeWeeklyLimit() int { return p.quota.FreeWeeklyLimit }
