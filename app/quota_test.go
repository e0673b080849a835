package app

import (
	"context"
	"errors"
	"testing"

	"github.com/DaniBoe/fake-checker/app/config"
	"github.com/DaniBoe/fake-checker/app/models"
)

func quotaTestConfig() *config.Config {
	return &config.Config{
		Quota:     config.QuotaConfig{FreeWeeklyLimit: 3},
		RateLimit: config.RateLimitConfig{ChecksPerHour: 100},
		Abuse: config.AbuseConfig{
			MaxWeeklyPerIP: 50,
			MaxWeeklyPerUA: 40,
			MaxAgentsPerIP: 10,
		},
	}
}

func runCheck(t *testing.T, policy *QuotaPolicy, caller Caller) models.UsageSnapshot {
	t.Helper()
	admitted, err := policy.Admit(context.Background(), caller)
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}
	settled, err := policy.Settle(context.Background(), caller, admitted)
	if err != nil {
		t.Fatalf("Settle error = %v", err)
	}
	return settled
}

func TestAnonymousPaywallAfterFreeLimit(t *testing.T) {
	store := NewMemStore()
	policy := NewQuotaPolicy(store, quotaTestConfig())
	caller := Caller{IPHash: "ip-anon", UAHash: "ua-anon"}

	for i := 1; i <= 3; i++ {
		snapshot := runCheck(t, policy, caller)
		if snapshot.CheckType != models.CheckFree {
			t.Fatalf("check %d: CheckType = %q, want %q", i, snapshot.CheckType, models.CheckFree)
		}
		if snapshot.FreeChecksUsed != i {
			t.Fatalf("check %d: FreeChecksUsed = %d, want %d", i, snapshot.FreeChecksUsed, i)
		}
	}

	_, err := policy.Admit(context.Background(), caller)
	var paywall *PaywallError
	if !errors.As(err, &paywall) {
		t.Fatalf("4th check: err = %v, want PaywallError", err)
	}
	if paywall.Usage.FreeChecksUsed != 3 {
		t.Fatalf("paywall FreeChecksUsed = %d, want 3", paywall.Usage.FreeChecksUsed)
	}
}

func TestPaidBalanceDrainsBeforeFreeQuota(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	policy := NewQuotaPolicy(store, quotaTestConfig())
	if err := store.AddChecks(ctx, "acct-1", 2); err != nil {
		t.Fatalf("AddChecks error = %v", err)
	}
	caller := Caller{AccountID: "acct-1", IPHash: "ip-1", UAHash: "ua-1"}

	// Paid credits are consumed first, then the free weekly allowance.
	for want := 1; want >= 0; want-- {
		snapshot := runCheck(t, policy, caller)
		if snapshot.CheckType != models.CheckPaid {
			t.Fatalf("CheckType = %q with balance left, want %q", snapshot.CheckType, models.CheckPaid)
		}
		if snapshot.PaidChecksRemaining != want {
			t.Fatalf("PaidChecksRemaining = %d, want %d", snapshot.PaidChecksRemaining, want)
		}
	}

	for i := 1; i <= 3; i++ {
		snapshot := runCheck(t, policy, caller)
		if snapshot.CheckType != models.CheckFree {
			t.Fatalf("CheckType = %q after balance drained, want %q", snapshot.CheckType, models.CheckFree)
		}
		if snapshot.FreeChecksUsed != i {
			t.Fatalf("FreeChecksUsed = %d, want %d", snapshot.FreeChecksUsed, i)
		}
	}

	_, err := policy.Admit(ctx, caller)
	var paywall *PaywallError
	if !errors.As(err, &paywall) {
		t.Fatalf("drained account: err = %v, want PaywallError", err)
	}
}

func TestAuthenticatedPaidBalanceFive(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	policy := NewQuotaPolicy(store, quotaTestConfig())
	if err := store.AddChecks(ctx, "acct-2", 5); err != nil {
		t.Fatalf("AddChecks error = %v", err)
	}
	caller := Caller{AccountID: "acct-2", IPHash: "ip-2", UAHash: "ua-2"}

	snapshot := runCheck(t, policy, caller)
	if snapshot.CheckType != models.CheckPaid {
		t.Fatalf("CheckType = %q, want %q", snapshot.CheckType, models.CheckPaid)
	}
	if snapshot.PaidChecksRemaining != 4 {
		t.Fatalf("PaidChecksRemaining = %d, want 4", snapshot.PaidChecksRemaining)
	}
}

func TestQuotaRateLimitRejects(t *testing.T) {
	cfg := quotaTestConfig()
	cfg.RateLimit.ChecksPerHour = 2
	store := NewMemStore()
	policy := NewQuotaPolicy(store, cfg)
	caller := Caller{IPHash: "ip-burst", UAHash: "ua-burst"}

	for i := 0; i < 2; i++ {
		if _, err := policy.Admit(context.Background(), caller); err != nil {
			t.Fatalf("Admit %d error = %v", i, err)
		}
	}
	_, err := policy.Admit(context.Background(), caller)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestQuotaAbuseRejects(t *testing.T) {
	cfg := quotaTestConfig()
	cfg.Abuse.MaxAgentsPerIP = 2
	store := NewMemStore()
	seedWeeklyEvents(t, store, "ip-shared", 5)
	policy := NewQuotaPolicy(store, cfg)

	_, err := policy.Admit(context.Background(), Caller{IPHash: "ip-shared", UAHash: "ua-0"})
	if !errors.Is(err, ErrSuspicious) {
		t.Fatalf("err = %v, want ErrSuspicious", err)
	}
}

func TestDisabledEnforcementStillRecords(t *testing.T) {
	ctx := context.Background()
	cfg := quotaTestConfig()
	cfg.Quota.Disabled = true
	cfg.RateLimit.ChecksPerHour = 1
	store := NewMemStore()
	policy := NewQuotaPolicy(store, cfg)
	caller := Caller{IPHash: "ip-open", UAHash: "ua-open"}

	// Way past both the rate limit and the free weekly limit.
	var last models.UsageSnapshot
	for i := 0; i < 6; i++ {
		last = runCheck(t, policy, caller)
	}
	if last.FreeChecksUsed != 6 {
		t.Fatalf("FreeChecksUsed = %d, want 6", last.FreeChecksUsed)
	}

	count, err := store.CountByIPSince(ctx, "ip-open", weekStartUTC(policy.now()))
	if err != nil {
		t.Fatalf("CountByIPSince error = %v", err)
	}
	if count != 6 {
		t.Fatalf("recorded events = %d, want 6", count)
	}
}
