package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DaniBoe/fake-checker/app/models"
)

// MemStore is a mutex-guarded in-memory Store for tests and local runs
// without Postgres. It honors the same atomicity contracts: conditional
// deduction, idempotent purchases, window reset.
type MemStore struct {
	mu        sync.Mutex
	events    []models.UsageEvent
	accounts  map[string]*memAccount
	windows   map[string]*models.RateWindow
	purchases map[string]bool
}

type memAccount struct {
	email           string
	stripeCustomer  string
	remainingChecks int
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:  make(map[string]*memAccount),
		windows:   make(map[string]*models.RateWindow),
		purchases: make(map[string]bool),
	}
}

func (s *MemStore) RecordUsage(ctx context.Context, ev models.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemStore) CountFreeSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events {
		if ev.CreatedAt.Before(since) {
			continue
		}
		if accountID == "" {
			if ev.AccountID == "" {
				count++
			}
		} else if ev.AccountID == accountID && ev.CheckType == models.CheckFree {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) CountByIPSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events {
		if ev.IPHash == ipHash && !ev.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) CountByUASince(ctx context.Context, uaHash string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.events {
		if ev.UAHash == uaHash && !ev.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) CountDistinctAgentsSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := make(map[string]struct{})
	for _, ev := range s.events {
		if ev.IPHash == ipHash && !ev.CreatedAt.Before(since) {
			agents[ev.UAHash] = struct{}{}
		}
	}
	return len(agents), nil
}

func (s *MemStore) RemainingChecks(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account(accountID).remainingChecks, nil
}

func (s *MemStore) DeductCheck(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.account(accountID)
	if acct.remainingChecks <= 0 {
		return false, nil
	}
	acct.remainingChecks--
	return true, nil
}

func (s *MemStore) AddChecks(ctx context.Context, accountID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(accountID).remainingChecks += n
	return nil
}

func (s *MemStore) TakeRateToken(ctx context.Context, identifier, action string, now time.Time, window time.Duration, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := identifier + "|" + action
	w, ok := s.windows[key]
	if !ok || w.WindowStart.Before(now.Add(-window)) {
		s.windows[key] = &models.RateWindow{
			Identifier:  identifier,
			Action:      action,
			Count:       1,
			WindowStart: now,
		}
		return true, nil
	}
	if w.Count >= limit {
		return false, nil
	}
	w.Count++
	return true, nil
}

func (s *MemStore) EnsureAccount(ctx context.Context, accountID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.account(accountID)
	if acct.email == "" {
		acct.email = email
	}
	return nil
}

func (s *MemStore) FindAccountByEmail(ctx context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acct := range s.accounts {
		if acct.email != "" && acct.email == email {
			return id, nil
		}
	}
	return "", nil
}

func (s *MemStore) StripeCustomerID(ctx context.Context, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[accountID]; ok {
		return acct.stripeCustomer, nil
	}
	return "", nil
}

func (s *MemStore) SetStripeCustomerID(ctx context.Context, accountID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(accountID).stripeCustomer = customerID
	return nil
}

func (s *MemStore) ApplyPurchase(ctx context.Context, p models.Purchase) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purchases[p.PaymentRef] {
		return false, nil
	}
	s.purchases[p.PaymentRef] = true
	s.account(p.AccountID).remainingChecks += p.ChecksGranted
	return true, nil
}

// account returns the entry for accountID, lazily creating a zero-balance
// record. Callers must hold s.mu.
func (s *MemStore) account(accountID string) *memAccount {
	acct, ok := s.accounts[accountID]
	if !ok {
		acct = &memAccount{}
		s.accounts[accountID] = acct
	}
	return acct
}
