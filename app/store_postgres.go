package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/DaniBoe/fake-checker/app/config"
	"github.com/DaniBoe/fake-checker/app/models"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store on a constructed *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects and pings the configured database.
func OpenPostgres(cfg *config.Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.URL,
		cfg.DB.Port,
		cfg.DB.Name,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db.Ping: %w", err)
	}

	log.Println("Connected to Postgres")
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, ev models.UsageEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (account_id, ip_hash, ua_hash, check_type, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`, nullIfEmpty(ev.AccountID), ev.IPHash, ev.UAHash, ev.CheckType, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountFreeSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var count int
	var err error
	if accountID == "" {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM usage_events
			WHERE account_id IS NULL AND created_at >= $1;
		`, since).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM usage_events
			WHERE account_id = $1 AND check_type = $2 AND created_at >= $3;
		`, accountID, models.CheckFree, since).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count free usage: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountByIPSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	return s.countEvents(ctx, "ip_hash", ipHash, since)
}

func (s *PostgresStore) CountByUASince(ctx context.Context, uaHash string, since time.Time) (int, error) {
	return s.countEvents(ctx, "ua_hash", uaHash, since)
}

func (s *PostgresStore) countEvents(ctx context.Context, column, hash string, since time.Time) (int, error) {
	var count int
	// column is one of two fixed names, never caller input.
	q := fmt.Sprintf(`SELECT COUNT(*) FROM usage_events WHERE %s = $1 AND created_at >= $2;`, column)
	if err := s.db.QueryRowContext(ctx, q, hash, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count usage by %s: %w", column, err)
	}
	return count, nil
}

func (s *PostgresStore) CountDistinctAgentsSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT ua_hash) FROM usage_events
		WHERE ip_hash = $1 AND created_at >= $2;
	`, ipHash, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct agents: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) RemainingChecks(ctx context.Context, accountID string) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		SELECT remaining_checks FROM accounts WHERE id = $1;
	`, accountID).Scan(&remaining)
	if err == sql.ErrNoRows {
		if err := s.EnsureAccount(ctx, accountID, ""); err != nil {
			return 0, err
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}
	return remaining, nil
}

// DeductCheck is a single conditional update so two concurrent callers can
// never both take the last credit (see the balance > 0 guard).
func (s *PostgresStore) DeductCheck(ctx context.Context, accountID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET remaining_checks = remaining_checks - 1
		WHERE id = $1 AND remaining_checks > 0;
	`, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to deduct check: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) AddChecks(ctx context.Context, accountID string, n int) error {
	if n <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", n)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, remaining_checks, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET remaining_checks = accounts.remaining_checks + EXCLUDED.remaining_checks;
	`, accountID, n)
	if err != nil {
		return fmt.Errorf("failed to add checks: %w", err)
	}
	return nil
}

// TakeRateToken upserts the (identifier, action) window in one statement:
// an expired window restarts at one, an open window under the limit
// increments, and a full window matches no row and is rejected as-is.
func (s *PostgresStore) TakeRateToken(ctx context.Context, identifier, action string, now time.Time, window time.Duration, limit int) (bool, error) {
	cutoff := now.Add(-window)
	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_windows (identifier, action, count, window_start)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (identifier, action) DO UPDATE
		SET count = CASE
				WHEN rate_windows.window_start < $4 THEN 1
				ELSE rate_windows.count + 1
			END,
			window_start = CASE
				WHEN rate_windows.window_start < $4 THEN $3
				ELSE rate_windows.window_start
			END
		WHERE rate_windows.window_start < $4 OR rate_windows.count < $5
		RETURNING count;
	`, identifier, action, now, cutoff, limit).Scan(&count)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to take rate token: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) EnsureAccount(ctx context.Context, accountID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, remaining_checks, created_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (id) DO NOTHING;
	`, accountID, nullIfEmpty(email))
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM accounts WHERE email = $1;
	`, email).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find account by email: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) StripeCustomerID(ctx context.Context, accountID string) (string, error) {
	var customerID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT stripe_customer_id FROM accounts WHERE id = $1;
	`, accountID).Scan(&customerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load stripe customer: %w", err)
	}
	return customerID.String, nil
}

func (s *PostgresStore) SetStripeCustomerID(ctx context.Context, accountID, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET stripe_customer_id = $1 WHERE id = $2;
	`, customerID, accountID)
	if err != nil {
		return fmt.Errorf("failed to store stripe customer: %w", err)
	}
	return nil
}

func (s *PostgresStore) ApplyPurchase(ctx context.Context, p models.Purchase) (bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (payment_ref, account_id, package_id, checks_granted, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (payment_ref) DO NOTHING;
	`, p.PaymentRef, p.AccountID, p.PackageID, p.ChecksGranted, p.AmountCents)
	if err != nil {
		return false, fmt.Errorf("failed to record purchase: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// Replay of an already-applied payment reference.
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, remaining_checks, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET remaining_checks = accounts.remaining_checks + EXCLUDED.remaining_checks;
	`, p.AccountID, p.ChecksGranted)
	if err != nil {
		return false, fmt.Errorf("failed to credit purchase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
