package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/skuindex/internal/domain"
	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
)

const (
	retryBase = time.Second
	retryCap  = 5 * time.Minute
)

// parkedAt is the next_attempt_at of an intent that ran out of attempts.
var parkedAt = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// upsertIntent records that productID must be re-indexed. Every write bumps
// the version and makes the intent due immediately.
func upsertIntent(ctx context.Context, tx *sql.Tx, productID string, now time.Time) error {
	ms := now.UnixMilli()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_outbox (product_id, version, attempts, next_attempt_at, last_error, created_at, updated_at)
		VALUES (?, 1, 0, ?, '', ?, ?)
		ON CONFLICT (product_id) DO UPDATE SET
			version = sync_outbox.version + 1,
			attempts = 0,
			next_attempt_at = excluded.next_attempt_at,
			last_error = '',
			updated_at = excluded.updated_at`,
		productID, ms, ms, ms)
	if err != nil {
		return fmt.Errorf("upsert sync intent %s: %w", productID, err)
	}
	return nil
}

// EnqueueSync schedules productID for re-indexing.
func (r *Repo) EnqueueSync(ctx context.Context, productID string) error {
	db, err := r.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup product %s: %w", productID, err)
	}

	if err := upsertIntent(ctx, tx, productID, r.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimDue returns up to limit due intents, oldest due first, and leases
// them: they are not due again until lease has passed.
func (r *Repo) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]catalog.SyncIntent, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, version, attempts, next_attempt_at, last_error, created_at, updated_at
		FROM sync_outbox
		WHERE next_attempt_at <= ?
		ORDER BY next_attempt_at, product_id
		LIMIT ?`, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("select due intents: %w", err)
	}

	var intents []catalog.SyncIntent
	for rows.Next() {
		var (
			in                      catalog.SyncIntent
			next, created, updated int64
		)
		if err := rows.Scan(&in.ProductID, &in.Version, &in.Attempts, &next, &in.LastError, &created, &updated); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		in.NextAttemptAt = time.UnixMilli(next).UTC()
		in.CreatedAt = time.UnixMilli(created).UTC()
		in.UpdatedAt = time.UnixMilli(updated).UTC()
		intents = append(intents, in)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close intents: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intents: %w", err)
	}

	leaseUntil := now.Add(lease).UnixMilli()
	for _, in := range intents {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_outbox SET next_attempt_at = ? WHERE product_id = ? AND version = ?`,
			leaseUntil, in.ProductID, in.Version); err != nil {
			return nil, fmt.Errorf("lease intent %s: %w", in.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return intents, nil
}

// MarkDone removes the intent if its version is unchanged. It reports
// false when a newer write bumped the version, leaving that pass scheduled.
func (r *Repo) MarkDone(ctx context.Context, productID string, version int64) (bool, error) {
	db, err := r.handle()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM sync_outbox WHERE product_id = ? AND version = ?`, productID, version)
	if err != nil {
		return false, fmt.Errorf("mark intent %s done: %w", productID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark intent %s done: %w", productID, err)
	}
	return n == 1, nil
}

// MarkFailed records a failed attempt and reschedules the intent with
// exponential backoff. After maxAttempts the intent is parked and parked
// is true. A newer version is left untouched.
func (r *Repo) MarkFailed(ctx context.Context, in catalog.SyncIntent, cause error, maxAttempts int) (parked bool, err error) {
	db, err := r.handle()
	if err != nil {
		return false, err
	}

	now := r.now().UTC()
	attempts := in.Attempts + 1
	next := now.Add(RetryDelay(attempts))
	if maxAttempts > 0 && attempts >= maxAttempts {
		next = parkedAt
		parked = true
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err = db.ExecContext(ctx, `
		UPDATE sync_outbox
		SET attempts = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		WHERE product_id = ? AND version = ?`,
		attempts, next.UnixMilli(), msg, now.UnixMilli(), in.ProductID, in.Version)
	if err != nil {
		return false, fmt.Errorf("mark intent %s failed: %w", in.ProductID, err)
	}
	return parked, nil
}

// RetryDelay is the wait before attempt number attempts+1: one second
// doubled per failed attempt, capped at five minutes.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	d := retryBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= retryCap {
			return retryCap
		}
	}
	return d
}

// PendingCount returns the number of intents that are not parked.
func (r *Repo) PendingCount(ctx context.Context) (int, error) {
	db, err := r.handle()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_outbox WHERE next_attempt_at < ?`, parkedAt.UnixMilli()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending intents: %w", err)
	}
	return n, nil
}

// Intent returns the outbox row of productID.
func (r *Repo) Intent(ctx context.Context, productID string) (catalog.SyncIntent, error) {
	db, err := r.handle()
	if err != nil {
		return catalog.SyncIntent{}, err
	}
	var (
		in                      catalog.SyncIntent
		next, created, updated int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT product_id, version, attempts, next_attempt_at, last_error, created_at, updated_at
		FROM sync_outbox WHERE product_id = ?`, productID).
		Scan(&in.ProductID, &in.Version, &in.Attempts, &next, &in.LastError, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.SyncIntent{}, fmt.Errorf("intent %s: %w", productID, domain.ErrNotFound)
	}
	if err != nil {
		return catalog.SyncIntent{}, fmt.Errorf("fetch intent %s: %w", productID, err)
	}
	in.NextAttemptAt = time.UnixMilli(next).UTC()
	in.CreatedAt = time.UnixMilli(created).UTC()
	in.UpdatedAt = time.UnixMilli(updated).UTC()
	return in, nil
}
