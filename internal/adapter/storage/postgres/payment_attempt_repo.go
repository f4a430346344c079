package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const attemptColumns = `a.id, a.invoice_id, COALESCE(a.idempotency_key, ''), a.status, a.created_at, a.resolved_at`

// PaymentAttemptRepo implements ports.PaymentAttemptRepository, including the
// idempotency_records index.
type PaymentAttemptRepo struct {
	pool Pool
	tx   *Transactor
}

// NewPaymentAttemptRepo creates a new PaymentAttemptRepo.
func NewPaymentAttemptRepo(pool Pool) *PaymentAttemptRepo {
	return &PaymentAttemptRepo{pool: pool, tx: NewTransactor(pool)}
}

// Create inserts the attempt. With an idempotency key, the key is reserved
// first in the same transaction; if another attempt already holds it, that
// attempt is returned and nothing is inserted.
func (r *PaymentAttemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error) {
	if a.IdempotencyKey == "" {
		if err := r.insert(ctx, a); err != nil {
			return nil, false, err
		}
		return a, true, nil
	}

	var (
		result  *domain.PaymentAttempt
		created bool
	)
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.pool)

		// Blocks on a concurrent uncommitted reservation of the same key.
		tag, err := q.Exec(ctx,
			`INSERT INTO idempotency_records (invoice_id, idempotency_key, payment_attempt_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (invoice_id, idempotency_key) DO NOTHING`,
			a.InvoiceID, a.IdempotencyKey, a.ID, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("reserve idempotency key: %w", err)
		}

		if tag.RowsAffected() == 0 {
			existing, err := r.GetByIdempotencyKey(ctx, a.InvoiceID, a.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("idempotency key %s reserved without attempt", domain.BuildIdempotencyKey(a.InvoiceID, a.IdempotencyKey))
			}
			result = existing
			return nil
		}

		if err := r.insert(ctx, a); err != nil {
			return err
		}
		result, created = a, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *PaymentAttemptRepo) insert(ctx context.Context, a *domain.PaymentAttempt) error {
	var key *string
	if a.IdempotencyKey != "" {
		key = &a.IdempotencyKey
	}

	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO payment_attempts (id, invoice_id, idempotency_key, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.InvoiceID, key, a.Status, a.CreatedAt, a.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert payment attempt: %w", err)
	}
	return nil
}

// GetByID fetches a payment attempt by its ID.
func (r *PaymentAttemptRepo) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts a WHERE a.id = $1`

	a, err := scanAttempt(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment attempt by id: %w", err)
	}
	return a, nil
}

// GetByIdempotencyKey resolves a key through idempotency_records.
func (r *PaymentAttemptRepo) GetByIdempotencyKey(ctx context.Context, invoiceID, key string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM idempotency_records k
		JOIN payment_attempts a ON a.id = k.payment_attempt_id
		WHERE k.invoice_id = $1 AND k.idempotency_key = $2`

	a, err := scanAttempt(conn(ctx, r.pool).QueryRow(ctx, query, invoiceID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment attempt by idempotency key: %w", err)
	}
	return a, nil
}

// Resolve is a conditional update from pending. When no row changes the
// current attempt is read back.
func (r *PaymentAttemptRepo) Resolve(ctx context.Context, id string, status domain.AttemptStatus, at time.Time) (*domain.PaymentAttempt, bool, error) {
	query := `UPDATE payment_attempts a SET status = $2, resolved_at = $3
		WHERE a.id = $1 AND a.status = $4
		RETURNING ` + attemptColumns

	a, err := scanAttempt(conn(ctx, r.pool).QueryRow(ctx, query, id, status, at, domain.AttemptStatusPending))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("resolve payment attempt: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	a := &domain.PaymentAttempt{}
	err := row.Scan(&a.ID, &a.InvoiceID, &a.IdempotencyKey, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}
