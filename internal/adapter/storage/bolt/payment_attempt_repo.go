package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"

	bbolt "go.etcd.io/bbolt"
)

// PaymentAttemptRepo implements ports.PaymentAttemptRepository. The key
// reservation and the attempt are written in the same bolt transaction.
type PaymentAttemptRepo struct {
	store *Store
}

// NewPaymentAttemptRepo creates a new PaymentAttemptRepo.
func NewPaymentAttemptRepo(store *Store) *PaymentAttemptRepo {
	return &PaymentAttemptRepo{store: store}
}

func (r *PaymentAttemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error) {
	var (
		result  *domain.PaymentAttempt
		created bool
	)
	err := r.store.update(ctx, func(tx *bbolt.Tx) error {
		attempts := tx.Bucket(bucketAttempts)
		if attempts.Get([]byte(a.ID)) != nil {
			return ports.ErrDuplicate
		}

		if a.IdempotencyKey != "" {
			keys := tx.Bucket(bucketIdempotency)
			scoped := []byte(domain.BuildIdempotencyKey(a.InvoiceID, a.IdempotencyKey))

			if v := keys.Get(scoped); v != nil {
				var rec domain.IdempotencyRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("decode idempotency record %s: %w", scoped, err)
				}
				existing, err := getAttempt(attempts, rec.PaymentAttemptID)
				if err != nil {
					return err
				}
				if existing == nil {
					return fmt.Errorf("idempotency record %s points at missing attempt %s", scoped, rec.PaymentAttemptID)
				}
				result = existing
				return nil
			}

			data, err := json.Marshal(domain.IdempotencyRecord{
				InvoiceID:        a.InvoiceID,
				Key:              a.IdempotencyKey,
				PaymentAttemptID: a.ID,
				CreatedAt:        a.CreatedAt,
			})
			if err != nil {
				return fmt.Errorf("encode idempotency record: %w", err)
			}
			if err := keys.Put(scoped, data); err != nil {
				return err
			}
		}

		if err := putAttempt(attempts, a); err != nil {
			return err
		}
		stored := *a
		result, created = &stored, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *PaymentAttemptRepo) GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	var a *domain.PaymentAttempt
	err := r.store.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		a, err = getAttempt(tx.Bucket(bucketAttempts), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PaymentAttemptRepo) GetByIdempotencyKey(ctx context.Context, invoiceID, key string) (*domain.PaymentAttempt, error) {
	var a *domain.PaymentAttempt
	err := r.store.view(ctx, func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketIdempotency).Get([]byte(domain.BuildIdempotencyKey(invoiceID, key)))
		if v == nil {
			return nil
		}
		var rec domain.IdempotencyRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode idempotency record: %w", err)
		}
		var err error
		a, err = getAttempt(tx.Bucket(bucketAttempts), rec.PaymentAttemptID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PaymentAttemptRepo) Resolve(ctx context.Context, id string, status domain.AttemptStatus, at time.Time) (*domain.PaymentAttempt, bool, error) {
	var (
		result       *domain.PaymentAttempt
		transitioned bool
	)
	err := r.store.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		a, err := getAttempt(b, id)
		if err != nil || a == nil {
			return err
		}
		result = a
		if a.Status != domain.AttemptStatusPending {
			return nil
		}

		resolvedAt := at
		a.Status = status
		a.ResolvedAt = &resolvedAt
		transitioned = true
		return putAttempt(b, a)
	})
	if err != nil {
		return nil, false, err
	}
	return result, transitioned, nil
}

func getAttempt(b *bbolt.Bucket, id string) (*domain.PaymentAttempt, error) {
	v := b.Get([]byte(id))
	if v == nil {
		return nil, nil
	}
	var a domain.PaymentAttempt
	if err := json.Unmarshal(v, &a); err != nil {
		return nil, fmt.Errorf("decode payment attempt %s: %w", id, err)
	}
	return &a, nil
}

func putAttempt(b *bbolt.Bucket, a *domain.PaymentAttempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode payment attempt %s: %w", a.ID, err)
	}
	return b.Put([]byte(a.ID), data)
}
