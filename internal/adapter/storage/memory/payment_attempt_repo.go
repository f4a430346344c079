package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
)

// PaymentAttemptRepo implements ports.PaymentAttemptRepository. The
// idempotency index lives under the same lock as the attempts, so a reserved
// key is never visible without its attempt.
type PaymentAttemptRepo struct {
	mu       sync.RWMutex
	attempts map[string]*domain.PaymentAttempt
	keys     map[string]domain.IdempotencyRecord // scoped key -> record
}

// NewPaymentAttemptRepo creates an empty PaymentAttemptRepo.
func NewPaymentAttemptRepo() *PaymentAttemptRepo {
	return &PaymentAttemptRepo{
		attempts: make(map[string]*domain.PaymentAttempt),
		keys:     make(map[string]domain.IdempotencyRecord),
	}
}

func (r *PaymentAttemptRepo) Create(_ context.Context, a *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attempts[a.ID]; ok {
		return nil, false, ports.ErrDuplicate
	}

	if a.IdempotencyKey != "" {
		scoped := domain.BuildIdempotencyKey(a.InvoiceID, a.IdempotencyKey)
		if rec, ok := r.keys[scoped]; ok {
			existing, ok := r.attempts[rec.PaymentAttemptID]
			if !ok {
				return nil, false, fmt.Errorf("idempotency record %s points at missing attempt %s", scoped, rec.PaymentAttemptID)
			}
			out := *existing
			return &out, false, nil
		}
		r.keys[scoped] = domain.IdempotencyRecord{
			InvoiceID:        a.InvoiceID,
			Key:              a.IdempotencyKey,
			PaymentAttemptID: a.ID,
			CreatedAt:        a.CreatedAt,
		}
	}

	stored := *a
	r.attempts[a.ID] = &stored
	out := stored
	return &out, true, nil
}

func (r *PaymentAttemptRepo) GetByID(_ context.Context, id string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (r *PaymentAttemptRepo) GetByIdempotencyKey(_ context.Context, invoiceID, key string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[domain.BuildIdempotencyKey(invoiceID, key)]
	if !ok {
		return nil, nil
	}
	a, ok := r.attempts[rec.PaymentAttemptID]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (r *PaymentAttemptRepo) Resolve(_ context.Context, id string, status domain.AttemptStatus, at time.Time) (*domain.PaymentAttempt, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[id]
	if !ok {
		return nil, false, nil
	}
	if a.Status != domain.AttemptStatusPending {
		out := *a
		return &out, false, nil
	}

	resolvedAt := at
	a.Status = status
	a.ResolvedAt = &resolvedAt
	out := *a
	return &out, true, nil
}
