package ports

import (
	"context"
	"errors"
	"time"

	"invoice-payment-service/internal/core/domain"
)

// ErrDuplicate is returned by repositories when a primary key already exists.
var ErrDuplicate = errors.New("duplicate record")

// InvoiceRepository defines persistence operations for invoices.
// Lookups return (nil, nil) when the record does not exist.
type InvoiceRepository interface {
	// Create stores a new invoice and assigns its Seq. Returns ErrDuplicate if the ID is taken.
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	// List returns up to limit invoices with Seq > afterSeq in creation order.
	List(ctx context.Context, afterSeq int64, limit int) ([]domain.Invoice, error)
	// MarkPaid moves an unpaid invoice to paid. Returns false if the invoice
	// was not unpaid (or does not exist); that is not an error.
	MarkPaid(ctx context.Context, id string) (bool, error)
}

// PaymentAttemptRepository defines persistence operations for payment attempts
// and the idempotency records that bind keys to them.
type PaymentAttemptRepository interface {
	// Create stores the attempt. When the attempt carries an idempotency key,
	// reserving the key and inserting the attempt happen atomically: if the key
	// is already bound, the existing attempt is returned with created=false.
	Create(ctx context.Context, attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error)
	GetByID(ctx context.Context, id string) (*domain.PaymentAttempt, error)
	GetByIdempotencyKey(ctx context.Context, invoiceID, key string) (*domain.PaymentAttempt, error)
	// Resolve moves a pending attempt to a terminal status. transitioned is
	// false when the attempt was already terminal; the stored attempt is
	// returned either way.
	Resolve(ctx context.Context, id string, status domain.AttemptStatus, at time.Time) (*domain.PaymentAttempt, bool, error)
}

// Transactor runs fn inside a storage transaction. Repositories called with
// the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopTransactor runs fn directly, for stores whose individual operations are
// already serialized.
type NoopTransactor struct{}

func (NoopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
