package ports

import (
	"context"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/pkg/pagination"
)

// IdempotencyCache is the Redis-layer idempotency lookup (fast path).
// It maps a scoped idempotency key to the payment attempt ID it created.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (string, error) // Returns "" on miss
	Set(ctx context.Context, key string, attemptID string, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// InvoiceService defines invoice business logic.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, params pagination.Params) (*InvoicePage, error)
}

// CreateInvoiceRequest holds raw invoice input. Pointer fields distinguish
// missing values from zero values.
type CreateInvoiceRequest struct {
	ID          string  `json:"id" validate:"required,max=128,safe_id"`
	CustomerID  string  `json:"customer_id" validate:"required,max=128"`
	Currency    string  `json:"currency" validate:"required,iso4217"`
	AmountMinor *int64  `json:"amount_minor" validate:"required,gte=0"`
	DueDateISO  *string `json:"due_date_iso" validate:"required,iso8601"`
	Status      *string `json:"status" validate:"omitempty,eq=unpaid"`
}

// InvoicePage is one page of invoices in creation order.
type InvoicePage struct {
	Items      []domain.Invoice
	NextCursor *string
}

// PaymentService defines payment attempt business logic.
type PaymentService interface {
	// CreateAttempt returns created=false when the idempotency key replayed an existing attempt.
	CreateAttempt(ctx context.Context, req CreateAttemptRequest) (*domain.PaymentAttempt, bool, error)
	GetAttempt(ctx context.Context, id string) (*domain.PaymentAttempt, error)
	// ConfirmAttempt resolves the attempt. A declined payment returns the
	// failed attempt together with a PAYMENT_FAILED error.
	ConfirmAttempt(ctx context.Context, req ConfirmAttemptRequest) (*domain.PaymentAttempt, error)
}

// CreateAttemptRequest holds input for a new payment attempt.
type CreateAttemptRequest struct {
	InvoiceID      string `json:"invoice_id" validate:"required,max=128"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=255"`
}

// ConfirmAttemptRequest holds input for confirming a payment attempt.
type ConfirmAttemptRequest struct {
	AttemptID     string
	ForcedOutcome string // "", "success" or "fail"
}
