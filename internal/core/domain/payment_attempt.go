package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus represents the lifecycle state of a payment attempt.
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "pending"
	AttemptStatusConfirmed AttemptStatus = "confirmed"
	AttemptStatusFailed    AttemptStatus = "failed"
)

const attemptIDPrefix = "pa_"

// PaymentAttempt is one try at settling an invoice. Its status moves from
// pending to confirmed or failed exactly once.
type PaymentAttempt struct {
	ID             string        `json:"id"`
	InvoiceID      string        `json:"invoice_id"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
	Status         AttemptStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// NewAttemptID generates a system-assigned attempt identifier.
func NewAttemptID() string {
	return attemptIDPrefix + uuid.NewString()
}

// IsTerminal returns true if the attempt has already been confirmed or failed.
func (a *PaymentAttempt) IsTerminal() bool {
	return a.Status == AttemptStatusConfirmed || a.Status == AttemptStatusFailed
}
