package domain

import "time"

// IdempotencyRecord binds a caller-supplied key to the first attempt created
// with it. Keys are scoped per invoice and never updated.
type IdempotencyRecord struct {
	InvoiceID        string    `json:"invoice_id"`
	Key              string    `json:"key"`
	PaymentAttemptID string    `json:"payment_attempt_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// BuildIdempotencyKey constructs the scoped key format "invoice_id:key".
func BuildIdempotencyKey(invoiceID, key string) string {
	return invoiceID + ":" + key
}
