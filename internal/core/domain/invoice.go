package domain

import "time"

// InvoiceStatus represents the payment lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusExpired InvoiceStatus = "expired"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// Valid reports whether s is one of the known invoice statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusExpired, InvoiceStatusVoid:
		return true
	}
	return false
}

// Invoice is a billing record for a customer. Everything except Status is
// immutable once stored.
type Invoice struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	Currency    string        `json:"currency"`
	AmountMinor int64         `json:"amount_minor"` // smallest currency unit
	DueDate     time.Time     `json:"due_date"`
	Status      InvoiceStatus `json:"status"`
	Seq         int64         `json:"-"` // creation order, assigned by the store
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPayable returns true if a new payment attempt may be opened against the invoice.
// A past due date does not change this; expiry is an explicit status transition.
func (i *Invoice) IsPayable() bool {
	return i.Status == InvoiceStatusUnpaid
}
