package dto

import (
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
)

// CreateInvoiceRequest is the request body for invoice creation. Presence
// and format rules live in the validation layer, not in binding tags.
type CreateInvoiceRequest struct {
	ID          string  `json:"id"`
	CustomerID  string  `json:"customer_id"`
	Currency    string  `json:"currency"`
	AmountMinor *int64  `json:"amount_minor"`
	DueDateISO  *string `json:"due_date_iso"`
	Status      *string `json:"status,omitempty"`
}

// ToPort converts the body into the service request.
func (r CreateInvoiceRequest) ToPort() ports.CreateInvoiceRequest {
	return ports.CreateInvoiceRequest{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Currency:    r.Currency,
		AmountMinor: r.AmountMinor,
		DueDateISO:  r.DueDateISO,
		Status:      r.Status,
	}
}

// CreatePaymentAttemptRequest is the request body for POST /payments.
type CreatePaymentAttemptRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// InvoiceResponse is the response body for a single invoice.
type InvoiceResponse struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	Currency    string `json:"currency"`
	AmountMinor int64  `json:"amount_minor"`
	DueDateISO  string `json:"due_date_iso"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// InvoiceListResponse wraps one page of invoices. NextCursor is null when the
// listing is exhausted.
type InvoiceListResponse struct {
	Items      []InvoiceResponse `json:"items"`
	NextCursor *string           `json:"next_cursor"`
}

// PaymentAttemptResponse is the response body for a payment attempt.
type PaymentAttemptResponse struct {
	ID             string  `json:"id"`
	InvoiceID      string  `json:"invoice_id"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	ResolvedAt     *string `json:"resolved_at,omitempty"`
}

// FromInvoice converts domain.Invoice to its DTO.
func FromInvoice(inv *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		CustomerID:  inv.CustomerID,
		Currency:    inv.Currency,
		AmountMinor: inv.AmountMinor,
		DueDateISO:  formatTime(inv.DueDate),
		Status:      string(inv.Status),
		CreatedAt:   formatTime(inv.CreatedAt),
		UpdatedAt:   formatTime(inv.UpdatedAt),
	}
}

// FromInvoicePage converts a service page to its DTO.
func FromInvoicePage(page *ports.InvoicePage) InvoiceListResponse {
	items := make([]InvoiceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, FromInvoice(&page.Items[i]))
	}
	return InvoiceListResponse{Items: items, NextCursor: page.NextCursor}
}

// FromPaymentAttempt converts domain.PaymentAttempt to its DTO.
func FromPaymentAttempt(a *domain.PaymentAttempt) PaymentAttemptResponse {
	resp := PaymentAttemptResponse{
		ID:        a.ID,
		InvoiceID: a.InvoiceID,
		Status:    string(a.Status),
		CreatedAt: formatTime(a.CreatedAt),
	}
	if a.IdempotencyKey != "" {
		key := a.IdempotencyKey
		resp.IdempotencyKey = &key
	}
	if a.ResolvedAt != nil {
		s := formatTime(*a.ResolvedAt)
		resp.ResolvedAt = &s
	}
	return resp
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
