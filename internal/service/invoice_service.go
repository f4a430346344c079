package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/internal/core/validation"
	"invoice-payment-service/pkg/apperror"
	"invoice-payment-service/pkg/metrics"
	"invoice-payment-service/pkg/pagination"

	"github.com/rs/zerolog"
)

// InvoiceServiceImpl implements ports.InvoiceService.
type InvoiceServiceImpl struct {
	invoiceRepo ports.InvoiceRepository
	metrics     *metrics.PaymentMetrics
	log         zerolog.Logger
}

// NewInvoiceService creates a new InvoiceServiceImpl. m may be nil.
func NewInvoiceService(invoiceRepo ports.InvoiceRepository, m *metrics.PaymentMetrics, log zerolog.Logger) *InvoiceServiceImpl {
	return &InvoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		metrics:     m,
		log:         log,
	}
}

// CreateInvoice validates the payload and stores a new unpaid invoice.
func (s *InvoiceServiceImpl) CreateInvoice(ctx context.Context, req ports.CreateInvoiceRequest) (*domain.Invoice, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	dueDate, err := validation.ParseTimestamp(*req.DueDateISO)
	if err != nil {
		return nil, apperror.Validation("due_date_iso must be an ISO-8601 timestamp",
			apperror.FieldViolation{Field: "due_date_iso", Reason: "must be an ISO-8601 timestamp"})
	}

	now := time.Now().UTC()
	inv := &domain.Invoice{
		ID:          req.ID,
		CustomerID:  req.CustomerID,
		Currency:    req.Currency,
		AmountMinor: *req.AmountMinor,
		DueDate:     dueDate.UTC(),
		Status:      domain.InvoiceStatusUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrDuplicateID("invoice", req.ID)
		}
		return nil, apperror.InternalError(fmt.Errorf("create invoice: %w", err))
	}

	s.metrics.IncInvoiceCreated()
	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("customer_id", inv.CustomerID).
		Int64("amount_minor", inv.AmountMinor).
		Str("currency", inv.Currency).
		Msg("invoice created")

	return inv, nil
}

// GetInvoice returns the current state of an invoice.
func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get invoice: %w", err))
	}
	if inv == nil {
		return nil, apperror.ErrNotFound("Invoice")
	}
	return inv, nil
}

// ListInvoices returns one page of invoices in creation order.
func (s *InvoiceServiceImpl) ListInvoices(ctx context.Context, params pagination.Params) (*ports.InvoicePage, error) {
	afterSeq, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperror.Validation("cursor is invalid", apperror.FieldViolation{Field: "cursor", Reason: "is invalid"})
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.invoiceRepo.List(ctx, afterSeq, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list invoices: %w", err))
	}

	page := &ports.InvoicePage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		next := pagination.EncodeCursor(page.Items[limit-1].Seq)
		page.NextCursor = &next
	}
	return page, nil
}
