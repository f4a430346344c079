package validation

import (
	"testing"
	"time"

	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

func validInvoice() ports.CreateInvoiceRequest {
	return ports.CreateInvoiceRequest{
		ID:          "inv_001",
		CustomerID:  "c_001",
		Currency:    "AED",
		AmountMinor: int64Ptr(1293),
		DueDateISO:  strPtr("2030-01-02T03:04:05.678Z"),
		Status:      strPtr("unpaid"),
	}
}

func TestStruct_ValidInvoice(t *testing.T) {
	assert.NoError(t, Struct(validInvoice()))

	req := validInvoice()
	req.Status = nil
	req.AmountMinor = int64Ptr(0)
	req.DueDateISO = strPtr("2020-01-01T00:00:00+04:00")
	assert.NoError(t, Struct(req))
}

func TestStruct_InvalidInvoice(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ports.CreateInvoiceRequest)
		field  string
	}{
		{"missing id", func(r *ports.CreateInvoiceRequest) { r.ID = "" }, "id"},
		{"unsafe id", func(r *ports.CreateInvoiceRequest) { r.ID = "inv/001" }, "id"},
		{"missing customer", func(r *ports.CreateInvoiceRequest) { r.CustomerID = "" }, "customer_id"},
		{"missing currency", func(r *ports.CreateInvoiceRequest) { r.Currency = "" }, "currency"},
		{"unknown currency", func(r *ports.CreateInvoiceRequest) { r.Currency = "ZZZ" }, "currency"},
		{"missing amount", func(r *ports.CreateInvoiceRequest) { r.AmountMinor = nil }, "amount_minor"},
		{"negative amount", func(r *ports.CreateInvoiceRequest) { r.AmountMinor = int64Ptr(-1) }, "amount_minor"},
		{"missing due date", func(r *ports.CreateInvoiceRequest) { r.DueDateISO = nil }, "due_date_iso"},
		{"bad due date", func(r *ports.CreateInvoiceRequest) { r.DueDateISO = strPtr("not-a-date") }, "due_date_iso"},
		{"date without zone", func(r *ports.CreateInvoiceRequest) { r.DueDateISO = strPtr("2030-01-02T03:04:05") }, "due_date_iso"},
		{"non-unpaid status", func(r *ports.CreateInvoiceRequest) { r.Status = strPtr("paid") }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validInvoice()
			tt.mutate(&req)

			err := Struct(req)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			require.Len(t, appErr.Details, 1)
			assert.Equal(t, tt.field, appErr.Details[0].Field)
			assert.Contains(t, appErr.Message, tt.field)
		})
	}
}

func TestStruct_MultipleViolations(t *testing.T) {
	err := Struct(ports.CreateInvoiceRequest{})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Request validation failed", appErr.Message)
	assert.Len(t, appErr.Details, 5)
}

func TestStruct_AttemptRequest(t *testing.T) {
	assert.NoError(t, Struct(ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "k1"}))
	assert.Error(t, Struct(ports.CreateAttemptRequest{}))

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'k'
	}
	err := Struct(ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: string(long)})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "idempotency_key", appErr.Details[0].Field)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2030-01-02T03:04:05.678Z")
	require.NoError(t, err)
	assert.Equal(t, 2030, ts.Year())
	assert.Equal(t, 678000000, ts.Nanosecond())

	_, err = ParseTimestamp("tomorrow")
	assert.Error(t, err)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2030-05-01T14:00:00+04:00", time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2030-05-01T14:00:00", time.Date(2030, 5, 1, 14, 0, 0, 0, time.UTC)},
		{"2030-05-01T14:00:00.25", time.Date(2030, 5, 1, 14, 0, 0, 250000000, time.UTC)},
		{"2030-05-01T14:00", time.Date(2030, 5, 1, 14, 0, 0, 0, time.UTC)},
		{"2030-05-01", time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts), "got %s", ts)
		})
	}

	for _, raw := range []string{"", "2030-13-01", "2030-05-01 14:00:00", "01/05/2030"} {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, raw)
	}
}
