package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/internal/core/ports/mocks"
	"invoice-payment-service/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentTestDeps struct {
	svc         *PaymentServiceImpl
	invoiceRepo *mocks.MockInvoiceRepository
	attemptRepo *mocks.MockPaymentAttemptRepository
	idempCache  *mocks.MockIdempotencyCache
	transactor  *mocks.MockTransactor
	ctrl        *gomock.Controller
}

func setupPaymentService(t *testing.T) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		invoiceRepo: mocks.NewMockInvoiceRepository(ctrl),
		attemptRepo: mocks.NewMockPaymentAttemptRepository(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		transactor:  mocks.NewMockTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewPaymentService(
		d.invoiceRepo, d.attemptRepo, d.idempCache, d.transactor, nil,
		PaymentOptions{AllowForcedOutcome: true, IdempotencyTTL: time.Hour},
		zerolog.Nop(),
	)
	return d
}

// expectTx makes the transactor run the callback inline.
func (d *paymentTestDeps) expectTx() {
	d.transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func unpaidInvoice(amount int64) *domain.Invoice {
	return &domain.Invoice{ID: "inv_001", AmountMinor: amount, Status: domain.InvoiceStatusUnpaid}
}

func pendingAttempt() *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		ID:        "pa_001",
		InvoiceID: "inv_001",
		Status:    domain.AttemptStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func resolvedAttempt(status domain.AttemptStatus) *domain.PaymentAttempt {
	a := pendingAttempt()
	now := time.Now().UTC()
	a.Status = status
	a.ResolvedAt = &now
	return a
}

// ==================== CreateAttempt Tests ====================

func TestPaymentService_CreateAttempt_NoKey(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(2500), nil)
	d.attemptRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error) {
			assert.Equal(t, domain.AttemptStatusPending, a.Status)
			assert.Empty(t, a.IdempotencyKey)
			return a, true, nil
		})

	attempt, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "inv_001", attempt.InvoiceID)
	assert.Equal(t, domain.AttemptStatusPending, attempt.Status)
}

func TestPaymentService_CreateAttempt_WithKey_Miss(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	scoped := domain.BuildIdempotencyKey("inv_001", "key-1")

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(2500), nil)
	// Redis cache miss
	d.idempCache.EXPECT().Get(ctx, scoped).Return("", nil)
	// Store index miss
	d.attemptRepo.EXPECT().GetByIdempotencyKey(ctx, "inv_001", "key-1").Return(nil, nil)
	d.attemptRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.PaymentAttempt) (*domain.PaymentAttempt, bool, error) {
			assert.Equal(t, "key-1", a.IdempotencyKey)
			return a, true, nil
		})
	// Cache in Redis
	d.idempCache.EXPECT().Set(ctx, scoped, gomock.Any(), time.Hour).Return(nil)

	_, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestPaymentService_CreateAttempt_RedisHit(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	scoped := domain.BuildIdempotencyKey("inv_001", "key-1")
	existing := pendingAttempt()

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(2500), nil)
	d.idempCache.EXPECT().Get(ctx, scoped).Return("pa_001", nil)
	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(existing, nil)

	attempt, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pa_001", attempt.ID)
}

func TestPaymentService_CreateAttempt_RedisDownFallsThroughToStore(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	scoped := domain.BuildIdempotencyKey("inv_001", "key-1")

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(2500), nil)
	d.idempCache.EXPECT().Get(ctx, scoped).Return("", errors.New("connection refused"))
	d.attemptRepo.EXPECT().GetByIdempotencyKey(ctx, "inv_001", "key-1").Return(pendingAttempt(), nil)
	d.idempCache.EXPECT().Set(ctx, scoped, "pa_001", time.Hour).Return(errors.New("connection refused"))

	attempt, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pa_001", attempt.ID)
}

func TestPaymentService_CreateAttempt_ReplayOnPaidInvoice(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	scoped := domain.BuildIdempotencyKey("inv_001", "key-1")

	paid := unpaidInvoice(2500)
	paid.Status = domain.InvoiceStatusPaid

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(paid, nil)
	d.idempCache.EXPECT().Get(ctx, scoped).Return("", nil)
	d.attemptRepo.EXPECT().GetByIdempotencyKey(ctx, "inv_001", "key-1").Return(resolvedAttempt(domain.AttemptStatusConfirmed), nil)
	d.idempCache.EXPECT().Set(ctx, scoped, "pa_001", time.Hour).Return(nil)

	attempt, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, domain.AttemptStatusConfirmed, attempt.Status)
}

func TestPaymentService_CreateAttempt_InvalidState(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	for _, status := range []domain.InvoiceStatus{domain.InvoiceStatusPaid, domain.InvoiceStatusExpired, domain.InvoiceStatusVoid} {
		inv := unpaidInvoice(2500)
		inv.Status = status
		d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(inv, nil)

		_, _, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001"})
		assertAppError(t, err, apperror.CodeInvalidState)
	}
}

func TestPaymentService_CreateAttempt_UnknownInvoice(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_missing").Return(nil, nil)

	_, _, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_missing"})
	assertAppError(t, err, apperror.CodeNotFound)
}

func TestPaymentService_CreateAttempt_MissingInvoiceID(t *testing.T) {
	d := setupPaymentService(t)

	_, _, err := d.svc.CreateAttempt(context.Background(), ports.CreateAttemptRequest{})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestPaymentService_CreateAttempt_ConcurrentWinnerReturned(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()
	scoped := domain.BuildIdempotencyKey("inv_001", "key-1")
	winner := pendingAttempt()

	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(2500), nil)
	d.idempCache.EXPECT().Get(ctx, scoped).Return("", nil)
	d.attemptRepo.EXPECT().GetByIdempotencyKey(ctx, "inv_001", "key-1").Return(nil, nil)
	// Another request reserved the key between the lookup and the insert.
	d.attemptRepo.EXPECT().Create(ctx, gomock.Any()).Return(winner, false, nil)
	d.idempCache.EXPECT().Set(ctx, scoped, "pa_001", time.Hour).Return(nil)

	attempt, created, err := d.svc.CreateAttempt(ctx, ports.CreateAttemptRequest{InvoiceID: "inv_001", IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "pa_001", attempt.ID)
}

// ==================== GetAttempt Tests ====================

func TestPaymentService_GetAttempt(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	a, err := d.svc.GetAttempt(ctx, "pa_001")
	require.NoError(t, err)
	assert.Equal(t, "pa_001", a.ID)

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_missing").Return(nil, nil)
	_, err = d.svc.GetAttempt(ctx, "pa_missing")
	assertAppError(t, err, apperror.CodeAttemptNotFound)
}

// ==================== ConfirmAttempt Tests ====================

func TestPaymentService_ConfirmAttempt_AmountRule(t *testing.T) {
	tests := []struct {
		amount int64
		status domain.AttemptStatus
	}{
		{4, domain.AttemptStatusConfirmed},
		{3, domain.AttemptStatusFailed},
		{107, domain.AttemptStatusFailed},
		{2500, domain.AttemptStatusConfirmed},
	}

	for _, tt := range tests {
		d := setupPaymentService(t)
		ctx := context.Background()

		d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
		d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(tt.amount), nil)
		d.expectTx()
		d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", tt.status, gomock.Any()).Return(resolvedAttempt(tt.status), true, nil)
		if tt.status == domain.AttemptStatusConfirmed {
			d.invoiceRepo.EXPECT().MarkPaid(ctx, "inv_001").Return(true, nil)
		}

		attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001"})
		require.NotNil(t, attempt, "amount %d", tt.amount)
		assert.Equal(t, tt.status, attempt.Status, "amount %d", tt.amount)
		if tt.status == domain.AttemptStatusFailed {
			assertAppError(t, err, apperror.CodePaymentFailed)
		} else {
			assert.NoError(t, err, "amount %d", tt.amount)
		}
	}
}

func TestPaymentService_ConfirmAttempt_ForcedOutcome(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	// 3 would fail by rule; forced success wins.
	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(3), nil)
	d.expectTx()
	d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", domain.AttemptStatusConfirmed, gomock.Any()).
		Return(resolvedAttempt(domain.AttemptStatusConfirmed), true, nil)
	d.invoiceRepo.EXPECT().MarkPaid(ctx, "inv_001").Return(true, nil)

	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: "success"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusConfirmed, attempt.Status)
}

func TestPaymentService_ConfirmAttempt_ForcedOutcomeIgnoredWhenDisabled(t *testing.T) {
	d := setupPaymentService(t)
	d.svc.opts.AllowForcedOutcome = false
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(3), nil)
	d.expectTx()
	d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", domain.AttemptStatusFailed, gomock.Any()).
		Return(resolvedAttempt(domain.AttemptStatusFailed), true, nil)

	// Even an unknown value is ignored.
	_, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: "bogus"})
	assertAppError(t, err, apperror.CodePaymentFailed)
}

func TestPaymentService_ConfirmAttempt_InvalidForcedOutcome(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)

	_, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: "maybe"})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestPaymentService_ConfirmAttempt_NotFound(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_missing").Return(nil, nil)

	_, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_missing"})
	assertAppError(t, err, apperror.CodeAttemptNotFound)
}

func TestPaymentService_ConfirmAttempt_NotFoundBeatsInvalidForcedOutcome(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_missing").Return(nil, nil)

	_, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_missing", ForcedOutcome: "maybe"})
	assertAppError(t, err, apperror.CodeAttemptNotFound)
}

func TestPaymentService_ConfirmAttempt_ReplayIgnoresInvalidForcedOutcome(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(resolvedAttempt(domain.AttemptStatusConfirmed), nil)

	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: "maybe"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusConfirmed, attempt.Status)
}

func TestPaymentService_ConfirmAttempt_AlreadyTerminal(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	// No invoice lookup, no transaction: the rule is not re-run.
	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(resolvedAttempt(domain.AttemptStatusConfirmed), nil)
	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: "fail"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusConfirmed, attempt.Status)

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_002").Return(resolvedAttempt(domain.AttemptStatusFailed), nil)
	attempt, err = d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_002", ForcedOutcome: "success"})
	assertAppError(t, err, apperror.CodePaymentFailed)
	assert.Equal(t, domain.AttemptStatusFailed, attempt.Status)
}

func TestPaymentService_ConfirmAttempt_LostRace(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(4), nil)
	d.expectTx()
	// A concurrent confirmation already failed the attempt; MarkPaid must not run.
	d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", domain.AttemptStatusConfirmed, gomock.Any()).
		Return(resolvedAttempt(domain.AttemptStatusFailed), false, nil)

	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001", ForcedOutcome: ""})
	assertAppError(t, err, apperror.CodePaymentFailed)
	assert.Equal(t, domain.AttemptStatusFailed, attempt.Status)
}

func TestPaymentService_ConfirmAttempt_InvoiceAlreadyPaid(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(4), nil)
	d.expectTx()
	d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", domain.AttemptStatusConfirmed, gomock.Any()).
		Return(resolvedAttempt(domain.AttemptStatusConfirmed), true, nil)
	d.invoiceRepo.EXPECT().MarkPaid(ctx, "inv_001").Return(false, nil)

	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001"})
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStatusConfirmed, attempt.Status)
}

func TestPaymentService_ConfirmAttempt_TxError(t *testing.T) {
	d := setupPaymentService(t)
	ctx := context.Background()

	d.attemptRepo.EXPECT().GetByID(ctx, "pa_001").Return(pendingAttempt(), nil)
	d.invoiceRepo.EXPECT().GetByID(ctx, "inv_001").Return(unpaidInvoice(4), nil)
	d.expectTx()
	d.attemptRepo.EXPECT().Resolve(ctx, "pa_001", domain.AttemptStatusConfirmed, gomock.Any()).
		Return(resolvedAttempt(domain.AttemptStatusConfirmed), true, nil)
	d.invoiceRepo.EXPECT().MarkPaid(ctx, "inv_001").Return(false, errors.New("connection reset"))

	attempt, err := d.svc.ConfirmAttempt(ctx, ports.ConfirmAttemptRequest{AttemptID: "pa_001"})
	assert.Nil(t, attempt)
	assertAppError(t, err, apperror.CodeInternal)
}
