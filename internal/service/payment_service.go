package service

import (
	"context"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/internal/core/validation"
	"invoice-payment-service/pkg/apperror"
	"invoice-payment-service/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

// PaymentOptions tunes PaymentServiceImpl behaviour.
type PaymentOptions struct {
	// AllowForcedOutcome honours ConfirmAttemptRequest.ForcedOutcome. When
	// false the amount rule always decides.
	AllowForcedOutcome bool
	// IdempotencyTTL is how long key lookups stay in the cache.
	IdempotencyTTL time.Duration
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	invoiceRepo ports.InvoiceRepository
	attemptRepo ports.PaymentAttemptRepository
	idempCache  ports.IdempotencyCache // optional
	transactor  ports.Transactor
	metrics     *metrics.PaymentMetrics
	opts        PaymentOptions
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl. idempCache and m may be nil.
func NewPaymentService(
	invoiceRepo ports.InvoiceRepository,
	attemptRepo ports.PaymentAttemptRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.Transactor,
	m *metrics.PaymentMetrics,
	opts PaymentOptions,
	log zerolog.Logger,
) *PaymentServiceImpl {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &PaymentServiceImpl{
		invoiceRepo: invoiceRepo,
		attemptRepo: attemptRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		metrics:     m,
		opts:        opts,
		log:         log,
	}
}

// CreateAttempt opens a pending payment attempt against an invoice. A reused
// idempotency key returns the original attempt with created=false.
func (s *PaymentServiceImpl) CreateAttempt(ctx context.Context, req ports.CreateAttemptRequest) (*domain.PaymentAttempt, bool, error) {
	if err := validation.Struct(req); err != nil {
		return nil, false, err
	}

	inv, err := s.invoiceRepo.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("get invoice: %w", err))
	}
	if inv == nil {
		return nil, false, apperror.ErrNotFound("Invoice")
	}

	// Key replays are answered before the state guard.
	if req.IdempotencyKey != "" {
		existing, err := s.findByKey(ctx, req.InvoiceID, req.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.metrics.IncAttempt(false)
			s.log.Info().
				Str("attempt_id", existing.ID).
				Str("invoice_id", existing.InvoiceID).
				Msg("payment attempt replayed from idempotency key")
			return existing, false, nil
		}
	}

	if !inv.IsPayable() {
		return nil, false, apperror.ErrInvalidState(fmt.Sprintf("Invoice is %s and cannot accept new payment attempts", inv.Status))
	}

	attempt := &domain.PaymentAttempt{
		ID:             domain.NewAttemptID(),
		InvoiceID:      inv.ID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.AttemptStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	stored, created, err := s.attemptRepo.Create(ctx, attempt)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("create payment attempt: %w", err))
	}

	if req.IdempotencyKey != "" {
		s.cacheKey(ctx, domain.BuildIdempotencyKey(inv.ID, req.IdempotencyKey), stored.ID)
	}

	s.metrics.IncAttempt(created)
	s.log.Info().
		Str("attempt_id", stored.ID).
		Str("invoice_id", stored.InvoiceID).
		Bool("created", created).
		Msg("payment attempt created")

	return stored, created, nil
}

// GetAttempt returns a payment attempt by ID.
func (s *PaymentServiceImpl) GetAttempt(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment attempt: %w", err))
	}
	if attempt == nil {
		return nil, apperror.ErrAttemptNotFound()
	}
	return attempt, nil
}

// ConfirmAttempt resolves a pending attempt through the outcome rule. An
// attempt that is already terminal is returned as is and the forced outcome
// is not looked at.
func (s *PaymentServiceImpl) ConfirmAttempt(ctx context.Context, req ports.ConfirmAttemptRequest) (*domain.PaymentAttempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, req.AttemptID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment attempt: %w", err))
	}
	if attempt == nil {
		return nil, apperror.ErrAttemptNotFound()
	}
	if attempt.IsTerminal() {
		return s.replayConfirmation(attempt)
	}

	forced := domain.ForcedOutcomeNone
	if s.opts.AllowForcedOutcome {
		forced, err = domain.ParseForcedOutcome(req.ForcedOutcome)
		if err != nil {
			return nil, apperror.Validation(`X-Mock-Outcome must be "success" or "fail"`,
				apperror.FieldViolation{Field: "X-Mock-Outcome", Reason: `must be "success" or "fail"`})
		}
	}

	inv, err := s.invoiceRepo.GetByID(ctx, attempt.InvoiceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get invoice: %w", err))
	}
	if inv == nil {
		return nil, apperror.InternalError(fmt.Errorf("attempt %s references missing invoice %s", attempt.ID, attempt.InvoiceID))
	}

	outcome := domain.DecideOutcome(inv.AmountMinor, forced)
	now := time.Now().UTC()

	var (
		resolved     *domain.PaymentAttempt
		transitioned bool
	)
	err = s.transactor.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		resolved, transitioned, err = s.attemptRepo.Resolve(txCtx, attempt.ID, outcome.AttemptStatus(), now)
		if err != nil {
			return fmt.Errorf("resolve attempt: %w", err)
		}
		if resolved == nil {
			return fmt.Errorf("attempt %s disappeared during confirmation", attempt.ID)
		}
		if !transitioned || resolved.Status != domain.AttemptStatusConfirmed {
			return nil
		}

		paid, err := s.invoiceRepo.MarkPaid(txCtx, inv.ID)
		if err != nil {
			return fmt.Errorf("mark invoice paid: %w", err)
		}
		if !paid {
			s.log.Warn().
				Str("invoice_id", inv.ID).
				Str("attempt_id", attempt.ID).
				Msg("invoice was no longer unpaid, status left unchanged")
		}
		return nil
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("confirm payment attempt: %w", err))
	}

	// Another confirmation won the race; report its result.
	if !transitioned {
		return s.replayConfirmation(resolved)
	}

	s.metrics.IncConfirmation(string(resolved.Status))
	s.log.Info().
		Str("attempt_id", resolved.ID).
		Str("invoice_id", inv.ID).
		Int64("amount_minor", inv.AmountMinor).
		Str("forced_outcome", string(forced)).
		Str("status", string(resolved.Status)).
		Msg("payment attempt resolved")

	return confirmationResult(resolved)
}

func (s *PaymentServiceImpl) replayConfirmation(attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, error) {
	s.metrics.IncConfirmation(metrics.ConfirmationReplayed)
	s.log.Debug().
		Str("attempt_id", attempt.ID).
		Str("status", string(attempt.Status)).
		Msg("payment attempt already resolved")
	return confirmationResult(attempt)
}

// confirmationResult attaches PAYMENT_FAILED to failed attempts.
func confirmationResult(attempt *domain.PaymentAttempt) (*domain.PaymentAttempt, error) {
	if attempt.Status == domain.AttemptStatusFailed {
		return attempt, apperror.ErrPaymentFailed()
	}
	return attempt, nil
}

// findByKey checks the cache first, then the authoritative store index.
func (s *PaymentServiceImpl) findByKey(ctx context.Context, invoiceID, key string) (*domain.PaymentAttempt, error) {
	scoped := domain.BuildIdempotencyKey(invoiceID, key)

	// Layer 1: Redis idempotency check
	if s.idempCache != nil {
		attemptID, err := s.idempCache.Get(ctx, scoped)
		if err != nil {
			s.log.Warn().Err(err).Str("key", scoped).Msg("redis idempotency check failed, falling through to store")
		}
		if attemptID != "" {
			attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("get cached payment attempt: %w", err))
			}
			if attempt != nil && attempt.InvoiceID == invoiceID {
				return attempt, nil
			}
		}
	}

	// Layer 2: store idempotency index
	attempt, err := s.attemptRepo.GetByIdempotencyKey(ctx, invoiceID, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if attempt != nil {
		s.cacheKey(ctx, scoped, attempt.ID)
	}
	return attempt, nil
}

// cacheKey stores the key mapping in Redis (best-effort).
func (s *PaymentServiceImpl) cacheKey(ctx context.Context, scoped, attemptID string) {
	if s.idempCache == nil {
		return
	}
	if err := s.idempCache.Set(ctx, scoped, attemptID, s.opts.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", scoped).Msg("failed to cache idempotency key in redis")
	}
}
