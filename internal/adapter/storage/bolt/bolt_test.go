package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newInvoice(id string, amount int64) *domain.Invoice {
	now := time.Now().UTC()
	return &domain.Invoice{
		ID:          id,
		CustomerID:  "cust_1",
		Currency:    "USD",
		AmountMinor: amount,
		DueDate:     now.Add(24 * time.Hour),
		Status:      domain.InvoiceStatusUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newAttempt(invoiceID, key string) *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		ID:             domain.NewAttemptID(),
		InvoiceID:      invoiceID,
		IdempotencyKey: key,
		Status:         domain.AttemptStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestInvoiceRepo_CreateAndGet(t *testing.T) {
	repo := NewInvoiceRepo(newTestStore(t))
	ctx := context.Background()

	inv := newInvoice("inv_1", 1500)
	require.NoError(t, repo.Create(ctx, inv))
	assert.Equal(t, int64(1), inv.Seq)

	got, err := repo.GetByID(ctx, "inv_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, int64(1500), got.AmountMinor)
	assert.Equal(t, int64(1), got.Seq)
	assert.True(t, inv.DueDate.Equal(got.DueDate))

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInvoiceRepo_CreateDuplicate(t *testing.T) {
	repo := NewInvoiceRepo(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newInvoice("inv_1", 100)))
	err := repo.Create(ctx, newInvoice("inv_1", 999))
	assert.ErrorIs(t, err, ports.ErrDuplicate)

	got, err := repo.GetByID(ctx, "inv_1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.AmountMinor)
}

func TestInvoiceRepo_List(t *testing.T) {
	repo := NewInvoiceRepo(newTestStore(t))
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b", "e", "d"} {
		require.NoError(t, repo.Create(ctx, newInvoice(id, 10)))
	}

	page, err := repo.List(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{page[0].ID, page[1].ID, page[2].ID})

	rest, err := repo.List(ctx, page[2].Seq, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "e", rest[0].ID)
	assert.Equal(t, "d", rest[1].ID)

	empty, err := repo.List(ctx, rest[1].Seq, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInvoiceRepo_MarkPaid(t *testing.T) {
	repo := NewInvoiceRepo(newTestStore(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newInvoice("inv_1", 100)))

	ok, err := repo.MarkPaid(ctx, "inv_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaid(ctx, "inv_1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkPaid(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, "inv_1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, got.Status)
}

func TestPaymentAttemptRepo_IdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	repo := NewPaymentAttemptRepo(store)
	ctx := context.Background()

	first, created, err := repo.Create(ctx, newAttempt("inv_1", "key-1"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Create(ctx, newAttempt("inv_1", "key-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Same key on another invoice is a different scope.
	other, created, err := repo.Create(ctx, newAttempt("inv_2", "key-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	byKey, err := repo.GetByIdempotencyKey(ctx, "inv_1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, first.ID, byKey.ID)

	none, err := repo.GetByIdempotencyKey(ctx, "inv_1", "other")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPaymentAttemptRepo_CreateWithoutKey(t *testing.T) {
	repo := NewPaymentAttemptRepo(newTestStore(t))
	ctx := context.Background()

	a, created, err := repo.Create(ctx, newAttempt("inv_1", ""))
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := repo.Create(ctx, newAttempt("inv_1", ""))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.IdempotencyKey)
	assert.Nil(t, got.ResolvedAt)
}

func TestPaymentAttemptRepo_ConcurrentSameKey(t *testing.T) {
	repo := NewPaymentAttemptRepo(newTestStore(t))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		idsMu   sync.Mutex
		seenIDs = map[string]struct{}{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, created, err := repo.Create(ctx, newAttempt("inv_1", "race"))
			if !assert.NoError(t, err) {
				return
			}
			if created {
				wins.Add(1)
			}
			idsMu.Lock()
			seenIDs[a.ID] = struct{}{}
			idsMu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, seenIDs, 1)
}

func TestPaymentAttemptRepo_ResolveOnce(t *testing.T) {
	repo := NewPaymentAttemptRepo(newTestStore(t))
	ctx := context.Background()

	a, _, err := repo.Create(ctx, newAttempt("inv_1", ""))
	require.NoError(t, err)

	at := time.Now().UTC()
	resolved, transitioned, err := repo.Resolve(ctx, a.ID, domain.AttemptStatusConfirmed, at)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, domain.AttemptStatusConfirmed, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	again, transitioned, err := repo.Resolve(ctx, a.ID, domain.AttemptStatusFailed, at.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, domain.AttemptStatusConfirmed, again.Status)

	missing, transitioned, err := repo.Resolve(ctx, "pa_missing", domain.AttemptStatusConfirmed, at)
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Nil(t, missing)
}

func TestStore_ConcurrentConfirm(t *testing.T) {
	store := newTestStore(t)
	invoices := NewInvoiceRepo(store)
	attempts := NewPaymentAttemptRepo(store)
	ctx := context.Background()

	require.NoError(t, invoices.Create(ctx, newInvoice("inv_1", 1293)))
	a, _, err := attempts.Create(ctx, newAttempt("inv_1", "k1"))
	require.NoError(t, err)

	var (
		wg          sync.WaitGroup
		transitions atomic.Int32
		paid        atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(txCtx context.Context) error {
				_, ok, err := attempts.Resolve(txCtx, a.ID, domain.AttemptStatusConfirmed, time.Now().UTC())
				if err != nil || !ok {
					return err
				}
				transitions.Add(1)
				marked, err := invoices.MarkPaid(txCtx, "inv_1")
				if marked {
					paid.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), transitions.Load())
	assert.Equal(t, int32(1), paid.Load())

	inv, err := invoices.GetByID(ctx, "inv_1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
}

func TestStore_WithinTx(t *testing.T) {
	store := newTestStore(t)
	invoices := NewInvoiceRepo(store)
	attempts := NewPaymentAttemptRepo(store)
	ctx := context.Background()

	require.NoError(t, invoices.Create(ctx, newInvoice("inv_1", 100)))
	a, _, err := attempts.Create(ctx, newAttempt("inv_1", ""))
	require.NoError(t, err)

	t.Run("commit", func(t *testing.T) {
		err := store.WithinTx(ctx, func(txCtx context.Context) error {
			if _, _, err := attempts.Resolve(txCtx, a.ID, domain.AttemptStatusConfirmed, time.Now()); err != nil {
				return err
			}
			// Nested calls join the outer transaction.
			return store.WithinTx(txCtx, func(inner context.Context) error {
				_, err := invoices.MarkPaid(inner, "inv_1")
				return err
			})
		})
		require.NoError(t, err)

		inv, err := invoices.GetByID(ctx, "inv_1")
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	})

	t.Run("rollback", func(t *testing.T) {
		require.NoError(t, invoices.Create(ctx, newInvoice("inv_2", 100)))
		boom := errors.New("boom")

		err := store.WithinTx(ctx, func(txCtx context.Context) error {
			if _, err := invoices.MarkPaid(txCtx, "inv_2"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		inv, err := invoices.GetByID(ctx, "inv_2")
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusUnpaid, inv.Status)
	})
}

func TestStore_Health(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, ports.DependencyBolt, store.Name())
	assert.NoError(t, store.Ping(context.Background()))
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, NewInvoiceRepo(s).Create(context.Background(), newInvoice("inv_1", 100)))
	require.NoError(t, s.Close())

	s, err = Open(path, time.Second)
	require.NoError(t, err)
	defer s.Close()

	repo := NewInvoiceRepo(s)
	got, err := repo.GetByID(context.Background(), "inv_1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Sequence continues after reopen.
	inv := newInvoice("inv_2", 100)
	require.NoError(t, repo.Create(context.Background(), inv))
	assert.Equal(t, int64(2), inv.Seq)
}
