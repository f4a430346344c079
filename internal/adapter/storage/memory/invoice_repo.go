// Package memory keeps invoices and payment attempts in process memory. Each
// repository guards its maps with its own lock, so every mutation is
// serialized per store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"
)

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	mu       sync.RWMutex
	invoices map[string]*domain.Invoice
	order    []string // IDs in creation order
	seq      int64
}

// NewInvoiceRepo creates an empty InvoiceRepo.
func NewInvoiceRepo() *InvoiceRepo {
	return &InvoiceRepo{invoices: make(map[string]*domain.Invoice)}
}

func (r *InvoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[inv.ID]; ok {
		return ports.ErrDuplicate
	}
	r.seq++
	inv.Seq = r.seq

	stored := *inv
	r.invoices[inv.ID] = &stored
	r.order = append(r.order, inv.ID)
	return nil
}

func (r *InvoiceRepo) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	out := *inv
	return &out, nil
}

func (r *InvoiceRepo) List(_ context.Context, afterSeq int64, limit int) ([]domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// order is sorted by Seq, so the first unseen invoice can be found by search.
	start := sort.Search(len(r.order), func(i int) bool {
		return r.invoices[r.order[i]].Seq > afterSeq
	})

	items := make([]domain.Invoice, 0, min(limit, len(r.order)-start))
	for _, id := range r.order[start:] {
		if len(items) == limit {
			break
		}
		items = append(items, *r.invoices[id])
	}
	return items, nil
}

func (r *InvoiceRepo) MarkPaid(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invoices[id]
	if !ok || inv.Status != domain.InvoiceStatusUnpaid {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusPaid
	inv.UpdatedAt = time.Now().UTC()
	return true, nil
}
