package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"

	bbolt "go.etcd.io/bbolt"
)

// invoiceRecord is the stored form of an invoice; domain.Invoice hides Seq from JSON.
type invoiceRecord struct {
	domain.Invoice
	Seq int64 `json:"seq"`
}

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	store *Store
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(store *Store) *InvoiceRepo {
	return &InvoiceRepo{store: store}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	return r.store.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInvoices)
		if b.Get([]byte(inv.ID)) != nil {
			return ports.ErrDuplicate
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next invoice sequence: %w", err)
		}
		inv.Seq = int64(seq)

		if err := putInvoice(b, inv); err != nil {
			return err
		}
		return tx.Bucket(bucketInvoiceOrder).Put(itob(seq), []byte(inv.ID))
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := r.store.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		inv, err = getInvoice(tx.Bucket(bucketInvoices), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepo) List(ctx context.Context, afterSeq int64, limit int) ([]domain.Invoice, error) {
	items := make([]domain.Invoice, 0, limit)
	err := r.store.view(ctx, func(tx *bbolt.Tx) error {
		invoices := tx.Bucket(bucketInvoices)
		c := tx.Bucket(bucketInvoiceOrder).Cursor()

		for k, v := c.Seek(itob(uint64(afterSeq) + 1)); k != nil && len(items) < limit; k, v = c.Next() {
			inv, err := getInvoice(invoices, string(v))
			if err != nil {
				return err
			}
			if inv == nil {
				return fmt.Errorf("invoice_order points at missing invoice %s", v)
			}
			items = append(items, *inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *InvoiceRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	paid := false
	err := r.store.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInvoices)
		inv, err := getInvoice(b, id)
		if err != nil || inv == nil || inv.Status != domain.InvoiceStatusUnpaid {
			return err
		}
		inv.Status = domain.InvoiceStatusPaid
		inv.UpdatedAt = time.Now().UTC()
		paid = true
		return putInvoice(b, inv)
	})
	if err != nil {
		return false, err
	}
	return paid, nil
}

func getInvoice(b *bbolt.Bucket, id string) (*domain.Invoice, error) {
	v := b.Get([]byte(id))
	if v == nil {
		return nil, nil
	}
	var rec invoiceRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode invoice %s: %w", id, err)
	}
	rec.Invoice.Seq = rec.Seq
	return &rec.Invoice, nil
}

func putInvoice(b *bbolt.Bucket, inv *domain.Invoice) error {
	data, err := json.Marshal(invoiceRecord{Invoice: *inv, Seq: inv.Seq})
	if err != nil {
		return fmt.Errorf("encode invoice %s: %w", inv.ID, err)
	}
	return b.Put([]byte(inv.ID), data)
}
