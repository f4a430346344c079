// Package bolt persists invoices and payment attempts in a single BoltDB
// file. Bolt allows one writer at a time, so every mutation is serialized.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"invoice-payment-service/internal/core/ports"

	bbolt "go.etcd.io/bbolt"
)

var (
	bucketInvoices     = []byte("invoices")
	bucketInvoiceOrder = []byte("invoice_order") // seq -> invoice id
	bucketAttempts     = []byte("payment_attempts")
	bucketIdempotency  = []byte("idempotency") // invoice_id:key -> record
)

type txKey struct{}

// Store wraps a BoltDB database. It also implements ports.Transactor and
// ports.HealthChecker.
type Store struct {
	db   *bbolt.DB
	path string
}

// Open opens (or creates) the database at path and ensures all buckets exist.
func Open(path string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketInvoices, bucketInvoiceOrder, bucketAttempts, bucketIdempotency} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn inside one bolt write transaction. Repository calls made
// with the ctx passed to fn reuse it instead of opening their own.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok {
		return fn(ctx)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("bolt file: %w", err)
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketInvoices) == nil {
			return fmt.Errorf("bucket %s missing", bucketInvoices)
		}
		return nil
	})
}

func (s *Store) Name() string { return ports.DependencyBolt }

func (s *Store) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok {
		return fn(tx)
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok {
		return fn(tx)
	}
	return s.db.View(fn)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
