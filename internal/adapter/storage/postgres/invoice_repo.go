package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-payment-service/internal/core/domain"
	"invoice-payment-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, customer_id, currency, amount_minor, due_date, status, seq, created_at, updated_at`

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

// Create inserts a new invoice and fills in its sequence number.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (id, customer_id, currency, amount_minor, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`

	err := conn(ctx, r.pool).QueryRow(ctx, query,
		inv.ID, inv.CustomerID, inv.Currency, inv.AmountMinor,
		inv.DueDate, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.Seq)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// GetByID fetches an invoice by its ID.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}
	return inv, nil
}

// List returns invoices created after afterSeq, oldest first.
func (r *InvoiceRepo) List(ctx context.Context, afterSeq int64, limit int) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE seq > $1 ORDER BY seq ASC LIMIT $2`

	rows, err := conn(ctx, r.pool).Query(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice rows: %w", err)
	}
	return invoices, nil
}

// MarkPaid moves an unpaid invoice to paid.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	query := `UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`

	tag, err := conn(ctx, r.pool).Exec(ctx, query,
		id, domain.InvoiceStatusPaid, time.Now().UTC(), domain.InvoiceStatusUnpaid)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(
		&inv.ID, &inv.CustomerID, &inv.Currency, &inv.AmountMinor,
		&inv.DueDate, &inv.Status, &inv.Seq, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}
