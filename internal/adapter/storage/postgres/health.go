package postgres

import (
	"context"
	"fmt"

	"invoice-payment-service/internal/core/ports"
)

// HealthCheck reports whether the pool can still reach the invoices database.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Name() string { return ports.DependencyPostgres }

// Ping runs a trivial query through the pool.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}
