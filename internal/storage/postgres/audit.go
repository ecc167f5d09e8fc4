package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdora/order-backend/internal/domain/order"
)

const (
	appendAuditSQL = `INSERT INTO order_audit (id, order_id, item_index, actor, old_status, new_status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listAuditByOrderSQL = `SELECT id, order_id, item_index, actor, old_status, new_status, created_at
	FROM order_audit WHERE order_id = $1 ORDER BY created_at`
)

var _ order.AuditLog = (*AuditLog)(nil)

// AuditLog stores administrative override records in PostgreSQL.
type AuditLog struct {
	pool *pgxpool.Pool
}

// NewAuditLog returns an AuditLog that uses the given pool.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Append writes a single audit entry.
func (l *AuditLog) Append(ctx context.Context, e order.AuditEntry) error {
	_, err := l.pool.Exec(ctx, appendAuditSQL,
		e.ID, e.OrderID, e.ItemIndex, e.Actor,
		string(e.OldStatus), string(e.NewStatus), e.At,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry for order %s: %w", e.OrderID, err)
	}
	return nil
}

// ListByOrder returns all audit entries for an order, oldest first.
func (l *AuditLog) ListByOrder(ctx context.Context, orderID string) ([]order.AuditEntry, error) {
	rows, err := l.pool.Query(ctx, listAuditByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var entries []order.AuditEntry
	for rows.Next() {
		var (
			e                    order.AuditEntry
			oldStatus, newStatus string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ItemIndex, &e.Actor, &oldStatus, &newStatus, &e.At); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.OldStatus = order.ItemStatus(oldStatus)
		e.NewStatus = order.ItemStatus(newStatus)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
