package intent

import (
	"context"
	"fmt"
	"log/slog"

	"queryguard/internal/domain"
)

// Executor runs a statement under role-tiered resource limits. The execution
// governor satisfies this.
type Executor interface {
	Execute(ctx context.Context, role domain.Role, sql string, args ...interface{}) (*domain.ExecutionResult, error)
}

// Prebuilt executes hand-authored parameterized queries for the canonical
// intents. These statements are already tenant-scoped and read-only, so they
// bypass generation and validation; only the execution governor wraps them.
type Prebuilt struct {
	logger *slog.Logger
	exec   Executor
}

// NewPrebuilt creates a Prebuilt runner over the given executor.
func NewPrebuilt(logger *slog.Logger, exec Executor) *Prebuilt {
	return &Prebuilt{
		logger: logger.With("component", "prebuilt_queries"),
		exec:   exec,
	}
}

const (
	sqlAggregateSales = `SELECT COUNT(*) AS order_count, COALESCE(SUM(total), 0) AS total_sales
FROM orders
WHERE tenant_id = ? AND created_at >= ? AND created_at < ?`

	sqlAverageTicket = `SELECT COALESCE(AVG(total), 0) AS average_ticket, COUNT(*) AS order_count
FROM orders
WHERE tenant_id = ? AND created_at >= ? AND created_at < ?`

	sqlTopProducts = `SELECT p.name AS product, SUM(oi.quantity) AS units_sold,
       SUM(oi.quantity * oi.unit_price) AS revenue
FROM order_items oi
JOIN orders o ON oi.order_id = o.id
JOIN products p ON oi.product_id = p.id
WHERE o.tenant_id = ? AND o.created_at >= ? AND o.created_at < ?
GROUP BY p.name
ORDER BY revenue DESC
LIMIT ?`

	sqlStaffRanking = `SELECT s.name AS staff_member, COUNT(o.id) AS orders_handled,
       COALESCE(SUM(o.total), 0) AS revenue
FROM orders o
JOIN staff s ON o.staff_id = s.id
WHERE o.tenant_id = ? AND o.created_at >= ? AND o.created_at < ?
GROUP BY s.name
ORDER BY revenue DESC`

	sqlReviewStats = `SELECT COUNT(*) AS review_count, COALESCE(AVG(rating), 0) AS average_rating,
       SUM(CASE WHEN rating >= 4 THEN 1 ELSE 0 END) AS positive_reviews
FROM reviews
WHERE tenant_id = ? AND created_at >= ? AND created_at < ?`
)

// Run executes the prebuilt query for the classification and returns the
// governed result together with the statement text for audit purposes.
func (p *Prebuilt) Run(ctx context.Context, tenantID string, role domain.Role, c Classification) (*domain.ExecutionResult, string, error) {
	var (
		query string
		args  []interface{}
	)

	base := []interface{}{tenantID, c.DateRange.Start, c.DateRange.End}
	switch c.Intent {
	case IntentAggregateSales:
		query, args = sqlAggregateSales, base
	case IntentAverageTicket:
		query, args = sqlAverageTicket, base
	case IntentTopProducts:
		query, args = sqlTopProducts, append(base, c.TopN)
	case IntentStaffRanking:
		query, args = sqlStaffRanking, base
	case IntentReviewStats:
		query, args = sqlReviewStats, base
	default:
		return nil, "", fmt.Errorf("no prebuilt query for intent %q", c.Intent)
	}

	res, err := p.exec.Execute(ctx, role, query, args...)
	if err != nil {
		return nil, query, err
	}

	p.logger.Debug("prebuilt query executed",
		"intent", string(c.Intent), "rows", res.RowCount)
	return res, query, nil
}
