package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectMySQL, DialectPostgres:
		return d, nil
	case "pq", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

// SQLAdapter stores orders and products in MySQL or Postgres. Queries are
// written with ? placeholders and rebound for Postgres.
type SQLAdapter struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLAdapter(db *sql.DB, dialect Dialect) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: dialect}
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SQLAdapter) rebind(query string) string {
	return rebind(a.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

const orderColumns = `id, contact_email, shipping_address, phone, subtotal, discount, coupon_code, total, status, created_at`

func (a *SQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, a.rebind(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		order.ID, order.ContactEmail, order.ShippingAddress, order.Phone,
		order.Subtotal, order.Discount, order.CouponCode, order.Total,
		string(order.Status), order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.LineItems {
		_, err = tx.ExecContext(ctx, a.rebind(`
			INSERT INTO order_items (order_id, position, product_ref, product_name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			order.ID, i, item.ProductRef, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (a *SQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := a.db.QueryRowContext(ctx, a.rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	orders := []domain.Order{*order}
	if err := a.attachLineItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateOrderStatus writes next only while the row still holds expected.
// A miss is either a vanished order or a concurrent writer; the two are told
// apart with a follow-up lookup.
func (a *SQLAdapter) UpdateOrderStatus(ctx context.Context, id string, expected, next domain.OrderStatus) error {
	result, err := a.db.ExecContext(ctx, a.rebind(`
		UPDATE orders
		SET status = ?
		WHERE id = ? AND status = ?`),
		string(next), id, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows > 0 {
		return nil
	}

	exists, err := a.exists(ctx, "orders", id)
	if err != nil {
		return err
	}
	if !exists {
		return port.ErrOrderNotFound
	}
	return port.ErrStatusConflict
}

func (a *SQLAdapter) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	return a.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE contact_email = ? ORDER BY created_at DESC, id`, email)
}

func (a *SQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return a.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
}

func (a *SQLAdapter) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := a.db.QueryContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := a.attachLineItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLineItems loads the items of every order in one query.
func (a *SQLAdapter) attachLineItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[string]int, len(orders))
	args := make([]any, 0, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		args = append(args, o.ID)
	}

	rows, err := a.db.QueryContext(ctx, a.rebind(`
		SELECT order_id, product_ref, product_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id IN (`+placeholders(len(args))+`)
		ORDER BY order_id, position`), args...)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.ProductRef, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].LineItems = append(orders[i].LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}

	for i := range orders {
		if orders[i].LineItems == nil {
			orders[i].LineItems = []domain.LineItem{}
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var status string
	err := row.Scan(
		&order.ID, &order.ContactEmail, &order.ShippingAddress, &order.Phone,
		&order.Subtotal, &order.Discount, &order.CouponCode, &order.Total,
		&status, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	return &order, nil
}

func (a *SQLAdapter) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := a.db.QueryRowContext(ctx, a.rebind(`SELECT 1 FROM `+table+` WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", table, err)
	}
	return true, nil
}
