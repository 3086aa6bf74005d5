package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const productColumns = `id, name, price, category, image, description, stock, featured, rating, created_at`

func (a *SQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := a.db.ExecContext(ctx, a.rebind(`
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Name, p.Price, string(p.Category), p.Image, p.Description,
		p.Stock, p.Featured, p.Rating, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (a *SQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := a.db.QueryRowContext(ctx, a.rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (a *SQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := a.db.ExecContext(ctx, a.rebind(`
		UPDATE products
		SET name = ?, price = ?, category = ?, image = ?, description = ?, stock = ?, featured = ?, rating = ?
		WHERE id = ?`),
		p.Name, p.Price, string(p.Category), p.Image, p.Description, p.Stock, p.Featured, p.Rating, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	// MySQL reports unchanged rows as unaffected.
	rows, _ := result.RowsAffected()
	if rows == 0 {
		exists, err := a.exists(ctx, "products", p.ID)
		if err != nil {
			return err
		}
		if !exists {
			return port.ErrProductNotFound
		}
	}
	return nil
}

func (a *SQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, a.rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrProductNotFound
	}
	return nil
}

func (a *SQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	where, args := productWhere(filter)

	var total int
	err := a.db.QueryRowContext(ctx, a.rebind(`SELECT COUNT(*) FROM products`+where), args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + productOrder(filter.Sort) + ` LIMIT ? OFFSET ?`
	products, err := a.queryProducts(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (a *SQLAdapter) RelatedProducts(ctx context.Context, category domain.Category, excludeID string, limit int) ([]domain.Product, error) {
	return a.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = ? AND id <> ?
		ORDER BY featured DESC, created_at DESC
		LIMIT ?`,
		string(category), excludeID, limit,
	)
}

func (a *SQLAdapter) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, domain.Category(c))
	}
	return categories, rows.Err()
}

func (a *SQLAdapter) Stats(ctx context.Context) (domain.CatalogStats, error) {
	var stats domain.CatalogStats
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(stock), 0) FROM products`).
		Scan(&stats.TotalProducts, &stats.TotalStock)
	if err != nil {
		return stats, fmt.Errorf("query product totals: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM products GROUP BY category ORDER BY category`)
	if err != nil {
		return stats, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	stats.Categories = []domain.CategoryCount{}
	for rows.Next() {
		var cc domain.CategoryCount
		var c string
		if err := rows.Scan(&c, &cc.Count); err != nil {
			return stats, fmt.Errorf("scan category count: %w", err)
		}
		cc.Category = domain.Category(c)
		stats.Categories = append(stats.Categories, cc)
	}
	return stats, rows.Err()
}

func (a *SQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := a.db.QueryContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var category string
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &category, &p.Image, &p.Description,
		&p.Stock, &p.Featured, &p.Rating, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = domain.Category(category)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// productWhere builds the WHERE clause shared by the count and page queries.
func productWhere(f domain.ProductFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func productOrder(sort domain.ProductSort) string {
	switch sort {
	case domain.SortPriceAsc:
		return " ORDER BY price ASC, id"
	case domain.SortPriceDesc:
		return " ORDER BY price DESC, id"
	case domain.SortName:
		return " ORDER BY name ASC, id"
	default:
		return " ORDER BY created_at DESC, id"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
