package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	DefaultPageSize = 9
	MaxPageSize     = 100
	relatedLimit    = 3
)

type ProductPage struct {
	Products   []domain.Product `json:"products"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

type ProductDetail struct {
	Product *domain.Product  `json:"product"`
	Related []domain.Product `json:"related"`
}

type CatalogService struct {
	products port.ProductRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewCatalogService(products port.ProductRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		products: products,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizeFilter clamps paging and drops filter values that would match
// nothing useful, such as the "all" category.
func NormalizeFilter(f domain.ProductFilter) domain.ProductFilter {
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	f.Search = strings.TrimSpace(f.Search)

	switch f.Sort {
	case domain.SortPriceAsc, domain.SortPriceDesc, domain.SortName:
	default:
		f.Sort = domain.SortNewest
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) (*ProductPage, error) {
	filter = NormalizeFilter(filter)

	products, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, persistenceError("list products", err)
	}
	if products == nil {
		products = []domain.Product{}
	}

	return &ProductPage{
		Products:   products,
		Total:      total,
		Page:       filter.Page,
		TotalPages: (total + filter.Limit - 1) / filter.Limit,
	}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*ProductDetail, error) {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("load product", err)
	}

	related, err := s.products.RelatedProducts(ctx, product.Category, product.ID, relatedLimit)
	if err != nil {
		// Related products are decoration; the product itself is still served.
		s.logger.Warn("failed to load related products", zap.String("product_id", id), zap.Error(err))
	}
	if related == nil {
		related = []domain.Product{}
	}

	return &ProductDetail{Product: product, Related: related}, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.products.Categories(ctx)
	if err != nil {
		return nil, persistenceError("list categories", err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

func (s *CatalogService) Stats(ctx context.Context) (domain.CatalogStats, error) {
	stats, err := s.products.Stats(ctx)
	if err != nil {
		return domain.CatalogStats{}, persistenceError("catalog stats", err)
	}
	return stats, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := validateProduct(&product); err != nil {
		return nil, err
	}
	product.ID = uuid.NewString()
	product.CreatedAt = s.now().UTC()

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, persistenceError("create product", err)
	}
	return &product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, product domain.Product) (*domain.Product, error) {
	existing, err := s.products.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("load product", err)
	}

	if err := validateProduct(&product); err != nil {
		return nil, err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("update product", err)
	}
	return &product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return persistenceError("delete product", err)
	}
	return nil
}

var maxProductPrice = decimal.NewFromInt(1_000_000)

func validateProduct(p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Image = strings.TrimSpace(p.Image)
	p.Description = strings.TrimSpace(p.Description)

	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Image == "":
		return fmt.Errorf("%w: image is required", ErrInvalidProduct)
	case p.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	case !p.Price.Equal(p.Price.Round(2)):
		return fmt.Errorf("%w: price cannot have fractions of a cent", ErrInvalidProduct)
	case p.Price.GreaterThan(maxProductPrice):
		return fmt.Errorf("%w: price cannot exceed %s", ErrInvalidProduct, maxProductPrice)
	case !p.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	case p.Rating < 0 || p.Rating > 5:
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrInvalidProduct)
	}
	return nil
}
