package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

type sampleProduct struct {
	name        string
	price       string
	category    domain.Category
	description string
	stock       int
	featured    bool
	rating      float64
}

var sampleCatalog = []sampleProduct{
	{"Mountain Majesty Print", "149.99", domain.CategoryPrints, "Mountain landscape captured at golden hour, printed on archival paper.", 25, true, 4.8},
	{"Forest Serenity Canvas", "199.99", domain.CategoryPrints, "Forest path through ancient trees on museum-quality canvas.", 15, true, 4.9},
	{"Wildlife Photography Workshop", "899.00", domain.CategoryWorkshops, "Five-day wildlife workshop covering tracking, composition and field ethics.", 8, true, 5.0},
	{"Sunset Over Lake Print", "129.99", domain.CategoryPrints, "Sunset reflected over a mountain lake. Available in multiple sizes.", 30, false, 4.7},
	{"Landscape Basics Workshop", "399.00", domain.CategoryWorkshops, "Two-day introduction to landscape photography.", 12, false, 4.6},
	{"Aurora Borealis Canvas", "249.99", domain.CategoryPrints, "Northern lights over Iceland. Limited edition canvas.", 10, true, 5.0},
	{"Desert Dawn Print", "119.99", domain.CategoryPrints, "First light over the desert.", 20, false, 4.5},
	{"Professional Camera Tripod", "299.99", domain.CategoryEquipment, "Carbon fiber tripod for landscape and wildlife work.", 15, false, 4.8},
	{"Nature Photography Guide Book", "39.99", domain.CategoryBooks, "Over 200 pages of nature photography technique.", 50, false, 4.7},
	{"ND Filter Set", "179.99", domain.CategoryEquipment, "Neutral density filters for long exposures: 3, 6 and 10 stop.", 25, false, 4.9},
	{"2025 Nature Calendar", "24.99", domain.CategoryCalendars, "Twelve months of award-winning nature photography.", 100, false, 4.6},
	{"Macro Lens 100mm", "599.99", domain.CategoryEquipment, "Macro lens for close detail work.", 8, false, 4.8},
	{"Advanced Composition Workshop", "599.00", domain.CategoryWorkshops, "Three-day workshop on composition and creative vision.", 10, false, 4.9},
	{"Coastal Sunrise Print", "139.99", domain.CategoryPrints, "Coastal sunrise with breaking waves.", 18, false, 4.7},
	{"Photography Field Guide", "29.99", domain.CategoryBooks, "Pocket reference for outdoor shooting.", 60, false, 4.5},
}

// SeedSampleCatalog inserts the sample catalog when no products exist yet and
// returns how many products were created.
func (s *CatalogService) SeedSampleCatalog(ctx context.Context) (int, error) {
	stats, err := s.products.Stats(ctx)
	if err != nil {
		return 0, persistenceError("catalog stats", err)
	}
	if stats.TotalProducts > 0 {
		return 0, nil
	}

	for i, sp := range sampleCatalog {
		p := domain.Product{
			Name:        sp.name,
			Price:       decimal.RequireFromString(sp.price),
			Category:    sp.category,
			Image:       "/images/" + strings.ToLower(strings.ReplaceAll(sp.name, " ", "-")) + ".jpg",
			Description: sp.description,
			Stock:       sp.stock,
			Featured:    sp.featured,
			Rating:      sp.rating,
		}
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return i, fmt.Errorf("seed %q: %w", sp.name, err)
		}
	}

	s.logger.Info("seeded sample catalog", zap.Int("products", len(sampleCatalog)))
	return len(sampleCatalog), nil
}
