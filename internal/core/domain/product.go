package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryPrints    Category = "Prints"
	CategoryWorkshops Category = "Workshops"
	CategoryEquipment Category = "Equipment"
	CategoryBooks     Category = "Books"
	CategoryCalendars Category = "Calendars"
)

func Categories() []Category {
	return []Category{CategoryPrints, CategoryWorkshops, CategoryEquipment, CategoryBooks, CategoryCalendars}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Featured    bool            `json:"featured"`
	Rating      float64         `json:"rating"` // 0..5
	CreatedAt   time.Time       `json:"createdAt"`
}

type ProductSort string

const (
	SortNewest    ProductSort = ""
	SortPriceAsc  ProductSort = "price-asc"
	SortPriceDesc ProductSort = "price-desc"
	SortName      ProductSort = "name"
)

type ProductFilter struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string
	Sort     ProductSort
	Page     int
	Limit    int
}

func (f ProductFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type CatalogStats struct {
	TotalProducts int             `json:"totalProducts"`
	TotalStock    int             `json:"totalStock"`
	Categories    []CategoryCount `json:"categories"`
}
