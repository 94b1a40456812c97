package product

import (
	"math"
	"slices"
)

// DefaultProductType is used when a row carries no product type.
const DefaultProductType = "default"

// URLPrefix is the display path template for product pages.
const URLPrefix = "/products/"

// Product is the unit of search and display.
type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"product_type"`
	Status      string   `json:"status"`
	Price       float64  `json:"price"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
}

// URLForHandle builds the display path for a source handle.
func URLForHandle(handle string) string {
	return URLPrefix + handle
}

// Catalog is an ordered, immutable sequence of products.
// Position in the catalog is the canonical order.
type Catalog struct {
	items []Product
}

// NewCatalog takes ownership of items. Callers must not mutate the slice afterwards.
func NewCatalog(items []Product) Catalog {
	return Catalog{items: items}
}

// Len returns the number of products.
func (c Catalog) Len() int { return len(c.items) }

// IsEmpty reports whether the catalog holds no products.
func (c Catalog) IsEmpty() bool { return len(c.items) == 0 }

// At returns the product at position i.
func (c Catalog) At(i int) Product { return c.items[i] }

// Products returns a copy of the products in canonical order.
func (c Catalog) Products() []Product {
	return slices.Clone(c.items)
}

// All iterates products in canonical order with their position.
func (c Catalog) All(yield func(int, Product) bool) {
	for i, p := range c.items {
		if !yield(i, p) {
			return
		}
	}
}

// Bounds holds the global price range of a catalog.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceBounds returns min/max over all valid prices.
// Both are 0 when the catalog is empty or has no valid price.
func PriceBounds(c Catalog) Bounds {
	var (
		b     Bounds
		found bool
	)
	for _, p := range c.items {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		if !found {
			b = Bounds{Min: p.Price, Max: p.Price}
			found = true
			continue
		}
		b.Min = min(b.Min, p.Price)
		b.Max = max(b.Max, p.Price)
	}
	return b
}
