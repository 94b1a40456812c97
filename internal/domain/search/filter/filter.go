package filter

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/shelf/internal/domain/product"
)

// PriceRange is an inclusive [min, max] price constraint.
type PriceRange struct {
	min float64
	max float64
}

// NewPriceRange validates and creates a PriceRange.
// A range with min > max is valid and matches nothing.
func NewPriceRange(lo, hi float64) (PriceRange, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return PriceRange{}, fmt.Errorf("price range bounds must be numbers")
	}
	return PriceRange{min: lo, max: hi}, nil
}

// Min returns the inclusive lower bound.
func (r PriceRange) Min() float64 { return r.min }

// Max returns the inclusive upper bound.
func (r PriceRange) Max() float64 { return r.max }

// Contains reports whether price lies within the range, bounds included.
func (r PriceRange) Contains(price float64) bool {
	return r.min <= price && price <= r.max
}

// Filters is a sparse set of optional constraints.
// A nil dimension places no constraint on results.
type Filters struct {
	priceRange *PriceRange
	category   *string
	rating     *float64
	inStock    *bool
}

// Option sets one filter dimension.
type Option func(*Filters)

// WithPriceRange constrains results to an inclusive price range.
func WithPriceRange(r PriceRange) Option {
	return func(f *Filters) { f.priceRange = &r }
}

// WithCategory records a category constraint.
func WithCategory(category string) Option {
	return func(f *Filters) { f.category = &category }
}

// WithRating records a minimum rating constraint.
func WithRating(rating float64) Option {
	return func(f *Filters) { f.rating = &rating }
}

// WithInStock records an availability constraint.
func WithInStock(inStock bool) Option {
	return func(f *Filters) { f.inStock = &inStock }
}

// New builds a Filters value from options.
func New(opts ...Option) Filters {
	var f Filters
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// PriceRange returns the price constraint, or nil.
func (f Filters) PriceRange() *PriceRange { return f.priceRange }

// Category returns the category constraint, or nil.
func (f Filters) Category() *string { return f.category }

// Rating returns the minimum rating constraint, or nil.
func (f Filters) Rating() *float64 { return f.rating }

// InStock returns the availability constraint, or nil.
func (f Filters) InStock() *bool { return f.inStock }

// IsEmpty reports whether no dimension is set.
func (f Filters) IsEmpty() bool {
	return f.priceRange == nil && f.category == nil && f.rating == nil && f.inStock == nil
}

// Matches applies every enforced constraint as a conjunction.
// Only the price range is enforced. Category, rating and stock are carried
// through the request untouched and never exclude a product.
func (f Filters) Matches(p product.Product) bool {
	if f.priceRange != nil && !f.priceRange.Contains(p.Price) {
		return false
	}
	return true
}

// Apply returns the products that satisfy Matches, preserving order.
func (f Filters) Apply(items []product.Product) []product.Product {
	if f.priceRange == nil {
		return items
	}
	out := make([]product.Product, 0, len(items))
	for _, p := range items {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
