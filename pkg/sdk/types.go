package shelf

import (
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
	"github.com/kailas-cloud/shelf/internal/fuzzy"
)

// Product is one catalog entry.
type Product = product.Product

// Bounds is the catalog price span.
type Bounds = product.Bounds

// SortKey orders search results.
type SortKey = sortkey.Key

// Supported sort keys. Any other value leaves relevance order.
const (
	Relevance = sortkey.Relevance
	PriceAsc  = sortkey.PriceAsc
	PriceDesc = sortkey.PriceDesc
	NameAsc   = sortkey.NameAsc
	NameDesc  = sortkey.NameDesc
)

// Weights are per-field relevance multipliers.
type Weights struct {
	Title       float64
	Description float64
	Tags        float64
	Vendor      float64
	ProductType float64
}

// DefaultWeights favors title matches.
func DefaultWeights() Weights {
	w := fuzzy.DefaultWeights()
	return Weights(w)
}

func (w Weights) toFuzzy() fuzzy.Weights {
	return fuzzy.Weights(w)
}

// Result is one answered search.
type Result struct {
	// Seq identifies the Live dispatch this result answers. Zero for Search.
	Seq         uint64
	Products    []Product
	Suggestions []string
}
