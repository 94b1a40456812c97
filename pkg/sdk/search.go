package shelf

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
)

// SearchBuilder is a fluent builder for catalog queries.
type SearchBuilder struct {
	client *Client

	query   string
	sortKey SortKey
	opts    []filter.Option
	err     error
}

// Query sets the free text matched against every product field.
func (b *SearchBuilder) Query(q string) *SearchBuilder {
	b.query = q
	return b
}

// PriceRange keeps products priced within [lo, hi], bounds included.
func (b *SearchBuilder) PriceRange(lo, hi float64) *SearchBuilder {
	r, err := filter.NewPriceRange(lo, hi)
	if err != nil {
		b.err = err
		return b
	}
	b.opts = append(b.opts, filter.WithPriceRange(r))
	return b
}

// Category records a category constraint. It is carried but not enforced.
func (b *SearchBuilder) Category(category string) *SearchBuilder {
	b.opts = append(b.opts, filter.WithCategory(category))
	return b
}

// MinRating records a rating constraint. It is carried but not enforced.
func (b *SearchBuilder) MinRating(rating float64) *SearchBuilder {
	b.opts = append(b.opts, filter.WithRating(rating))
	return b
}

// InStock records an availability constraint. It is carried but not enforced.
func (b *SearchBuilder) InStock(inStock bool) *SearchBuilder {
	b.opts = append(b.opts, filter.WithInStock(inStock))
	return b
}

// Sort sets the result order.
func (b *SearchBuilder) Sort(key SortKey) *SearchBuilder {
	b.sortKey = key
	return b
}

// Do runs the query and waits for its results. It leaves the Live query
// state alone, so concurrent searches never supersede each other.
func (b *SearchBuilder) Do(ctx context.Context) (Result, error) {
	start := time.Now()
	res, err := b.do(ctx)
	b.client.obs.observe("search", start, err)
	return res, err
}

func (b *SearchBuilder) do(ctx context.Context) (Result, error) {
	if b.err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, b.err)
	}

	s := b.client.session
	items, err := s.Query(ctx, b.query, filter.New(b.opts...), b.sortKey)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}
	return Result{
		Products:    items,
		Suggestions: s.SuggestionsFor(items),
	}, nil
}
