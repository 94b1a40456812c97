package search

import (
	"context"

	"github.com/kailas-cloud/shelf/internal/domain/product"
)

// Matcher answers approximate text queries, best match first.
type Matcher interface {
	Search(ctx context.Context, query string) ([]product.Product, error)
}
