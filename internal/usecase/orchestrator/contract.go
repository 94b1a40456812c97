package orchestrator

import (
	"context"

	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/request"
	"github.com/kailas-cloud/shelf/internal/usecase/search"
)

// Index is a built fuzzy index the orchestrator owns and eventually closes.
type Index interface {
	search.Matcher
	Close() error
}

// Builder constructs an index over a catalog.
type Builder func(catalog product.Catalog) (Index, error)

// Runner executes one query against an index.
type Runner interface {
	Run(ctx context.Context, m search.Matcher, catalog product.Catalog, req *request.Request) ([]product.Product, error)
}
