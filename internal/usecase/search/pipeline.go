package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/request"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
	"github.com/kailas-cloud/shelf/internal/metrics"
)

// Pipeline composes match, filter and sort into one result sequence.
// It holds no per-query state and is safe for concurrent use.
type Pipeline struct {
	collation language.Tag
	logger    *zap.Logger
}

// New creates a pipeline that orders names by English collation rules.
func New(logger *zap.Logger) *Pipeline {
	return &Pipeline{collation: language.English, logger: logger}
}

// WithCollation sets the language used for name ordering.
func (p *Pipeline) WithCollation(tag language.Tag) *Pipeline {
	p.collation = tag
	return p
}

// Run executes the three stages in fixed order:
//  1. match: fuzzy search for a non-blank query, else the whole catalog
//  2. filter: enforced constraints as a conjunction
//  3. sort: stable ordering by the sort key, or none for relevance
func (p *Pipeline) Run(
	ctx context.Context, m Matcher, catalog product.Catalog, req *request.Request,
) ([]product.Product, error) {
	start := time.Now()

	var (
		matched []product.Product
		err     error
	)
	if strings.TrimSpace(req.Query()) != "" {
		matched, err = m.Search(ctx, req.Query())
		if err != nil {
			return nil, fmt.Errorf("match: %w", err)
		}
	} else {
		matched = catalog.Products()
	}

	results := req.Filters().Apply(matched)
	p.sort(results, req.SortKey())

	metrics.QueryDuration.WithLabelValues(sortLabel(req.SortKey())).Observe(time.Since(start).Seconds())
	metrics.QueryResults.Observe(float64(len(results)))

	return results, nil
}

// sort orders items in place. Unknown keys leave the order untouched.
func (p *Pipeline) sort(items []product.Product, key sortkey.Key) {
	switch key {
	case "", sortkey.Relevance:
	case sortkey.PriceAsc:
		slices.SortStableFunc(items, func(a, b product.Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case sortkey.PriceDesc:
		slices.SortStableFunc(items, func(a, b product.Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case sortkey.NameAsc, sortkey.NameDesc:
		// Collators are not safe for concurrent use; one per call.
		c := collate.New(p.collation)
		desc := key == sortkey.NameDesc
		slices.SortStableFunc(items, func(a, b product.Product) int {
			if desc {
				return c.CompareString(b.Title, a.Title)
			}
			return c.CompareString(a.Title, b.Title)
		})
	default:
		metrics.UnknownSortKeysTotal.Inc()
		p.logger.Debug("Unknown sort key, keeping match order", zap.String("sort", string(key)))
	}
}

func sortLabel(key sortkey.Key) string {
	switch {
	case key == "":
		return string(sortkey.Relevance)
	case key.IsValid():
		return string(key)
	default:
		return "unknown"
	}
}
