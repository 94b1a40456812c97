package fuzzy

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/product"
)

// maxFuzziness is the largest edit distance bleve's fuzzy automaton supports.
const maxFuzziness = 2

const (
	// minInfixRunes is the shortest query word matched inside indexed words.
	minInfixRunes = 3
	// infixBoost scales a field weight for mid-word matches.
	infixBoost = 0.5
)

// Weights are relative per-field score multipliers. They need not sum to 1.
type Weights struct {
	Title       float64
	Description float64
	Tags        float64
	Vendor      float64
	ProductType float64
}

// DefaultWeights favors title matches over the other fields.
func DefaultWeights() Weights {
	return Weights{Title: 0.4, Description: 0.3, Tags: 0.3, Vendor: 0.3, ProductType: 0.3}
}

func (w Weights) byField() map[string]float64 {
	return map[string]float64{
		fieldTitle:       w.Title,
		fieldDescription: w.Description,
		fieldTags:        w.Tags,
		fieldVendor:      w.Vendor,
		fieldProductType: w.ProductType,
	}
}

// Options configure index construction and matching tolerance.
type Options struct {
	Weights Weights
	// MaxEdits caps the edit distance for long query words (0..2).
	// Words of 3-5 runes allow at most 1 edit, shorter words match exactly or by prefix.
	MaxEdits int
	// KeepHTML indexes descriptions verbatim instead of stripping markup.
	KeepHTML bool
}

// DefaultOptions returns the moderate tolerance used for catalogs.
func DefaultOptions() Options {
	return Options{Weights: DefaultWeights(), MaxEdits: maxFuzziness}
}

// Index answers approximate text queries over one catalog.
// It is immutable after Build and safe for concurrent Search calls.
type Index struct {
	catalog  product.Catalog
	idx      bleve.Index
	analyzer analysis.Analyzer
	weights  map[string]float64
	maxEdits int
}

// Build indexes every product of the catalog once. Document IDs are catalog
// positions, so products sharing an ID never collide.
func Build(catalog product.Catalog, opts Options) (*Index, error) {
	im, err := newIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
	}

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("%w: open index: %w", domain.ErrIndexBuild, err)
	}

	batch := idx.NewBatch()
	for i, p := range catalog.All {
		if err := batch.Index(strconv.Itoa(i), toDocument(p, opts.KeepHTML)); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("%w: index product %d: %w", domain.ErrIndexBuild, p.ID, err)
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("%w: commit batch: %w", domain.ErrIndexBuild, err)
		}
	}
	analyzer := im.AnalyzerNamed(analyzerName)
	if analyzer == nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: analyzer %q not found", domain.ErrIndexBuild, analyzerName)
	}

	return &Index{
		catalog:  catalog,
		idx:      idx,
		analyzer: analyzer,
		weights:  opts.Weights.byField(),
		maxEdits: min(max(opts.MaxEdits, 0), maxFuzziness),
	}, nil
}

func toDocument(p product.Product, keepHTML bool) map[string]interface{} {
	description := p.Description
	if !keepHTML {
		description = plainText(description)
	}
	return map[string]interface{}{
		fieldTitle:       p.Title,
		fieldDescription: description,
		fieldTags:        p.Tags,
		fieldVendor:      p.Vendor,
		fieldProductType: p.ProductType,
	}
}

// Catalog returns the catalog the index was built over.
func (ix *Index) Catalog() product.Catalog { return ix.catalog }

// Close releases the underlying index.
func (ix *Index) Close() error {
	if err := ix.idx.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return nil
}

// Search returns the products matching q by descending relevance; equal
// scores keep catalog order. A blank query returns the whole catalog in
// canonical order without touching the matcher.
func (ix *Index) Search(ctx context.Context, q string) ([]product.Product, error) {
	if strings.TrimSpace(q) == "" {
		return ix.catalog.Products(), nil
	}

	terms := ix.terms(q)
	if len(terms) == 0 || ix.catalog.IsEmpty() {
		return []product.Product{}, nil
	}

	req := bleve.NewSearchRequestOptions(ix.buildQuery(terms), ix.catalog.Len(), 0, false)
	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}

	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil || pos < 0 || pos >= ix.catalog.Len() {
			return nil, errors.New("fuzzy search: unknown document id " + h.ID)
		}
		hits = append(hits, hit{pos: pos, score: h.Score})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	out := make([]product.Product, len(hits))
	for i, h := range hits {
		out[i] = ix.catalog.At(h.pos)
	}
	return out, nil
}

// terms runs the query through the index analyzer so query words are
// normalized exactly like indexed text.
func (ix *Index) terms(q string) []string {
	stream := ix.analyzer.Analyze([]byte(strings.ToLower(q)))
	terms := make([]string, 0, len(stream))
	seen := make(map[string]struct{}, len(stream))
	for _, tok := range stream {
		t := string(tok.Term)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// buildQuery requires every term to match some field. Within a term, each
// field contributes a fuzzy, a prefix and an infix clause scaled by its
// weight; the infix clause counts for less.
func (ix *Index) buildQuery(terms []string) query.Query {
	perTerm := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		edits := ix.fuzziness(t)
		infix := utf8.RuneCountInString(t) >= minInfixRunes && !strings.ContainsAny(t, "*?")
		clauses := make([]query.Query, 0, len(searchFields)*3)
		for _, field := range searchFields {
			boost := ix.weights[field]
			if boost <= 0 {
				continue
			}
			if edits > 0 {
				fq := bleve.NewFuzzyQuery(t)
				fq.SetField(field)
				fq.SetFuzziness(edits)
				fq.SetBoost(boost)
				clauses = append(clauses, fq)
			}
			pq := bleve.NewPrefixQuery(t)
			pq.SetField(field)
			pq.SetBoost(boost)
			clauses = append(clauses, pq)
			if infix {
				wq := bleve.NewWildcardQuery("*" + t + "*")
				wq.SetField(field)
				wq.SetBoost(boost * infixBoost)
				clauses = append(clauses, wq)
			}
		}
		perTerm = append(perTerm, bleve.NewDisjunctionQuery(clauses...))
	}
	return bleve.NewConjunctionQuery(perTerm...)
}

// fuzziness scales the tolerated edit distance with word length.
func (ix *Index) fuzziness(term string) int {
	n := utf8.RuneCountInString(term)
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return min(1, ix.maxEdits)
	default:
		return ix.maxEdits
	}
}
