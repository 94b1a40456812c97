package shelf

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
)

// Live drives the client's interactive query state, the way a search box
// would: query text is debounced, filter and sort changes dispatch at
// once, and only the latest request's results are kept. All Live values
// of one client share that state.
type Live struct {
	client *Client
}

// Filters narrows live results. Only Price is enforced; the other fields
// are carried with the request. Zero values mean unset.
type Filters struct {
	Price     *PriceRange
	Category  string
	MinRating float64
	InStock   bool
}

// PriceRange bounds prices, both ends included.
type PriceRange struct {
	Min float64
	Max float64
}

func (f Filters) toDomain() (filter.Filters, error) {
	var opts []filter.Option
	if f.Price != nil {
		r, err := filter.NewPriceRange(f.Price.Min, f.Price.Max)
		if err != nil {
			return filter.Filters{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		opts = append(opts, filter.WithPriceRange(r))
	}
	if f.Category != "" {
		opts = append(opts, filter.WithCategory(f.Category))
	}
	if f.MinRating != 0 {
		opts = append(opts, filter.WithRating(f.MinRating))
	}
	if f.InStock {
		opts = append(opts, filter.WithInStock(true))
	}
	return filter.New(opts...), nil
}

// Live returns the interactive view of the client's query state.
func (c *Client) Live() *Live {
	return &Live{client: c}
}

// SetQuery records new query text. It is dispatched once the text has
// been stable for the debounce window (see WithDebounce).
func (l *Live) SetQuery(text string) error {
	start := time.Now()
	err := l.client.session.SetQuery(text)
	l.client.obs.observe("live_query", start, err)
	return err
}

// SetFilters replaces the filters and dispatches at once. It returns the
// sequence number of the dispatch, or 0 while no catalog is ready.
func (l *Live) SetFilters(f Filters) (uint64, error) {
	start := time.Now()
	df, err := f.toDomain()
	if err != nil {
		l.client.obs.observe("live_filters", start, err)
		return 0, err
	}
	seq := l.client.session.SetFilters(df)
	l.client.obs.observe("live_filters", start, nil)
	return seq, nil
}

// SetSort replaces the sort key and dispatches at once. It returns the
// sequence number of the dispatch, or 0 while no catalog is ready.
func (l *Live) SetSort(key SortKey) uint64 {
	start := time.Now()
	seq := l.client.session.SetSort(key)
	l.client.obs.observe("live_sort", start, nil)
	return seq
}

// Wait blocks until the dispatch seq is answered. A later dispatch makes
// seq stale and Wait returns ErrSuperseded.
func (l *Live) Wait(ctx context.Context, seq uint64) (Result, error) {
	s := l.client.session
	items, err := s.WaitSeq(ctx, seq)
	if err != nil {
		return Result{}, fmt.Errorf("wait: %w", err)
	}
	return Result{Seq: seq, Products: items, Suggestions: s.SuggestionsFor(items)}, nil
}

// Current returns the latest applied results.
func (l *Live) Current() Result {
	s := l.client.session
	return Result{
		Seq:         s.State().AppliedSeq,
		Products:    s.Results(),
		Suggestions: s.Suggestions(),
	}
}

// OnResults registers fn to receive the results of each latest dispatch.
// Stale responses are never delivered. fn runs on the client's response
// goroutine; a later registration replaces the earlier one.
func (l *Live) OnResults(fn func(Result)) {
	s := l.client.session
	if fn == nil {
		s.OnResults(nil)
		return
	}
	s.OnResults(func(seq uint64, items []Product) {
		fn(Result{Seq: seq, Products: items, Suggestions: s.SuggestionsFor(items)})
	})
}
