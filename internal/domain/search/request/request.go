package request

import (
	"fmt"
	"unicode/utf8"

	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
)

// MaxQueryLength is the maximum allowed search query length in characters.
const MaxQueryLength = 512

// Request is a self-contained query: text, filters and sort key.
// The pipeline output depends only on the catalog and this value.
type Request struct {
	query   string
	filters filter.Filters
	sortKey sortkey.Key
	seq     uint64
}

// New validates search parameters. An empty query is valid and selects the
// whole catalog. Unknown sort keys are accepted and leave order unchanged.
func New(query string, filters filter.Filters, key sortkey.Key) (Request, error) {
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	return Request{query: query, filters: filters, sortKey: key}, nil
}

// WithSeq returns a copy tagged with a dispatch sequence number.
func (r Request) WithSeq(seq uint64) Request {
	r.seq = seq
	return r
}

// Query returns the raw query text.
func (r *Request) Query() string { return r.query }

// Filters returns the filter set.
func (r *Request) Filters() filter.Filters { return r.filters }

// SortKey returns the requested ordering.
func (r *Request) SortKey() sortkey.Key { return r.sortKey }

// Seq returns the dispatch sequence number (0 when untagged).
func (r *Request) Seq() uint64 { return r.seq }
