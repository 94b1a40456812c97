package chi

import "github.com/kailas-cloud/shelf/internal/domain/product"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNotReady         ErrorCode = "index_not_ready"
	ErrorCodeCatalogFetch     ErrorCode = "catalog_fetch_failed"
	ErrorCodeCatalogParse     ErrorCode = "catalog_parse_failed"
	ErrorCodeIndexBuild       ErrorCode = "index_build_failed"
	ErrorCodeUnavailable      ErrorCode = "unavailable"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Reason  string    `json:"reason,omitempty"`
}

// SearchFilters mirrors filter.Filters on the wire.
type SearchFilters struct {
	PriceRange *[2]float64 `json:"price_range,omitempty"`
	Category   *string     `json:"category,omitempty"`
	Rating     *float64    `json:"rating,omitempty"`
	InStock    *bool       `json:"in_stock,omitempty"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query   string         `json:"query"`
	Filters *SearchFilters `json:"filters,omitempty"`
	Sort    string         `json:"sort,omitempty"`
	// Limit caps the returned page; absent means every result.
	Limit  *int `json:"limit,omitempty"`
	Offset int  `json:"offset,omitempty"`
}

// SearchResponse is the body of a successful POST /search.
// Total counts every result; Results holds the requested page.
type SearchResponse struct {
	Total       int               `json:"total"`
	Offset      int               `json:"offset"`
	Results     []product.Product `json:"results"`
	Suggestions []string          `json:"suggestions"`
}

// CatalogResponse is the body of GET /catalog.
type CatalogResponse struct {
	Total int               `json:"total"`
	Items []product.Product `json:"items"`
}

// PriceBoundsResponse is the body of GET /catalog/price-bounds.
type PriceBoundsResponse struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ReloadResponse is the body of a successful POST /catalog/reload.
type ReloadResponse struct {
	Status   string `json:"status"`
	Products int    `json:"products"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Products int               `json:"products"`
	Version  string            `json:"version"`
}
