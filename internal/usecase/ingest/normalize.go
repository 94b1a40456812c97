package ingest

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/shelf/internal/domain/product"
)

// Source column names in the catalog export.
const (
	ColID          = "ID"
	ColTitle       = "TITLE"
	ColVendor      = "VENDOR"
	ColStatus      = "STATUS"
	ColDescription = "DESCRIPTION"
	ColProductType = "PRODUCT_TYPE"
	ColPriceRange  = "PRICE_RANGE"
	ColTags        = "TAGS"
	ColHandle      = "HANDLE"
)

// Row is one delimited-text record keyed by header column name.
// A missing key means the column was absent or the row was short.
type Row map[string]string

// Normalizer converts raw rows into products. It never fails: malformed
// fields degrade to their defaults and are counted per field.
type Normalizer struct {
	fallbacks *prometheus.CounterVec
}

// NewNormalizer creates a Normalizer. fallbacks is a counter vec with label
// "field", passed explicitly; nil disables counting.
func NewNormalizer(fallbacks *prometheus.CounterVec) *Normalizer {
	return &Normalizer{fallbacks: fallbacks}
}

// Normalize converts a row with the package defaults and no instrumentation.
func Normalize(row Row) product.Product {
	return (&Normalizer{}).Normalize(row)
}

// Normalize converts one row into a product.
func (n *Normalizer) Normalize(row Row) product.Product {
	id, ok := parseLenientInt(row[ColID])
	if !ok {
		n.fallback("id")
	}

	price, ok := parsePrice(row[ColPriceRange])
	if !ok {
		n.fallback("price")
	}

	productType := row[ColProductType]
	if productType == "" {
		productType = product.DefaultProductType
		n.fallback("product_type")
	}

	return product.Product{
		ID:          id,
		Title:       row[ColTitle],
		Description: row[ColDescription],
		Vendor:      row[ColVendor],
		ProductType: productType,
		Status:      row[ColStatus],
		Price:       price,
		Tags:        splitTags(row[ColTags]),
		URL:         product.URLForHandle(row[ColHandle]),
	}
}

func (n *Normalizer) fallback(field string) {
	if n == nil || n.fallbacks == nil {
		return
	}
	n.fallbacks.WithLabelValues(field).Inc()
}

// splitTags splits on commas and trims each piece. Empty pieces produced by
// doubled or trailing commas are kept as empty tags.
func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// parseLenientInt reads the leading integer of s, ignoring surrounding space and
// trailing garbage ("12abc" is 12). Missing, negative or overflowing values yield 0.
func parseLenientInt(s string) (int, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseLenientFloat reads the leading decimal number of s.
func parseLenientFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// priceRange is the nested structure carried in the PRICE_RANGE column.
type priceRange struct {
	MaxVariantPrice *struct {
		Amount json.RawMessage `json:"amount"`
	} `json:"max_variant_price"`
}

// parsePrice extracts max_variant_price.amount from the encoded price range.
// Every failure (bad JSON, missing key, non-numeric or negative amount) yields 0.
func parsePrice(raw string) (price float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			price, ok = 0, false
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return 0, false
	}
	var pr priceRange
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return 0, false
	}
	if pr.MaxVariantPrice == nil || len(pr.MaxVariantPrice.Amount) == 0 {
		return 0, false
	}

	amount := string(pr.MaxVariantPrice.Amount)
	var s string
	if err := json.Unmarshal(pr.MaxVariantPrice.Amount, &s); err == nil {
		amount = s
	}

	v, ok := parseLenientFloat(amount)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}
