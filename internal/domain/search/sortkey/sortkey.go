package sortkey

// Key names the ordering applied after matching and filtering.
type Key string

// Sort key constants.
const (
	// Relevance keeps the match order (fuzzy rank, or catalog order for empty queries).
	Relevance Key = "relevance"
	PriceAsc  Key = "price-asc"
	PriceDesc Key = "price-desc"
	NameAsc   Key = "name-asc"
	NameDesc  Key = "name-desc"
)

// IsValid checks if the key is one of the supported values. The empty key is valid
// and means relevance.
func (k Key) IsValid() bool {
	switch k {
	case "", Relevance, PriceAsc, PriceDesc, NameAsc, NameDesc:
		return true
	}
	return false
}

// IsRelevance reports whether the key leaves match order untouched.
func (k Key) IsRelevance() bool {
	return k == "" || k == Relevance
}
