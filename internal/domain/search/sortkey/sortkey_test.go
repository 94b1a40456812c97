package sortkey

import "testing"

func TestKey_IsValid(t *testing.T) {
	tests := []struct {
		key  Key
		want bool
	}{
		{"", true},
		{Relevance, true},
		{PriceAsc, true},
		{PriceDesc, true},
		{NameAsc, true},
		{NameDesc, true},
		{"price_asc", false},
		{"newest", false},
	}
	for _, tt := range tests {
		if got := tt.key.IsValid(); got != tt.want {
			t.Errorf("Key(%q).IsValid() = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestKey_IsRelevance(t *testing.T) {
	if !Key("").IsRelevance() || !Relevance.IsRelevance() {
		t.Error("empty and relevance keys must keep match order")
	}
	if PriceAsc.IsRelevance() {
		t.Error("price-asc is not relevance")
	}
}
