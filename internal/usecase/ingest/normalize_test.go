package ingest

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/shelf/internal/domain/product"
)

func TestNormalize_FullRow(t *testing.T) {
	p := Normalize(Row{
		ColID:          "42",
		ColTitle:       "Red Shoe",
		ColVendor:      "Acme",
		ColStatus:      "ACTIVE",
		ColDescription: "Bright",
		ColProductType: "Shoes",
		ColPriceRange:  `{"max_variant_price":{"amount":"19.99","currency_code":"USD"}}`,
		ColTags:        "running, red ,sale",
		ColHandle:      "red-shoe",
	})

	if p.ID != 42 {
		t.Errorf("ID = %d", p.ID)
	}
	if p.Title != "Red Shoe" || p.Vendor != "Acme" || p.Status != "ACTIVE" || p.Description != "Bright" {
		t.Errorf("text fields = %+v", p)
	}
	if p.ProductType != "Shoes" {
		t.Errorf("ProductType = %q", p.ProductType)
	}
	if p.Price != 19.99 {
		t.Errorf("Price = %v", p.Price)
	}
	wantTags := []string{"running", "red", "sale"}
	if len(p.Tags) != len(wantTags) {
		t.Fatalf("Tags = %q", p.Tags)
	}
	for i := range wantTags {
		if p.Tags[i] != wantTags[i] {
			t.Errorf("Tags[%d] = %q, want %q", i, p.Tags[i], wantTags[i])
		}
	}
	if p.URL != "/products/red-shoe" {
		t.Errorf("URL = %q", p.URL)
	}
}

func TestNormalize_EmptyRowDefaults(t *testing.T) {
	p := Normalize(Row{})

	if p.ID != 0 || p.Price != 0 {
		t.Errorf("numeric defaults = id %d price %v", p.ID, p.Price)
	}
	if p.Title != "" || p.Description != "" || p.Vendor != "" || p.Status != "" {
		t.Errorf("text defaults = %+v", p)
	}
	if p.ProductType != product.DefaultProductType {
		t.Errorf("ProductType = %q, want %q", p.ProductType, product.DefaultProductType)
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil", p.Tags)
	}
	if p.URL != "/products/" {
		t.Errorf("URL = %q", p.URL)
	}
}

func TestNormalize_MalformedPrices(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"empty", "", 0},
		{"not json", "{not json", 0},
		{"json array", `[1,2]`, 0},
		{"json scalar", `5`, 0},
		{"null", `null`, 0},
		{"missing key", `{"min_variant_price":{"amount":"3"}}`, 0},
		{"null nested", `{"max_variant_price":null}`, 0},
		{"missing amount", `{"max_variant_price":{}}`, 0},
		{"null amount", `{"max_variant_price":{"amount":null}}`, 0},
		{"non numeric", `{"max_variant_price":{"amount":"free"}}`, 0},
		{"negative", `{"max_variant_price":{"amount":"-4"}}`, 0},
		{"object amount", `{"max_variant_price":{"amount":{"v":1}}}`, 0},
		{"numeric amount", `{"max_variant_price":{"amount":12.5}}`, 12.5},
		{"trailing text", `{"max_variant_price":{"amount":"7.25 USD"}}`, 7.25},
		{"leading dot", `{"max_variant_price":{"amount":".5"}}`, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(Row{ColPriceRange: tt.raw})
			if p.Price != tt.want {
				t.Errorf("Price = %v, want %v", p.Price, tt.want)
			}
		})
	}
}

func TestNormalize_LenientID(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"7", 7},
		{" 8 ", 8},
		{"12abc", 12},
		{"3.9", 3},
		{"abc", 0},
		{"", 0},
		{"-5", 0},
		{"99999999999999999999999", 0},
	}
	for _, tt := range tests {
		if got := Normalize(Row{ColID: tt.raw}).ID; got != tt.want {
			t.Errorf("ID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize_TrailingCommaKeepsEmptyTag(t *testing.T) {
	p := Normalize(Row{ColTags: "blue,"})

	if len(p.Tags) != 2 {
		t.Fatalf("Tags = %q, want 2 entries", p.Tags)
	}
	if p.Tags[0] != "blue" || p.Tags[1] != "" {
		t.Errorf("Tags = %q", p.Tags)
	}
}

func TestNormalizer_CountsFallbacks(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_fallbacks"}, []string{"field"})
	n := NewNormalizer(counter)

	n.Normalize(Row{ColID: "x", ColPriceRange: "bad"})
	n.Normalize(Row{ColID: "1", ColProductType: "Hats", ColPriceRange: `{"max_variant_price":{"amount":"1"}}`})

	if got := testutil.ToFloat64(counter.WithLabelValues("id")); got != 1 {
		t.Errorf("id fallbacks = %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("price")); got != 1 {
		t.Errorf("price fallbacks = %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("product_type")); got != 1 {
		t.Errorf("product_type fallbacks = %v", got)
	}
}
