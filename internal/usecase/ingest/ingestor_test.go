package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
)

func newTestIngestor() *Ingestor {
	return New(zap.NewNop())
}

func TestIngest_Testdata(t *testing.T) {
	raw, err := os.ReadFile("testdata/catalog.csv")
	if err != nil {
		t.Fatalf("read testdata: %v", err)
	}

	catalog, err := newTestIngestor().IngestBytes(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Len() != 4 {
		t.Fatalf("expected 4 products (empty line skipped), got %d", catalog.Len())
	}

	wantIDs := []int{1, 2, 3, 4}
	for i, id := range wantIDs {
		if catalog.At(i).ID != id {
			t.Errorf("catalog[%d].ID = %d, want %d", i, catalog.At(i).ID, id)
		}
	}

	first := catalog.At(0)
	if first.Price != 20 || first.Title != "Red Shoe" || first.URL != "/products/red-shoe" {
		t.Errorf("first product = %+v", first)
	}
	if len(first.Tags) != 2 || first.Tags[1] != "red" {
		t.Errorf("first tags = %q", first.Tags)
	}

	hat := catalog.At(2)
	if hat.Price != 10 {
		t.Errorf("numeric amount price = %v", hat.Price)
	}
	if hat.ProductType != "default" {
		t.Errorf("ProductType = %q", hat.ProductType)
	}
	if catalog.At(3).Price != 0 {
		t.Errorf("broken price = %v, want 0", catalog.At(3).Price)
	}
}

func TestIngest_Empty(t *testing.T) {
	catalog, err := newTestIngestor().Ingest(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !catalog.IsEmpty() {
		t.Errorf("expected empty catalog, got %d", catalog.Len())
	}
}

func TestIngest_HeaderOnly(t *testing.T) {
	catalog, err := newTestIngestor().Ingest(context.Background(), strings.NewReader("ID,TITLE\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !catalog.IsEmpty() {
		t.Errorf("expected empty catalog, got %d", catalog.Len())
	}
}

func TestIngest_ShortRowsAndBOM(t *testing.T) {
	raw := "\ufeffID, TITLE ,PRODUCT_TYPE\n5,Lamp\n6\n"

	catalog, err := newTestIngestor().Ingest(context.Background(), strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("expected 2 products, got %d", catalog.Len())
	}
	if catalog.At(0).ID != 5 || catalog.At(0).Title != "Lamp" {
		t.Errorf("first = %+v", catalog.At(0))
	}
	if catalog.At(1).ID != 6 || catalog.At(1).Title != "" || catalog.At(1).ProductType != "default" {
		t.Errorf("second = %+v", catalog.At(1))
	}
}

func TestIngest_StructuralCorruption(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bare quote", "ID,TITLE\n1,Red \"Shoe\n"},
		{"unterminated quote", "ID,TITLE\n1,\"Red Shoe\n"},
		{"corrupt header", "ID,\"TI\"TLE\n1,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := newTestIngestor().Ingest(context.Background(), strings.NewReader(tt.raw))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, domain.ErrCatalogParse) {
				t.Errorf("expected ErrCatalogParse, got %v", err)
			}
			if domain.LoadReasonOf(err) != domain.ReasonParse {
				t.Errorf("reason = %q", domain.LoadReasonOf(err))
			}
			if !catalog.IsEmpty() {
				t.Errorf("catalog must be empty on failure, got %d", catalog.Len())
			}
		})
	}
}

func TestIngest_CustomDelimiter(t *testing.T) {
	raw := "ID;TITLE\n1;Semi\n"
	catalog, err := newTestIngestor().WithComma(';').Ingest(context.Background(), strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Len() != 1 || catalog.At(0).Title != "Semi" {
		t.Errorf("catalog = %+v", catalog.Products())
	}
}

func TestIngest_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestIngestor().Ingest(ctx, strings.NewReader("ID\n1\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWorker_Post(t *testing.T) {
	w := NewWorker(newTestIngestor())

	out := <-w.Post(context.Background(), []byte("ID,TITLE\n1,A\n2,B\n"))
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Catalog.Len() != 2 {
		t.Errorf("expected 2 products, got %d", out.Catalog.Len())
	}
}

func TestWorker_PostFailure(t *testing.T) {
	w := NewWorker(newTestIngestor())

	out := <-w.Post(context.Background(), []byte("ID,TITLE\n1,\"open\n"))
	if !errors.Is(out.Err, domain.ErrCatalogParse) {
		t.Fatalf("expected ErrCatalogParse, got %v", out.Err)
	}
	if !out.Catalog.IsEmpty() {
		t.Error("expected empty catalog on failure")
	}
}
