package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/metrics"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 512

const utf8BOM = "\ufeff"

// Ingestor parses a whole delimited-text catalog into products in one pass.
type Ingestor struct {
	norm   *Normalizer
	comma  rune
	logger *zap.Logger
}

// New creates an Ingestor that counts field fallbacks in the shared metrics.
func New(logger *zap.Logger) *Ingestor {
	return &Ingestor{
		norm:   NewNormalizer(metrics.IngestFieldFallbacksTotal),
		comma:  ',',
		logger: logger,
	}
}

// WithComma overrides the field delimiter (default ',').
func (i *Ingestor) WithComma(comma rune) *Ingestor {
	if comma != 0 {
		i.comma = comma
	}
	return i
}

// Ingest reads the header row and normalizes every following record.
// Rows keep their source order. Structurally corrupt input is the only
// failure: it returns an empty catalog and a parse LoadError.
func (i *Ingestor) Ingest(ctx context.Context, r io.Reader) (product.Catalog, error) {
	start := time.Now()

	cr := csv.NewReader(r)
	cr.Comma = i.comma
	cr.FieldsPerRecord = -1 // short and long rows are tolerated
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return product.NewCatalog(nil), nil
	}
	if err != nil {
		return product.Catalog{}, parseError(err)
	}
	columns := headerColumns(header)

	var items []product.Product
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return product.Catalog{}, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return product.Catalog{}, parseError(err)
		}

		items = append(items, i.norm.Normalize(toRow(columns, rec)))
	}

	duration := time.Since(start)
	metrics.IngestRowsTotal.Add(float64(len(items)))
	metrics.IngestDuration.Observe(duration.Seconds())

	i.logger.Info("Catalog ingested",
		zap.Int("rows", len(items)),
		zap.Int("columns", len(columns)),
		zap.Duration("duration", duration),
	)

	return product.NewCatalog(items), nil
}

// IngestBytes is Ingest over an in-memory payload.
func (i *Ingestor) IngestBytes(ctx context.Context, raw []byte) (product.Catalog, error) {
	return i.Ingest(ctx, bytes.NewReader(raw))
}

func parseError(err error) error {
	return domain.NewLoadError(domain.ReasonParse, fmt.Errorf("%w: %w", domain.ErrCatalogParse, err))
}

// headerColumns copies the header names, trimming space and a leading BOM.
func headerColumns(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		cols[i] = strings.TrimSpace(h)
	}
	return cols
}

// toRow maps a record onto the header. Extra trailing fields are dropped;
// the first occurrence of a duplicated column name wins.
func toRow(columns, rec []string) Row {
	row := make(Row, len(columns))
	for i, col := range columns {
		if i >= len(rec) {
			break
		}
		if _, dup := row[col]; dup {
			continue
		}
		row[col] = rec[i]
	}
	return row
}
