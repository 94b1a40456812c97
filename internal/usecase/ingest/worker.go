package ingest

import (
	"context"

	"github.com/kailas-cloud/shelf/internal/domain/product"
)

// Outcome is the single outbound message of an ingestion run.
type Outcome struct {
	Catalog product.Catalog
	Err     error
}

// Worker runs ingestion on its own goroutine. The protocol is one-shot:
// the raw catalog text goes in, one Outcome comes out.
type Worker struct {
	ingestor *Ingestor
}

// NewWorker creates a background ingestion worker.
func NewWorker(ingestor *Ingestor) *Worker {
	return &Worker{ingestor: ingestor}
}

// Post hands raw catalog text to the background goroutine and returns the
// channel its Outcome will arrive on. The channel is buffered so the worker
// never blocks on a caller that stopped listening.
func (w *Worker) Post(ctx context.Context, raw []byte) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		catalog, err := w.ingestor.IngestBytes(ctx, raw)
		if err != nil {
			out <- Outcome{Catalog: product.NewCatalog(nil), Err: err}
			return
		}
		out <- Outcome{Catalog: catalog}
	}()
	return out
}
