package session

import (
	"context"

	"github.com/kailas-cloud/shelf/internal/usecase/ingest"
	"github.com/kailas-cloud/shelf/internal/usecase/orchestrator"
)

// Orchestrator runs the search context the session talks to.
type Orchestrator interface {
	Start(ctx context.Context)
	Send(ctx context.Context, msg orchestrator.Message) error
	Responses() <-chan orchestrator.Response
	Close()
}

// Ingester parses raw catalog text off the caller's goroutine.
type Ingester interface {
	Post(ctx context.Context, raw []byte) <-chan ingest.Outcome
}

// Source yields the raw catalog text.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}
