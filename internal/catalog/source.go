// Package catalog fetches the raw catalog payload from a file or over HTTP.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
)

// DefaultMaxBytes caps the payload size accepted from any source.
const DefaultMaxBytes = 64 << 20

// Source yields the raw delimited-text catalog.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the catalog from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the whole file. Any read failure is a fetch LoadError.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetchError(err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fetchError(err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, DefaultMaxBytes+1))
	if err != nil {
		return nil, fetchError(err)
	}
	if len(raw) > DefaultMaxBytes {
		return nil, fetchError(fmt.Errorf("catalog exceeds %d bytes", DefaultMaxBytes))
	}
	return raw, nil
}

// HTTPConfig holds the remote source settings.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client // optional
	Logger  *zap.Logger
}

// HTTPSource downloads the catalog with a GET request.
type HTTPSource struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSource creates a remote catalog source.
func NewHTTPSource(cfg *HTTPConfig) *HTTPSource {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{url: cfg.URL, client: client, logger: logger}
}

// Fetch downloads the catalog. A non-2xx status is a fetch failure.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fetchError(err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fetchError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fetchError(&StatusError{Code: resp.StatusCode})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, DefaultMaxBytes+1))
	if err != nil {
		return nil, fetchError(err)
	}
	if len(raw) > DefaultMaxBytes {
		return nil, fetchError(fmt.Errorf("catalog exceeds %d bytes", DefaultMaxBytes))
	}

	s.logger.Debug("Catalog downloaded",
		zap.String("url", s.url),
		zap.Int("bytes", len(raw)),
		zap.Duration("duration", time.Since(start)),
	)
	return raw, nil
}

// StatusError reports an unsuccessful HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

func fetchError(err error) error {
	if errors.Is(err, domain.ErrCatalogFetch) {
		return domain.NewLoadError(domain.ReasonFetch, err)
	}
	return domain.NewLoadError(domain.ReasonFetch, fmt.Errorf("%w: %w", domain.ErrCatalogFetch, err))
}
