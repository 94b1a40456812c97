package shelf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/shelf/internal/catalog"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/fuzzy"
	"github.com/kailas-cloud/shelf/internal/usecase/ingest"
	"github.com/kailas-cloud/shelf/internal/usecase/orchestrator"
	searchuc "github.com/kailas-cloud/shelf/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/shelf/internal/usecase/session"
)

const defaultFetchTimeout = 30 * time.Second

// Client is the shelf SDK entry point. It is safe for concurrent use.
type Client struct {
	session *sessionuc.Session
	orch    *orchestrator.Orchestrator
	source  catalog.Source
	obs     *observer
	timeout time.Duration
}

// New wires an in-process search session. Exactly one of WithFile or
// WithURL is required. The catalog is not read until Load. ctx bounds the
// lifetime of the background search actor.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:     defaultFetchTimeout,
		comma:       ',',
		weights:     DefaultWeights(),
		maxEdits:    fuzzy.DefaultOptions().MaxEdits,
		workers:     orchestrator.DefaultWorkers,
		collation:   language.English,
		suggestions: sessionuc.DefaultSuggestionCount,
		debounce:    sessionuc.DefaultDebounce,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.path == "" && cfg.url == "" {
		return nil, errors.New("shelf: catalog source required (use WithFile or WithURL)")
	}
	if cfg.maxEdits < 0 || cfg.maxEdits > 2 {
		return nil, fmt.Errorf("shelf: max edits must be 0..2, got %d", cfg.maxEdits)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(ctx, cfg, buildSource(cfg), obs), nil
}

func buildSource(cfg *clientConfig) catalog.Source {
	if cfg.url != "" {
		return catalog.NewHTTPSource(&catalog.HTTPConfig{
			URL:     cfg.url,
			Timeout: cfg.timeout,
			Client:  cfg.httpClient,
			Logger:  cfg.logger,
		})
	}
	return catalog.NewFileSource(cfg.path)
}

func wireClient(ctx context.Context, cfg *clientConfig, source catalog.Source, obs *observer) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	indexOpts := fuzzy.Options{
		Weights:  cfg.weights.toFuzzy(),
		MaxEdits: cfg.maxEdits,
		KeepHTML: cfg.keepHTML,
	}
	pipeline := searchuc.New(logger).WithCollation(cfg.collation)
	orch := orchestrator.New(orchestrator.FuzzyBuilder(indexOpts), pipeline, logger).
		WithWorkers(cfg.workers)
	worker := ingest.NewWorker(ingest.New(logger).WithComma(cfg.comma))

	session := sessionuc.New(orch, worker, sessionuc.Config{
		Debounce:        cfg.debounce,
		SuggestionCount: cfg.suggestions,
	}, logger)
	session.Start(ctx)

	return &Client{
		session: session,
		orch:    orch,
		source:  source,
		obs:     obs,
		timeout: cfg.timeout,
	}
}

// ID returns the session identifier used in log fields.
func (c *Client) ID() string { return c.orch.ID() }

// Load fetches, parses and indexes the catalog. It returns once the index
// is ready or the load failed; on failure the client holds an empty
// catalog and LoadReasonOf tells fetch, parse and index errors apart.
// Calling Load again replaces the catalog.
func (c *Client) Load(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.session.Load(ctx, c.source)
	c.obs.observe("load", start, err)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	return nil
}

// Products returns the loaded catalog in source order.
func (c *Client) Products() []Product {
	return c.session.Products()
}

// PriceBounds returns the price span of the loaded catalog ({0,0} when empty).
func (c *Client) PriceBounds() Bounds {
	return c.session.PriceBounds()
}

// Ready reports whether searches can be answered.
func (c *Client) Ready() bool {
	st := c.session.State()
	return st.Ready && st.LoadErr == nil
}

// OnReady registers fn to run each time a loaded catalog becomes
// searchable. It runs before Load returns.
func (c *Client) OnReady(fn func(products int)) {
	if fn == nil {
		c.session.OnReady(nil)
		return
	}
	c.session.OnReady(func(cat product.Catalog) { fn(cat.Len()) })
}

// OnLoadFailed registers fn to run when a load fails. LoadReasonOf(err)
// tells the failure apart.
func (c *Client) OnLoadFailed(fn func(err error)) {
	c.session.OnFailed(fn)
}

// Search starts a fluent query. An empty query returns the whole catalog.
func (c *Client) Search() *SearchBuilder {
	return &SearchBuilder{client: c}
}

// Close stops the background actor and releases the index.
func (c *Client) Close() {
	c.session.Close()
}
