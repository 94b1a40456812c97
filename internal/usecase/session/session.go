package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
	"github.com/kailas-cloud/shelf/internal/domain/search/request"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
	"github.com/kailas-cloud/shelf/internal/metrics"
	"github.com/kailas-cloud/shelf/internal/usecase/ingest"
	"github.com/kailas-cloud/shelf/internal/usecase/orchestrator"
)

const (
	// DefaultDebounce is the quiescence window applied to query text.
	DefaultDebounce = 400 * time.Millisecond
	// DefaultSuggestionCount is how many result titles are offered as suggestions.
	DefaultSuggestionCount = 5
)

// Config tunes the presentation side of a session.
type Config struct {
	Debounce        time.Duration
	SuggestionCount int
}

// State is a point-in-time view of the session.
type State struct {
	Loading    bool
	Ready      bool
	Products   int
	LoadErr    error
	Query      string
	SortKey    sortkey.Key
	LatestSeq  uint64
	AppliedSeq uint64
}

// Session is the presentation side of the search system. It owns the
// loaded catalog, the current query state and the latest applied results,
// and exchanges messages with the ingestion worker and the orchestrator.
type Session struct {
	orch     Orchestrator
	ingester Ingester
	cfg      Config
	logger   *zap.Logger

	loadMu sync.Mutex

	mu         sync.Mutex
	changed    chan struct{}
	ctx        context.Context
	closed     bool
	started    bool
	catalog    product.Catalog
	loaded     bool
	loading    bool
	ready      bool
	loadErr    error
	query      string
	debounced  string
	filters    filter.Filters
	sortKey    sortkey.Key
	gen        uint64
	seq        uint64
	applied    uint64
	results    []product.Product
	resultErr  error
	timer      *time.Timer
	onReady    func(product.Catalog)
	onFailed   func(error)
	onResults  func(seq uint64, results []product.Product)
	pumpExited chan struct{}
}

// New creates a session. Zero config values fall back to defaults.
func New(orch Orchestrator, ingester Ingester, cfg Config, logger *zap.Logger) *Session {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SuggestionCount <= 0 {
		cfg.SuggestionCount = DefaultSuggestionCount
	}
	return &Session{
		orch:       orch,
		ingester:   ingester,
		cfg:        cfg,
		logger:     logger,
		changed:    make(chan struct{}),
		ctx:        context.Background(),
		catalog:    product.NewCatalog(nil),
		pumpExited: make(chan struct{}),
	}
}

// OnReady registers a callback fired once the index for a loaded catalog is ready.
func (s *Session) OnReady(fn func(product.Catalog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReady = fn
}

// OnFailed registers a callback fired when a load fails. The error is a *domain.LoadError.
func (s *Session) OnFailed(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailed = fn
}

// OnResults registers a callback fired each time the latest dispatched
// request's results are applied. It runs on the response goroutine.
func (s *Session) OnResults(fn func(seq uint64, results []product.Product)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResults = fn
}

// Start launches the orchestrator and the response pump. Call it before Load.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.started = true
	s.mu.Unlock()

	s.orch.Start(ctx)
	go s.pump()
}

// Close stops pending timers and the orchestrator.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	started := s.started
	s.broadcastLocked()
	s.mu.Unlock()

	s.orch.Close()
	if started {
		<-s.pumpExited
	}
}

// Load fetches, ingests and indexes a catalog, replacing any previous one.
// It returns once the index is ready or the load failed; failures are
// *domain.LoadError values and leave the session with zero products.
func (s *Session) Load(ctx context.Context, src Source) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.gen++
	gen := s.gen
	s.loading = true
	s.ready = false
	s.loadErr = nil
	s.results = nil
	s.resultErr = nil
	s.broadcastLocked()
	s.mu.Unlock()

	raw, err := src.Fetch(ctx)
	if err != nil {
		return s.fail(ensureLoadError(domain.ReasonFetch, err))
	}

	var outcome ingest.Outcome
	select {
	case outcome = <-s.ingester.Post(ctx, raw):
	case <-ctx.Done():
		return s.fail(ensureLoadError(domain.ReasonFetch, ctx.Err()))
	}
	if outcome.Err != nil {
		return s.fail(ensureLoadError(ingestReason(outcome.Err), outcome.Err))
	}

	s.mu.Lock()
	s.catalog = outcome.Catalog
	s.loaded = true
	s.mu.Unlock()

	err = s.orch.Send(ctx, orchestrator.Message{
		Type:    orchestrator.MessageInit,
		Catalog: outcome.Catalog,
		Gen:     gen,
	})
	if err != nil {
		return s.fail(ensureLoadError(domain.ReasonIndex, err))
	}

	for {
		s.mu.Lock()
		loading, loadErr, changed := s.loading, s.loadErr, s.changed
		closed := s.closed
		s.mu.Unlock()

		if !loading {
			return loadErr
		}
		if closed {
			return domain.ErrSessionClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.catalog = product.NewCatalog(nil)
	s.loaded = false
	s.ready = false
	s.loadErr = err
	s.results = nil
	cb := s.onFailed
	s.mu.Unlock()

	metrics.CatalogLoadsTotal.WithLabelValues(string(domain.LoadReasonOf(err))).Inc()
	s.logger.Error("Catalog load failed",
		zap.String("reason", string(domain.LoadReasonOf(err))),
		zap.Error(err),
	)
	if cb != nil {
		cb(err)
	}

	s.mu.Lock()
	s.loading = false
	s.broadcastLocked()
	s.mu.Unlock()
	return err
}

// SetQuery records new query text. Dispatch happens once the text has been
// stable for the debounce window.
func (s *Session) SetQuery(text string) error {
	if _, err := request.New(text, filter.New(), ""); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = text
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, s.flushQuery)
	return nil
}

func (s *Session) flushQuery() {
	s.mu.Lock()
	if s.closed || s.debounced == s.query {
		s.mu.Unlock()
		return
	}
	s.debounced = s.query
	msg, ok := s.nextLocked()
	ctx := s.ctx
	s.mu.Unlock()

	if ok {
		s.send(ctx, msg)
	}
}

// SetFilters replaces the filters and dispatches immediately.
func (s *Session) SetFilters(f filter.Filters) uint64 {
	s.mu.Lock()
	s.filters = f
	msg, ok := s.nextLocked()
	ctx := s.ctx
	s.mu.Unlock()

	if !ok {
		return 0
	}
	s.send(ctx, msg)
	return msg.Request.Seq()
}

// SetSort replaces the sort key and dispatches immediately.
func (s *Session) SetSort(key sortkey.Key) uint64 {
	s.mu.Lock()
	s.sortKey = key
	msg, ok := s.nextLocked()
	ctx := s.ctx
	s.mu.Unlock()

	if !ok {
		return 0
	}
	s.send(ctx, msg)
	return msg.Request.Seq()
}

// Dispatch replaces the whole query state and dispatches it at once,
// bypassing the debounce window. It returns the sequence number to wait on.
func (s *Session) Dispatch(ctx context.Context, query string, f filter.Filters, key sortkey.Key) (uint64, error) {
	if _, err := request.New(query, f, key); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, domain.ErrSessionClosed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.query, s.debounced = query, query
	s.filters = f
	s.sortKey = key
	msg, ok := s.nextLocked()
	loaded := s.loaded
	s.mu.Unlock()

	if !ok {
		if !loaded {
			return 0, domain.ErrCatalogNotLoaded
		}
		return 0, domain.ErrIndexNotReady
	}
	if err := s.orch.Send(ctx, msg); err != nil {
		return 0, fmt.Errorf("dispatch: %w", err)
	}
	return msg.Request.Seq(), nil
}

// nextLocked assigns the next sequence number to the current state.
// Dispatch is suspended until the catalog is handed off and the index is ready.
func (s *Session) nextLocked() (orchestrator.Message, bool) {
	if s.closed || !s.loaded || !s.ready {
		return orchestrator.Message{}, false
	}
	req, err := request.New(s.debounced, s.filters, s.sortKey)
	if err != nil {
		s.logger.Warn("Query rejected", zap.Error(err))
		return orchestrator.Message{}, false
	}
	s.seq++
	return orchestrator.Message{Type: orchestrator.MessageSearch, Request: req.WithSeq(s.seq)}, true
}

func (s *Session) send(ctx context.Context, msg orchestrator.Message) {
	if err := s.orch.Send(ctx, msg); err != nil {
		s.logger.Warn("Search dispatch failed", zap.Uint64("seq", msg.Request.Seq()), zap.Error(err))
	}
}

func (s *Session) pump() {
	defer close(s.pumpExited)
	for resp := range s.orch.Responses() {
		switch resp.Type {
		case orchestrator.ResponseReady:
			s.handleReady(resp)
		case orchestrator.ResponseResults:
			s.handleResults(resp)
		}
	}

	s.mu.Lock()
	s.closed = true
	s.broadcastLocked()
	s.mu.Unlock()
}

func (s *Session) handleReady(resp orchestrator.Response) {
	s.mu.Lock()
	current := s.gen
	s.mu.Unlock()
	if resp.Gen != current {
		s.logger.Debug("Stale ready dropped", zap.Uint64("gen", resp.Gen), zap.Uint64("current", current))
		return
	}
	if resp.Err != nil {
		_ = s.fail(ensureLoadError(domain.ReasonIndex, resp.Err))
		return
	}

	// The state captured while loading is dispatched, and OnReady has run,
	// before Load returns.
	s.mu.Lock()
	s.ready = true
	msg, ok := s.nextLocked()
	ctx := s.ctx
	catalog := s.catalog
	cb := s.onReady
	s.mu.Unlock()
	if ok {
		s.send(ctx, msg)
	}

	metrics.CatalogLoadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Catalog ready", zap.Int("products", catalog.Len()))
	if cb != nil {
		cb(catalog)
	}

	s.mu.Lock()
	s.loading = false
	s.broadcastLocked()
	s.mu.Unlock()
}

// handleResults applies only the response to the latest dispatched request.
func (s *Session) handleResults(resp orchestrator.Response) {
	s.mu.Lock()
	if resp.Seq != s.seq {
		latest := s.seq
		s.mu.Unlock()
		metrics.StaleResponsesTotal.Inc()
		s.logger.Debug("Stale response dropped", zap.Uint64("seq", resp.Seq), zap.Uint64("latest", latest))
		return
	}
	s.applied = resp.Seq
	s.results = resp.Results
	s.resultErr = resp.Err
	s.broadcastLocked()
	cb := s.onResults
	s.mu.Unlock()

	if cb != nil && resp.Err == nil {
		cb(resp.Seq, cloneProducts(resp.Results))
	}
}

// Query runs one self-contained search and waits for its results. It
// neither reads nor changes the query state and takes no sequence number,
// so concurrent callers never supersede each other.
func (s *Session) Query(ctx context.Context, query string, f filter.Filters, key sortkey.Key) ([]product.Product, error) {
	req, err := request.New(query, f, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	s.mu.Lock()
	closed, loaded, ready := s.closed, s.loaded, s.ready
	s.mu.Unlock()
	switch {
	case closed:
		return nil, domain.ErrSessionClosed
	case !loaded:
		return nil, domain.ErrCatalogNotLoaded
	case !ready:
		return nil, domain.ErrIndexNotReady
	}

	reply := make(chan orchestrator.Response, 1)
	msg := orchestrator.Message{Type: orchestrator.MessageSearch, Request: req, Reply: reply}
	if err := s.orch.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	for {
		s.mu.Lock()
		closed, changed := s.closed, s.changed
		s.mu.Unlock()

		select {
		case resp := <-reply:
			return replyResults(resp)
		default:
		}
		if closed {
			return nil, domain.ErrSessionClosed
		}

		select {
		case resp := <-reply:
			return replyResults(resp)
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func replyResults(resp orchestrator.Response) ([]product.Product, error) {
	if resp.Err != nil {
		return nil, resp.Err
	}
	return cloneProducts(resp.Results), nil
}

// WaitSeq blocks until the response for seq is applied and returns its
// results. It fails with ErrSuperseded when a newer request made seq stale.
func (s *Session) WaitSeq(ctx context.Context, seq uint64) ([]product.Product, error) {
	for {
		s.mu.Lock()
		switch {
		case s.applied == seq && seq != 0:
			out := cloneProducts(s.results)
			err := s.resultErr
			s.mu.Unlock()
			return out, err
		case s.seq > seq || s.applied > seq:
			s.mu.Unlock()
			return nil, domain.ErrSuperseded
		case s.closed:
			s.mu.Unlock()
			return nil, domain.ErrSessionClosed
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Results returns the latest applied results.
func (s *Session) Results() []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProducts(s.results)
}

// Suggestions returns the titles of the first results.
func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return suggestions(s.results, s.cfg.SuggestionCount)
}

// SuggestionsFor returns suggestion titles for a result set.
func (s *Session) SuggestionsFor(results []product.Product) []string {
	return suggestions(results, s.cfg.SuggestionCount)
}

func suggestions(results []product.Product, n int) []string {
	n = min(n, len(results))
	out := make([]string, n)
	for i := range n {
		out[i] = results[i].Title
	}
	return out
}

// PriceBounds returns the price extent of the loaded catalog.
func (s *Session) PriceBounds() product.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return product.PriceBounds(s.catalog)
}

// Products returns a copy of the loaded catalog in canonical order.
func (s *Session) Products() []product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Products()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Loading:    s.loading,
		Ready:      s.ready,
		Products:   s.catalog.Len(),
		LoadErr:    s.loadErr,
		Query:      s.query,
		SortKey:    s.sortKey,
		LatestSeq:  s.seq,
		AppliedSeq: s.applied,
	}
}

// broadcastLocked wakes every waiter. Caller holds mu.
func (s *Session) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func cloneProducts(items []product.Product) []product.Product {
	if items == nil {
		return []product.Product{}
	}
	out := make([]product.Product, len(items))
	copy(out, items)
	return out
}

// ingestReason classifies an ingestion failure: running out of time is a
// fetch problem, anything else is corrupt text.
func ingestReason(err error) domain.LoadReason {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonFetch
	}
	return domain.ReasonParse
}

func ensureLoadError(reason domain.LoadReason, err error) error {
	var le *domain.LoadError
	if errors.As(err, &le) {
		return err
	}
	return domain.NewLoadError(reason, err)
}
