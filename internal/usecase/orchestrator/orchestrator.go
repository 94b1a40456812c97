package orchestrator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/fuzzy"
	"github.com/kailas-cloud/shelf/internal/metrics"
)

const (
	// DefaultWorkers bounds concurrent searches.
	DefaultWorkers = 4
	inboxSize      = 16
	outboxSize     = 64
)

// snapshot is one built index plus the catalog it covers. inflight counts
// searches still reading it, so a replaced index is closed only after they finish.
type snapshot struct {
	index    Index
	catalog  product.Catalog
	inflight sync.WaitGroup
}

func (s *snapshot) release(logger *zap.Logger) {
	go func() {
		s.inflight.Wait()
		if err := s.index.Close(); err != nil {
			logger.Warn("Failed to close index", zap.Error(err))
		}
	}()
}

// Orchestrator owns the fuzzy index of one session. It processes inbound
// messages one at a time on its own goroutine and runs searches on a
// bounded worker pool.
type Orchestrator struct {
	id      string
	build   Builder
	runner  Runner
	workers int
	logger  *zap.Logger

	inbox   chan Message
	outbox  chan Response
	done    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	builds    atomic.Int64
}

// New creates an orchestrator. Call Start before Send.
func New(build Builder, runner Runner, logger *zap.Logger) *Orchestrator {
	id := ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
	return &Orchestrator{
		id:      id,
		build:   build,
		runner:  runner,
		workers: DefaultWorkers,
		logger:  logger.With(zap.String("session_id", id)),
		inbox:   make(chan Message, inboxSize),
		outbox:  make(chan Response, outboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// WithWorkers configures the search pool size.
func (o *Orchestrator) WithWorkers(n int) *Orchestrator {
	if n > 0 {
		o.workers = n
	}
	return o
}

// FuzzyBuilder builds bleve-backed indexes with opts.
func FuzzyBuilder(opts fuzzy.Options) Builder {
	return func(catalog product.Catalog) (Index, error) {
		return fuzzy.Build(catalog, opts)
	}
}

// ID returns the session identifier.
func (o *Orchestrator) ID() string { return o.id }

// BuildCount returns how many indexes were built successfully.
func (o *Orchestrator) BuildCount() int64 { return o.builds.Load() }

// Responses delivers outbound messages. It is closed after the
// orchestrator stops.
func (o *Orchestrator) Responses() <-chan Response { return o.outbox }

// Start launches the message loop. It stops when ctx is canceled or Close is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		go o.loop(ctx)
	})
}

// Send enqueues a message. It blocks while the inbox is full.
func (o *Orchestrator) Send(ctx context.Context, msg Message) error {
	select {
	case <-o.done:
		return domain.ErrSessionClosed
	default:
	}
	select {
	case o.inbox <- msg:
		return nil
	case <-o.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop, waits for running searches and releases the index.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.done) })
	o.startOnce.Do(func() { go o.loop(context.Background()) })
	<-o.stopped
}

func (o *Orchestrator) loop(ctx context.Context) {
	var (
		current *snapshot
		workers sync.WaitGroup
		sem     = make(chan struct{}, o.workers)
	)
	ctx, cancel := context.WithCancel(ctx)

	defer func() {
		cancel()
		workers.Wait()
		if current != nil {
			current.release(o.logger)
		}
		close(o.outbox)
		close(o.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.done:
			return
		case msg := <-o.inbox:
			switch msg.Type {
			case MessageInit:
				current = o.handleInit(ctx, current, msg)
			case MessageSearch:
				if current == nil {
					o.reply(ctx, msg, Response{
						Type: ResponseResults,
						Seq:  msg.Request.Seq(),
						Err:  domain.ErrIndexNotReady,
					})
					continue
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				case <-o.done:
					return
				}
				snap := current
				snap.inflight.Add(1)
				workers.Add(1)
				go func() {
					defer func() {
						<-sem
						snap.inflight.Done()
						workers.Done()
					}()
					o.handleSearch(ctx, snap, msg)
				}()
			default:
				o.logger.Warn("Unknown message type", zap.String("type", string(msg.Type)))
			}
		}
	}
}

// handleInit builds a fresh index and swaps it in. A failed build keeps
// the previous index.
func (o *Orchestrator) handleInit(ctx context.Context, current *snapshot, msg Message) *snapshot {
	start := time.Now()
	idx, err := o.build(msg.Catalog)
	duration := time.Since(start)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexBuild) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
		}
		o.logger.Error("Index build failed", zap.Error(err), zap.Int("products", msg.Catalog.Len()))
		o.emit(ctx, Response{Type: ResponseReady, Gen: msg.Gen, Err: domain.NewLoadError(domain.ReasonIndex, err)})
		return current
	}

	o.builds.Add(1)
	metrics.IndexBuildsTotal.Inc()
	metrics.IndexBuildDuration.Observe(duration.Seconds())
	o.logger.Info("Index built",
		zap.Int("products", msg.Catalog.Len()),
		zap.Duration("duration", duration),
	)

	if current != nil {
		current.release(o.logger)
	}
	o.emit(ctx, Response{Type: ResponseReady, Gen: msg.Gen})
	return &snapshot{index: idx, catalog: msg.Catalog}
}

func (o *Orchestrator) handleSearch(ctx context.Context, snap *snapshot, msg Message) {
	req := msg.Request
	results, err := o.runner.Run(ctx, snap.index, snap.catalog, &req)
	if err != nil {
		o.logger.Debug("Search failed", zap.Uint64("seq", req.Seq()), zap.Error(err))
	}
	o.reply(ctx, msg, Response{Type: ResponseResults, Seq: req.Seq(), Results: results, Err: err})
}

// reply routes a search response to the caller's own channel when one was
// given, otherwise to the shared outbox.
func (o *Orchestrator) reply(ctx context.Context, msg Message, resp Response) {
	if msg.Reply == nil {
		o.emit(ctx, resp)
		return
	}
	select {
	case msg.Reply <- resp:
	default:
		o.logger.Warn("Reply channel full, response dropped", zap.Uint64("seq", resp.Seq))
	}
}

func (o *Orchestrator) emit(ctx context.Context, resp Response) {
	select {
	case o.outbox <- resp:
	case <-ctx.Done():
	case <-o.done:
	}
}
