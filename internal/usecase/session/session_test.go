package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/domain"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/domain/search/filter"
	"github.com/kailas-cloud/shelf/internal/domain/search/request"
	"github.com/kailas-cloud/shelf/internal/domain/search/sortkey"
	"github.com/kailas-cloud/shelf/internal/fuzzy"
	"github.com/kailas-cloud/shelf/internal/metrics"
	"github.com/kailas-cloud/shelf/internal/usecase/ingest"
	"github.com/kailas-cloud/shelf/internal/usecase/orchestrator"
	"github.com/kailas-cloud/shelf/internal/usecase/search"
)

const shoesCSV = `ID,TITLE,VENDOR,STATUS,DESCRIPTION,PRODUCT_TYPE,PRICE_RANGE,TAGS,HANDLE
1,Red Shoe,Acme,active,,,"{""max_variant_price"":{""amount"":""20""}}",,red-shoe
2,Blue Shoe,Acme,active,,,"{""max_variant_price"":{""amount"":""50""}}",,blue-shoe
3,Red Hat,Acme,active,,,"{""max_variant_price"":{""amount"":""10""}}",,red-hat
`

// --- Fakes ---

type sourceFunc func(ctx context.Context) ([]byte, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

func staticSource(s string) Source {
	return sourceFunc(func(context.Context) ([]byte, error) { return []byte(s), nil })
}

// fakeOrch records dispatched messages and lets tests deliver responses.
type fakeOrch struct {
	mu       sync.Mutex
	sent     []orchestrator.Message
	out      chan orchestrator.Response
	readyErr error
	once     sync.Once
}

func newFakeOrch() *fakeOrch {
	return &fakeOrch{out: make(chan orchestrator.Response, 64)}
}

func (f *fakeOrch) Start(context.Context) {}

func (f *fakeOrch) Send(_ context.Context, msg orchestrator.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if msg.Type == orchestrator.MessageInit {
		f.out <- orchestrator.Response{Type: orchestrator.ResponseReady, Gen: msg.Gen, Err: f.readyErr}
	}
	return nil
}

func (f *fakeOrch) Responses() <-chan orchestrator.Response { return f.out }

func (f *fakeOrch) Close() { f.once.Do(func() { close(f.out) }) }

func (f *fakeOrch) searches() []orchestrator.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orchestrator.Message
	for _, m := range f.sent {
		if m.Type == orchestrator.MessageSearch {
			out = append(out, m)
		}
	}
	return out
}

// --- Helpers ---

func newIngester() Ingester {
	return ingest.NewWorker(ingest.New(zap.NewNop()))
}

func newRealSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	orch := orchestrator.New(
		orchestrator.FuzzyBuilder(fuzzy.DefaultOptions()),
		search.New(zap.NewNop()),
		zap.NewNop(),
	)
	s := New(orch, newIngester(), cfg, zap.NewNop())
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func newFakeSession(t *testing.T, orch *fakeOrch, cfg Config) *Session {
	t.Helper()
	s := New(orch, newIngester(), cfg, zap.NewNop())
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func mustLoad(t *testing.T, s *Session, src Source) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Load(ctx, src); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func ids(items []product.Product) []int {
	out := make([]int, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

// --- Tests ---

func TestLoad_Ready(t *testing.T) {
	s := newRealSession(t, Config{})

	var readyWith atomic.Int64
	s.OnReady(func(c product.Catalog) { readyWith.Store(int64(c.Len())) })
	s.OnFailed(func(err error) { t.Errorf("unexpected failure: %v", err) })

	mustLoad(t, s, staticSource(shoesCSV))

	if readyWith.Load() != 3 {
		t.Errorf("OnReady catalog size = %d, want 3", readyWith.Load())
	}
	st := s.State()
	if !st.Ready || st.Loading || st.Products != 3 || st.LoadErr != nil {
		t.Errorf("unexpected state %+v", st)
	}
	if b := s.PriceBounds(); b.Min != 10 || b.Max != 50 {
		t.Errorf("PriceBounds = %+v, want {10 50}", b)
	}
	if got := ids(s.Products()); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Products ids = %v", got)
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name   string
		orch   *fakeOrch
		src    Source
		reason domain.LoadReason
	}{
		{
			name: "fetch",
			orch: newFakeOrch(),
			src: sourceFunc(func(context.Context) ([]byte, error) {
				return nil, errors.New("connection refused")
			}),
			reason: domain.ReasonFetch,
		},
		{
			name:   "parse",
			orch:   newFakeOrch(),
			src:    staticSource("ID,TITLE\n1,\"broken\"x\n"),
			reason: domain.ReasonParse,
		},
		{
			name:   "index",
			orch:   &fakeOrch{out: make(chan orchestrator.Response, 4), readyErr: domain.ErrIndexBuild},
			src:    staticSource(shoesCSV),
			reason: domain.ReasonIndex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSession(t, tt.orch, Config{})

			var failed atomic.Value
			s.OnFailed(func(err error) { failed.Store(err) })
			s.OnReady(func(product.Catalog) { t.Error("OnReady must not fire") })

			err := s.Load(context.Background(), tt.src)
			if got := domain.LoadReasonOf(err); got != tt.reason {
				t.Fatalf("reason = %q, want %q (err %v)", got, tt.reason, err)
			}
			if failed.Load() == nil {
				t.Error("OnFailed was not called")
			}
			st := s.State()
			if st.Loading || st.Ready || st.Products != 0 {
				t.Errorf("unexpected state after failure %+v", st)
			}
			if len(s.Products()) != 0 {
				t.Error("failed load must leave zero products")
			}
		})
	}
}

func TestDispatch_BeforeLoad(t *testing.T) {
	s := newFakeSession(t, newFakeOrch(), Config{})

	_, err := s.Dispatch(context.Background(), "shoe", filter.New(), "")
	if !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("expected ErrCatalogNotLoaded, got %v", err)
	}
}

func TestDispatch_FilterAndSort(t *testing.T) {
	s := newRealSession(t, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	pr, _ := filter.NewPriceRange(15, 60)
	ctx := context.Background()
	seq, err := s.Dispatch(ctx, "", filter.New(filter.WithPriceRange(pr)), sortkey.PriceAsc)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, err := s.WaitSeq(ctx, seq)
	if err != nil {
		t.Fatalf("WaitSeq: %v", err)
	}
	if g := ids(got); len(g) != 2 || g[0] != 1 || g[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", g)
	}
	if sg := s.Suggestions(); len(sg) != 2 || sg[0] != "Red Shoe" {
		t.Errorf("Suggestions = %v", sg)
	}
}

func TestDispatch_FuzzyQuery(t *testing.T) {
	s := newRealSession(t, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	ctx := context.Background()
	seq, err := s.Dispatch(ctx, "shoe", filter.New(), "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, err := s.WaitSeq(ctx, seq)
	if err != nil {
		t.Fatalf("WaitSeq: %v", err)
	}
	if g := ids(got); len(g) != 2 || g[0] != 1 || g[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", g)
	}

	seq, _ = s.Dispatch(ctx, "zzz-nonexistent", filter.New(), "")
	got, err = s.WaitSeq(ctx, seq)
	if err != nil {
		t.Fatalf("WaitSeq: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", ids(got))
	}
	if len(s.Suggestions()) != 0 {
		t.Error("expected no suggestions")
	}
}

func TestSetQuery_Debounced(t *testing.T) {
	orch := newFakeOrch()
	s := newFakeSession(t, orch, Config{Debounce: 30 * time.Millisecond})
	mustLoad(t, s, staticSource(shoesCSV))

	before := len(orch.searches())
	for _, q := range []string{"s", "sh", "sho", "shoe"} {
		if err := s.SetQuery(q); err != nil {
			t.Fatalf("SetQuery: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, "debounced dispatch", func() bool { return len(orch.searches()) > before })
	time.Sleep(60 * time.Millisecond)

	sent := orch.searches()[before:]
	if len(sent) != 1 {
		t.Fatalf("expected one dispatch after quiescence, got %d", len(sent))
	}
	if q := sent[0].Request.Query(); q != "shoe" {
		t.Errorf("dispatched query = %q, want %q", q, "shoe")
	}
}

func TestSetQuery_TooLong(t *testing.T) {
	s := newFakeSession(t, newFakeOrch(), Config{})
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}
	if err := s.SetQuery(string(long)); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSetFiltersAndSort_DispatchImmediately(t *testing.T) {
	orch := newFakeOrch()
	s := newFakeSession(t, orch, Config{Debounce: time.Hour})
	mustLoad(t, s, staticSource(shoesCSV))

	before := len(orch.searches())
	pr, _ := filter.NewPriceRange(0, 30)
	seq1 := s.SetFilters(filter.New(filter.WithPriceRange(pr)))
	seq2 := s.SetSort(sortkey.NameAsc)

	if seq1 == 0 || seq2 != seq1+1 {
		t.Fatalf("seqs = %d, %d; want consecutive", seq1, seq2)
	}
	sent := orch.searches()[before:]
	if len(sent) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(sent))
	}
	if sent[1].Request.SortKey() != sortkey.NameAsc || sent[1].Request.Filters().PriceRange() == nil {
		t.Error("second dispatch must carry both filters and sort")
	}
}

func TestDispatch_SuspendedUntilReady(t *testing.T) {
	orch := newFakeOrch()
	s := newFakeSession(t, orch, Config{})

	if seq := s.SetSort(sortkey.PriceDesc); seq != 0 {
		t.Fatalf("dispatch before ready returned seq %d", seq)
	}
	if len(orch.searches()) != 0 {
		t.Fatal("nothing may be dispatched before the index is ready")
	}

	mustLoad(t, s, staticSource(shoesCSV))

	waitFor(t, "dispatch on ready", func() bool { return len(orch.searches()) == 1 })
	if key := orch.searches()[0].Request.SortKey(); key != sortkey.PriceDesc {
		t.Errorf("state captured before ready was lost: sort = %q", key)
	}
}

func TestStaleResponsesDropped(t *testing.T) {
	orch := newFakeOrch()
	s := newFakeSession(t, orch, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	ctx := context.Background()
	seqA, _ := s.Dispatch(ctx, "a", filter.New(), "")
	seqB, _ := s.Dispatch(ctx, "b", filter.New(), "")

	before := testutil.ToFloat64(metrics.StaleResponsesTotal)

	newer := []product.Product{{ID: 2, Title: "Newer"}}
	older := []product.Product{{ID: 1, Title: "Older"}}
	orch.out <- orchestrator.Response{Type: orchestrator.ResponseResults, Seq: seqB, Results: newer}
	orch.out <- orchestrator.Response{Type: orchestrator.ResponseResults, Seq: seqA, Results: older}

	got, err := s.WaitSeq(ctx, seqB)
	if err != nil {
		t.Fatalf("WaitSeq: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("results = %v, want newer", ids(got))
	}

	waitFor(t, "stale response counted", func() bool {
		return testutil.ToFloat64(metrics.StaleResponsesTotal) == before+1
	})
	if r := s.Results(); len(r) != 1 || r[0].ID != 2 {
		t.Errorf("stale response overwrote results: %v", ids(r))
	}
	if _, err := s.WaitSeq(ctx, seqA); !errors.Is(err, domain.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded for older seq, got %v", err)
	}
}

func TestWaitSeq_ContextCanceled(t *testing.T) {
	orch := newFakeOrch()
	s := newFakeSession(t, orch, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	seq, _ := s.Dispatch(context.Background(), "x", filter.New(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.WaitSeq(ctx, seq); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSuggestions_FirstFiveTitles(t *testing.T) {
	s := New(newFakeOrch(), newIngester(), Config{}, zap.NewNop())
	results := make([]product.Product, 8)
	for i := range results {
		results[i] = product.Product{ID: i, Title: string(rune('A' + i))}
	}

	got := s.SuggestionsFor(results)
	want := []string{"A", "B", "C", "D", "E"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if len(s.SuggestionsFor(nil)) != 0 {
		t.Error("expected no suggestions for empty results")
	}
}

func TestClose_Idempotent(t *testing.T) {
	orch := newFakeOrch()
	s := New(orch, newIngester(), Config{}, zap.NewNop())
	s.Start(context.Background())
	s.Close()
	s.Close()

	if _, err := s.Dispatch(context.Background(), "x", filter.New(), ""); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.Load(context.Background(), staticSource(shoesCSV)); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed from Load, got %v", err)
	}
}

// stalledIngester never produces an outcome.
type stalledIngester struct{}

func (stalledIngester) Post(context.Context, []byte) <-chan ingest.Outcome {
	return make(chan ingest.Outcome)
}

func TestLoad_IngestTimeoutIsFetchFailure(t *testing.T) {
	s := New(newFakeOrch(), stalledIngester{}, Config{}, zap.NewNop())
	s.Start(context.Background())
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Load(ctx, staticSource(shoesCSV))
	if got := domain.LoadReasonOf(err); got != domain.ReasonFetch {
		t.Fatalf("reason = %q, want fetch (err %v)", got, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
}

func TestLoad_ReadyFromAbandonedLoadIgnored(t *testing.T) {
	var built atomic.Int64
	slow := func(c product.Catalog) (orchestrator.Index, error) {
		time.Sleep(300 * time.Millisecond)
		ix, err := fuzzy.Build(c, fuzzy.DefaultOptions())
		if err != nil {
			return nil, err
		}
		built.Add(1)
		return ix, nil
	}
	orch := orchestrator.New(slow, search.New(zap.NewNop()), zap.NewNop())
	s := New(orch, newIngester(), Config{}, zap.NewNop())
	s.Start(context.Background())
	t.Cleanup(s.Close)

	first, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.Load(first, staticSource(shoesCSV)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first load: expected deadline exceeded, got %v", err)
	}

	mustLoad(t, s, staticSource(shoesCSV))
	if got := built.Load(); got != 2 {
		t.Fatalf("second load returned after %d builds, want 2", got)
	}

	ctx := context.Background()
	seq, err := s.Dispatch(ctx, "shoe", filter.New(), "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got, err := s.WaitSeq(ctx, seq)
	if err != nil {
		t.Fatalf("WaitSeq: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ids = %v, want both shoes", ids(got))
	}
}

func TestQuery_BeforeLoad(t *testing.T) {
	s := newFakeSession(t, newFakeOrch(), Config{})

	_, err := s.Query(context.Background(), "shoe", filter.New(), "")
	if !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("expected ErrCatalogNotLoaded, got %v", err)
	}
}

func TestQuery_ConcurrentCallersIndependent(t *testing.T) {
	s := newRealSession(t, Config{})
	mustLoad(t, s, staticSource(shoesCSV))
	latest := s.State().LatestSeq

	const callers = 16
	var (
		wg   sync.WaitGroup
		errs = make(chan error, callers)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Query(context.Background(), "shoe", filter.New(), sortkey.PriceDesc)
			if err != nil {
				errs <- err
				return
			}
			if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
				errs <- fmt.Errorf("ids = %v, want [2 1]", ids(got))
			}
		}()
	}
	// A live dispatch in the middle must not disturb independent queries.
	if _, err := s.Dispatch(context.Background(), "hat", filter.New(), ""); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := s.State().LatestSeq; got != latest+1 {
		t.Errorf("LatestSeq = %d, want %d: queries must not take sequence numbers", got, latest+1)
	}
}

func TestQuery_InvalidRequest(t *testing.T) {
	s := newRealSession(t, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	_, err := s.Query(context.Background(), strings.Repeat("x", request.MaxQueryLength+1), filter.New(), "")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestOnResults_FiresForLatestRequest(t *testing.T) {
	s := newRealSession(t, Config{})
	mustLoad(t, s, staticSource(shoesCSV))

	type applied struct {
		seq uint64
		ids []int
	}
	got := make(chan applied, 8)
	s.OnResults(func(seq uint64, results []product.Product) {
		got <- applied{seq: seq, ids: ids(results)}
	})

	seq := s.SetSort(sortkey.PriceAsc)
	if seq == 0 {
		t.Fatal("SetSort did not dispatch")
	}
	timeout := time.After(5 * time.Second)
	for {
		select {
		case a := <-got:
			if a.seq < seq {
				continue // the dispatch made on ready
			}
			if a.seq != seq {
				t.Fatalf("seq = %d, want %d", a.seq, seq)
			}
			want := []int{3, 1, 2}
			if len(a.ids) != len(want) || a.ids[0] != 3 || a.ids[1] != 1 || a.ids[2] != 2 {
				t.Errorf("ids = %v, want %v", a.ids, want)
			}
			return
		case <-timeout:
			t.Fatal("OnResults was not called")
		}
	}
}
