package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
	"github.com/Shehuna2/MafitaPay-sub002/internal/notify"
	"github.com/Shehuna2/MafitaPay-sub002/internal/view"
)

// fakeFetcher serves queued pages and counts invocations. When gate is set,
// calls block until the gate is released, which lets tests hold a fetch in
// flight deliberately.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	queue   [][]domain.Order
	errs    []error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) ListOrders(ctx context.Context, role domain.Role) ([]domain.Order, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.queue) {
		return f.queue[n], nil
	}
	if len(f.queue) > 0 {
		return f.queue[len(f.queue)-1], nil
	}
	return nil, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func withdrawOrder(id int64, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:              id,
		Kind:            domain.KindWithdraw,
		Status:          status,
		AmountRequested: decimal.NewFromInt(5000),
		TotalPrice:      decimal.NewFromInt(7750000),
		CreatedAt:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

// snapshotRecorder collects published snapshots for assertions.
type snapshotRecorder struct {
	ch chan *domain.Snapshot
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{ch: make(chan *domain.Snapshot, 16)}
}

func (r *snapshotRecorder) subscriber(prev, cur *domain.Snapshot) {
	r.ch <- cur
}

func (r *snapshotRecorder) next(t *testing.T) *domain.Snapshot {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestEngine_CoalescesConcurrentRefreshes(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		queue:   [][]domain.Order{{withdrawOrder(7, domain.StatusPending)}},
		gate:    gate,
		started: make(chan struct{}, 1),
	}
	e := New("test-coalesce", domain.RoleMerchant, fetcher, Options{PollInterval: time.Hour})
	defer e.Stop()

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-fetcher.started // initial fetch is now held in flight by the gate

	// Concurrent refreshes must coalesce onto the in-flight fetch instead of
	// issuing their own.
	type result struct {
		snap *domain.Snapshot
		err  error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			snap, err := e.RefreshNow(context.Background())
			results <- result{snap, err}
		}()
	}
	time.Sleep(50 * time.Millisecond) // let both callers register
	close(gate)

	first := <-results
	second := <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("unexpected errors: %v, %v", first.err, second.err)
	}
	if first.snap != second.snap {
		t.Error("both callers must observe the same fetch's snapshot")
	}
	if first.snap.Len() != 1 {
		t.Errorf("snapshot len = %d, want 1", first.snap.Len())
	}
	if got := fetcher.callCount(); got != 1 {
		t.Errorf("fetch count = %d, want exactly 1", got)
	}
}

func TestEngine_PendingToPaidEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{
		queue: [][]domain.Order{
			{withdrawOrder(7, domain.StatusPending)},
			{withdrawOrder(7, domain.StatusPaid)},
		},
	}
	e := New("test-endtoend", domain.RoleMerchant, fetcher, Options{PollInterval: time.Hour})
	defer e.Stop()

	recorder := newSnapshotRecorder()
	e.Subscribe(recorder.subscriber)

	sink := &countingNotifier{}
	dispatcher := notify.NewDispatcher(domain.RoleMerchant, sink, time.Second)
	e.Subscribe(dispatcher.OnSnapshot)

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	key := domain.OrderKey{Kind: domain.KindWithdraw, ID: 7}

	snap1 := recorder.next(t)
	if got, _ := snap1.Get(key); got.Status != domain.StatusPending {
		t.Fatalf("first snapshot status = %s, want pending", got.Status)
	}

	if _, err := e.RefreshNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap2 := recorder.next(t)
	if got, _ := snap2.Get(key); got.Status != domain.StatusPaid {
		t.Fatalf("second snapshot status = %s, want paid", got.Status)
	}
	if snap2.Seq() <= snap1.Seq() {
		t.Error("snapshot sequence must be strictly increasing")
	}

	// First snapshot has no previous; the pending→paid withdraw transition
	// is outside the merchant withdraw predicate. No alerts either way.
	if sink.plays() != 0 || sink.toastCount() != 0 {
		t.Errorf("expected no notifications, got %d plays, %d toasts", sink.plays(), sink.toastCount())
	}

	paid := view.Project(snap2, view.Filter{Status: domain.StatusPaid})
	if len(paid) != 1 || paid[0].ID != 7 {
		t.Fatalf("paid projection = %v, want exactly order 7", paid)
	}
}

func TestEngine_StaleFetchDiscarded(t *testing.T) {
	e := New("test-stale", domain.RoleMerchant, &fakeFetcher{}, Options{})

	e.apply(2, []domain.Order{withdrawOrder(7, domain.StatusPaid)})
	e.apply(1, []domain.Order{withdrawOrder(7, domain.StatusPending)})

	got, _ := e.Current().Get(domain.OrderKey{Kind: domain.KindWithdraw, ID: 7})
	if got.Status != domain.StatusPaid {
		t.Errorf("status = %s, want paid: late result with lower sequence must be discarded", got.Status)
	}
	if e.Current().Seq() != 2 {
		t.Errorf("seq = %d, want 2", e.Current().Seq())
	}
	e.Stop()
}

func TestEngine_RejectsStatusRegression(t *testing.T) {
	e := New("test-regress", domain.RoleMerchant, &fakeFetcher{}, Options{})

	e.apply(1, []domain.Order{withdrawOrder(7, domain.StatusPaid)})
	e.apply(2, []domain.Order{withdrawOrder(7, domain.StatusPending)})

	got, _ := e.Current().Get(domain.OrderKey{Kind: domain.KindWithdraw, ID: 7})
	if got.Status != domain.StatusPaid {
		t.Errorf("status = %s, want paid: a regression is corruption, not an update", got.Status)
	}
	e.Stop()
}

func TestEngine_RejectsImmutableFieldChange(t *testing.T) {
	e := New("test-immutable", domain.RoleMerchant, &fakeFetcher{}, Options{})

	original := withdrawOrder(7, domain.StatusPending)
	mutated := original
	mutated.AmountRequested = decimal.NewFromInt(9999)

	e.apply(1, []domain.Order{original})
	e.apply(2, []domain.Order{mutated})

	got, _ := e.Current().Get(domain.OrderKey{Kind: domain.KindWithdraw, ID: 7})
	if !got.AmountRequested.Equal(original.AmountRequested) {
		t.Errorf("amount = %s, want original %s", got.AmountRequested, original.AmountRequested)
	}
	e.Stop()
}

func TestEngine_KeepsLastSnapshotOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		queue: [][]domain.Order{{withdrawOrder(7, domain.StatusPending)}},
		errs:  []error{nil, errors.New("gateway timeout")},
	}
	e := New("test-failure", domain.RoleMerchant, fetcher, Options{PollInterval: time.Hour})
	defer e.Stop()

	recorder := newSnapshotRecorder()
	e.Subscribe(recorder.subscriber)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap1 := recorder.next(t)

	snap, err := e.RefreshNow(context.Background())
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if snap != snap1 {
		t.Error("failed refresh should hand back the retained last-known snapshot")
	}
	if e.Current() != snap1 {
		t.Error("transient failure must not clear the mirror")
	}
}

func TestEngine_StopIsIdempotentAndFinal(t *testing.T) {
	fetcher := &fakeFetcher{queue: [][]domain.Order{{withdrawOrder(1, domain.StatusPending)}}}
	e := New("test-stop", domain.RoleMerchant, fetcher, Options{PollInterval: time.Hour})

	recorder := newSnapshotRecorder()
	e.Subscribe(recorder.subscriber)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	recorder.next(t)

	if CachedSnapshot("test-stop") == nil {
		t.Error("running engine should publish to the keyed cache")
	}

	e.Stop()
	e.Stop() // must not panic or block

	if CachedSnapshot("test-stop") != nil {
		t.Error("Stop must invalidate the view's cache entry")
	}
	if _, err := e.RefreshNow(context.Background()); !errors.Is(err, domain.ErrEngineStopped) {
		t.Errorf("RefreshNow after Stop = %v, want ErrEngineStopped", err)
	}
}

func TestEngine_RestoresCachedSnapshotAsStalePaint(t *testing.T) {
	saved := domain.NewSnapshot(9, time.Now(), []domain.Order{withdrawOrder(3, domain.StatusPaid)})
	store := &fakeStore{snapshots: map[string]*domain.Snapshot{"test-restore": saved}}

	gate := make(chan struct{})
	fetcher := &fakeFetcher{gate: gate}
	e := New("test-restore", domain.RoleMerchant, fetcher, Options{
		Store:        store,
		PollInterval: time.Hour,
	})
	defer e.Stop()
	defer close(gate)

	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	cur := e.Current()
	if cur == nil || cur.Len() != 1 {
		t.Fatal("expected restored snapshot before the first live fetch")
	}
	if !cur.Stale() {
		t.Error("restored snapshot must be flagged stale")
	}
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string]*domain.Snapshot
}

func (f *fakeStore) SaveSnapshot(viewKey string, snap *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[viewKey] = snap
	return nil
}

func (f *fakeStore) LoadSnapshot(viewKey string) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[viewKey], nil
}

type countingNotifier struct {
	mu     sync.Mutex
	played int
	toasts int
}

func (c *countingNotifier) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.played++
}

func (c *countingNotifier) Toast(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts++
}

func (c *countingNotifier) plays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.played
}

func (c *countingNotifier) toastCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toasts
}
