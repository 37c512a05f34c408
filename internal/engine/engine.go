package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
)

const (
	defaultPollInterval = 10 * time.Second
	defaultFetchTimeout = 15 * time.Second
)

// Fetcher lists all orders visible to a role. Satisfied by *gateway.Client.
type Fetcher interface {
	ListOrders(ctx context.Context, role domain.Role) ([]domain.Order, error)
}

// PushChannel is the optional low-latency hint source for a view. Satisfied
// by *gateway.PushWorker. Push is never a data source; a hint only wakes the
// fetch loop early.
type PushChannel interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// Persister stores the last snapshot of a view across process restarts.
// Satisfied by *storage.Store.
type Persister interface {
	SaveSnapshot(viewKey string, snap *domain.Snapshot) error
	LoadSnapshot(viewKey string) (*domain.Snapshot, error)
}

// Subscriber observes consecutive snapshots in publication order. Callbacks
// run on the engine's loop goroutine: snapshots arrive whole, never torn, and
// with strictly increasing sequence numbers.
type Subscriber func(prev, cur *domain.Snapshot)

// Options carries the optional collaborators and tunables of an Engine.
type Options struct {
	Push         PushChannel
	Store        Persister
	PollInterval time.Duration
	FetchTimeout time.Duration
}

type fetchResult struct {
	snap *domain.Snapshot
	err  error
}

// Engine keeps one view's order mirror current over two redundant channels:
// a fixed-interval poll and push-triggered refetches. All fetches go through
// a single loop goroutine, so at most one is in flight per view; concurrent
// refresh requests coalesce onto the in-flight fetch. The engine is the sole
// writer of the snapshot reference.
type Engine struct {
	viewKey      string
	role         domain.Role
	fetcher      Fetcher
	push         PushChannel
	store        Persister
	pollInterval time.Duration
	fetchTimeout time.Duration

	mu       sync.Mutex
	cur      *domain.Snapshot
	waiters  []chan fetchResult
	inflight bool
	stopped  bool
	applied  uint64 // highest fetch sequence applied so far
	subs     []Subscriber

	issueSeq atomic.Uint64
	wake     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a sync engine for one view. viewKey must be unique per mounted
// view (e.g. "merchant-orders/alice").
func New(viewKey string, role domain.Role, fetcher Fetcher, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &Engine{
		viewKey:      viewKey,
		role:         role,
		fetcher:      fetcher,
		push:         opts.Push,
		store:        opts.Store,
		pollInterval: opts.PollInterval,
		fetchTimeout: opts.FetchTimeout,
		wake:         make(chan struct{}, 1),
	}
}

// Subscribe registers a snapshot observer. Must be called before Start.
func (e *Engine) Subscribe(fn Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Current returns the latest snapshot, which may be a stale restored one or
// nil before the first paint.
func (e *Engine) Current() *domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur
}

// Start restores the cached snapshot for an immediate paint, fetches live
// data right away and then keeps polling. The push channel, when configured,
// only shortens the latency between a server-side change and the next fetch.
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	e.restoreCached()

	if e.push != nil {
		if err := e.push.Connect(ctx); err != nil {
			// Degraded but operational: polling alone keeps the mirror live.
			slog.Warn("Push channel unavailable, polling only", slog.String("view", e.viewKey), slog.Any("error", err))
		}
	}

	e.wg.Add(1)
	go e.run(ctx)
	return nil
}

func (e *Engine) restoreCached() {
	snap := sharedCache.get(e.viewKey)
	if snap == nil && e.store != nil {
		loaded, err := e.store.LoadSnapshot(e.viewKey)
		if err != nil {
			slog.Warn("Snapshot restore failed", slog.String("view", e.viewKey), slog.Any("error", err))
			return
		}
		snap = loaded
	}
	if snap == nil {
		return
	}
	snap = snap.MarkStale()
	e.mu.Lock()
	if e.cur == nil {
		e.cur = snap
	}
	e.mu.Unlock()
	slog.Debug("Restored cached snapshot", slog.String("view", e.viewKey), slog.Int("orders", snap.Len()))
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	e.doFetch(ctx)

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.failWaiters(domain.ErrEngineStopped)
			return
		case <-ticker.C:
			e.doFetch(ctx)
		case <-e.wake:
			e.doFetch(ctx)
		}
	}
}

// RefreshNow requests an out-of-band fetch and returns the resulting
// snapshot. Callers arriving while a fetch is already in flight are coalesced
// onto it: N concurrent callers observe exactly one network round trip and
// share its result. On fetch failure the last-known snapshot is returned
// alongside the error.
func (e *Engine) RefreshNow(ctx context.Context) (*domain.Snapshot, error) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, domain.ErrEngineStopped
	}
	ch := make(chan fetchResult, 1)
	e.waiters = append(e.waiters, ch)
	inflight := e.inflight
	e.mu.Unlock()

	if !inflight {
		e.Poke()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.snap, res.err
	}
}

// Poke wakes the fetch loop without waiting for the result. Non-blocking;
// safe from any goroutine. Used by push hints and post-action reconciles.
func (e *Engine) Poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Stop halts polling, closes the push subscription and invalidates the view's
// cache entry. Idempotent; no timer keeps firing and no late response can
// touch the disposed view afterwards.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		e.mu.Unlock()
		e.failWaiters(domain.ErrEngineStopped)

		if e.cancel != nil {
			e.cancel()
		}
		if e.push != nil {
			e.push.Disconnect()
		}
		e.wg.Wait()
		sharedCache.invalidate(e.viewKey)
		slog.Info("Sync engine stopped", slog.String("view", e.viewKey))
	})
}

func (e *Engine) failWaiters(err error) {
	e.mu.Lock()
	waiters := e.waiters
	e.waiters = nil
	last := e.cur
	e.mu.Unlock()
	for _, w := range waiters {
		w <- fetchResult{snap: last, err: err}
	}
}

// doFetch performs one fetch cycle on the loop goroutine. The per-fetch
// timeout is the release valve of the single-flight guard: a hung request
// cannot stall subsequent polls.
func (e *Engine) doFetch(ctx context.Context) {
	seq := e.issueSeq.Add(1)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.inflight = true
	e.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	orders, err := e.fetcher.ListOrders(fctx, e.role)
	cancel()

	var prev, next *domain.Snapshot
	published := false
	if err != nil {
		infra.GlobalMetrics.RecordFetchError()
		slog.Warn("Order fetch failed, keeping last snapshot",
			slog.String("view", e.viewKey), slog.Uint64("seq", seq), slog.Any("error", err))
	} else {
		infra.GlobalMetrics.RecordFetch()
		prev, next, published = e.apply(seq, orders)
	}

	e.mu.Lock()
	e.inflight = false
	waiters := e.waiters
	e.waiters = nil
	res := fetchResult{snap: e.cur, err: err}
	subs := e.subs
	if e.stopped {
		published = false
	}
	e.mu.Unlock()

	// Waiters first: a RefreshNow caller unblocks before the (possibly slow)
	// subscriber callbacks run.
	for _, w := range waiters {
		w <- res
	}

	if !published {
		return
	}
	sharedCache.set(e.viewKey, next)
	if e.store != nil {
		if err := e.store.SaveSnapshot(e.viewKey, next); err != nil {
			slog.Warn("Snapshot persist failed", slog.String("view", e.viewKey), slog.Any("error", err))
		}
	}
	for _, fn := range subs {
		fn(prev, next)
	}
}

// apply installs a fetched order set as the new authoritative snapshot,
// unless a newer fetch already landed or the engine was stopped meanwhile.
func (e *Engine) apply(seq uint64, orders []domain.Order) (prev, next *domain.Snapshot, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil, nil, false
	}
	if seq <= e.applied {
		infra.GlobalMetrics.RecordStaleDropped()
		slog.Debug("Discarding stale fetch result", slog.String("view", e.viewKey), slog.Uint64("seq", seq))
		return nil, nil, false
	}
	prev = e.cur
	next = e.validated(prev, domain.NewSnapshot(seq, time.Now(), orders))
	e.applied = seq
	e.cur = next
	return prev, next, true
}

// validated cross-checks a fresh snapshot against the previous one. A status
// regression or a change to an immutable field is a protocol violation: it is
// logged, counted, and the trusted previous record is kept in place of the
// corrupt one.
func (e *Engine) validated(prev, next *domain.Snapshot) *domain.Snapshot {
	if prev == nil || prev.Stale() || prev.Len() == 0 {
		return next
	}

	var fixed []domain.Order
	for _, cur := range next.Orders() {
		before, ok := prev.Get(cur.Key())
		if !ok {
			continue
		}
		if !domain.CanAdvance(before.Status, cur.Status) {
			infra.GlobalMetrics.RecordProtocolViolation()
			slog.Error("Order status regression detected",
				slog.String("view", e.viewKey),
				slog.String("kind", string(cur.Kind)), slog.Int64("id", cur.ID),
				slog.String("from", string(before.Status)), slog.String("to", string(cur.Status)))
			fixed = append(fixed, before)
			continue
		}
		if !cur.AmountRequested.Equal(before.AmountRequested) ||
			!cur.TotalPrice.Equal(before.TotalPrice) ||
			!cur.CreatedAt.Equal(before.CreatedAt) {
			infra.GlobalMetrics.RecordProtocolViolation()
			slog.Error("Immutable order field changed",
				slog.String("view", e.viewKey),
				slog.String("kind", string(cur.Kind)), slog.Int64("id", cur.ID))
			fixed = append(fixed, before)
		}
	}
	if len(fixed) == 0 {
		return next
	}

	merged := next.Orders()
	byKey := make(map[domain.OrderKey]int, len(merged))
	for i, o := range merged {
		byKey[o.Key()] = i
	}
	for _, o := range fixed {
		merged[byKey[o.Key()]] = o
	}
	return domain.NewSnapshot(next.Seq(), next.TakenAt(), merged)
}
