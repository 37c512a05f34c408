package domain

import (
	"sort"
	"time"
)

// Snapshot is an immutable mirror of every order visible to one view at a
// point in time. A nil *Snapshot is the "no prior snapshot" sentinel; the
// first real snapshot of a view therefore never triggers new-order alerts.
//
// Snapshots are value-built once and never mutated; "updating" means the
// engine producing a new snapshot with a higher sequence number.
type Snapshot struct {
	seq     uint64
	takenAt time.Time
	stale   bool
	orders  map[OrderKey]Order
}

// NewSnapshot builds a snapshot from a merged fetch result. Records carrying
// an unknown status are dropped rather than poisoning the mirror. Later
// duplicates of a key win, matching server list semantics.
func NewSnapshot(seq uint64, takenAt time.Time, orders []Order) *Snapshot {
	m := make(map[OrderKey]Order, len(orders))
	for _, o := range orders {
		if !o.Status.Valid() {
			continue
		}
		m[o.Key()] = o
	}
	return &Snapshot{seq: seq, takenAt: takenAt, orders: m}
}

// Seq returns the snapshot's engine-issued sequence number.
func (s *Snapshot) Seq() uint64 { return s.seq }

// TakenAt returns the time the snapshot was constructed.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Stale reports whether the snapshot predates the current engine run, i.e.
// it was restored from the local cache and not yet confirmed by a live fetch.
func (s *Snapshot) Stale() bool { return s.stale }

// Len returns the number of orders in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.orders)
}

// Has reports whether key is present.
func (s *Snapshot) Has(key OrderKey) bool {
	if s == nil {
		return false
	}
	_, ok := s.orders[key]
	return ok
}

// Get returns the order for key, if present.
func (s *Snapshot) Get(key OrderKey) (Order, bool) {
	if s == nil {
		return Order{}, false
	}
	o, ok := s.orders[key]
	return o, ok
}

// Orders returns all orders newest-first. The slice is freshly allocated, so
// callers may reorder it without affecting the snapshot.
func (s *Snapshot) Orders() []Order {
	if s == nil {
		return nil
	}
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// MarkStale returns a copy flagged as stale, sharing the underlying order
// set. Used when a cached snapshot is restored as the initial paint.
func (s *Snapshot) MarkStale() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.stale = true
	return &c
}
