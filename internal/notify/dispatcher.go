package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
)

// Diff returns the orders in cur that warrant alerting the given role, as a
// pure function of two consecutive snapshots. Nothing is alertable on the
// first real snapshot of a view (prev nil) or against a restored stale
// snapshot — both would flood the actor with "new" orders that are anything
// but.
//
// A merchant is alerted by new withdraw orders arriving in pending and by
// deposit orders transitioning into paid (the buyer claims payment, release
// is now on the merchant). A trader is alerted by new deposit orders in
// pending (their offer was taken) and by withdraw orders transitioning into
// completed (their cash-out was released).
func Diff(prev, cur *domain.Snapshot, role domain.Role) []domain.Order {
	if prev == nil || prev.Stale() || cur == nil {
		return nil
	}

	var alerts []domain.Order
	for _, order := range cur.Orders() {
		before, seen := prev.Get(order.Key())
		if !seen {
			if newOrderAlertable(order, role) {
				alerts = append(alerts, order)
			}
			continue
		}
		if before.Status != order.Status && transitionAlertable(order, role) {
			alerts = append(alerts, order)
		}
	}
	return alerts
}

func newOrderAlertable(o domain.Order, role domain.Role) bool {
	switch role {
	case domain.RoleMerchant:
		return o.Kind == domain.KindWithdraw && o.Status == domain.StatusPending
	case domain.RoleTrader:
		return o.Kind == domain.KindDeposit && o.Status == domain.StatusPending
	}
	return false
}

func transitionAlertable(o domain.Order, role domain.Role) bool {
	switch role {
	case domain.RoleMerchant:
		return o.Kind == domain.KindDeposit && o.Status == domain.StatusPaid
	case domain.RoleTrader:
		return o.Kind == domain.KindWithdraw && o.Status == domain.StatusCompleted
	}
	return false
}

// Dispatcher wraps Diff with the stateful alerting policy: one toast per
// detection cycle reporting the alert count, and at most one sound per cycle
// with a minimum inter-play interval across cycles so rapid polling cannot
// stutter the audio.
type Dispatcher struct {
	role        domain.Role
	notifier    Notifier
	minInterval time.Duration

	mu       sync.Mutex
	lastPlay time.Time
	now      func() time.Time // test seam
}

// NewDispatcher creates a dispatcher for one view's role.
func NewDispatcher(role domain.Role, notifier Notifier, minInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		role:        role,
		notifier:    notifier,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// OnSnapshot is the engine subscriber. The toast always reports the count of
// alertable orders; whether the sound actually plays is throttled
// independently.
func (d *Dispatcher) OnSnapshot(prev, cur *domain.Snapshot) {
	alerts := Diff(prev, cur, d.role)
	if len(alerts) == 0 {
		return
	}
	infra.GlobalMetrics.RecordAlerts(len(alerts))

	d.notifier.Toast(toastMessage(len(alerts)))

	d.mu.Lock()
	now := d.now()
	play := d.lastPlay.IsZero() || now.Sub(d.lastPlay) >= d.minInterval
	if play {
		d.lastPlay = now
	}
	d.mu.Unlock()

	if play {
		infra.GlobalMetrics.RecordSoundPlayed()
		d.notifier.Play()
	}
}

func toastMessage(n int) string {
	if n == 1 {
		return "1 order needs your attention"
	}
	return fmt.Sprintf("%d orders need your attention", n)
}
