package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes the two escrow order variants. IDs are only unique
// within a kind, so identity is always the (kind, id) pair.
type OrderKind string

const (
	KindDeposit  OrderKind = "deposit"
	KindWithdraw OrderKind = "withdraw"
)

// OrderStatus is the closed set of escrow order states.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// Role identifies the viewing actor and gates which orders and actions apply.
type Role string

const (
	RoleTrader   Role = "trader"
	RoleMerchant Role = "merchant"
)

// OrderKey is the global identity of an order.
type OrderKey struct {
	Kind OrderKind
	ID   int64
}

// Counterparty is a role-qualified reference to the other side of an order.
// Which fields are populated depends on the viewing actor.
type Counterparty struct {
	Buyer    string `json:"buyer"`
	Seller   string `json:"seller"`
	Merchant string `json:"merchant"`
}

// Order mirrors one escrow order as reported by the server. AmountRequested,
// TotalPrice, RatePerUnit and CreatedAt are fixed at creation; a change
// observed between snapshots for the same key is a protocol violation.
type Order struct {
	ID              int64           `json:"id"`
	Kind            OrderKind       `json:"kind"`
	Status          OrderStatus     `json:"status"`
	AmountRequested decimal.Decimal `json:"amount_requested"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	RatePerUnit     decimal.Decimal `json:"rate_per_unit"`
	Counterparty    Counterparty    `json:"counterparty"`
	OfferID         int64           `json:"offer_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Key returns the order's (kind, id) identity.
func (o *Order) Key() OrderKey {
	return OrderKey{Kind: o.Kind, ID: o.ID}
}

// IsTerminal reports whether no further transitions can leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Rank orders statuses along the settlement path. Cancelled ranks above
// pending because it is only reachable from pending; a terminal status never
// ranks below a state it can be entered from.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPaid:
		return 1
	case StatusCompleted:
		return 2
	case StatusCancelled:
		return 3
	}
	return -1
}

// Valid reports whether s is a member of the known status set.
func (s OrderStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanTransition reports whether from→to is a single edge of the order state
// graph: pending→paid, pending→cancelled, paid→completed.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusPaid || to == StatusCancelled
	case StatusPaid:
		return to == StatusCompleted
	}
	return false
}

// CanAdvance reports whether to is reachable from from by following zero or
// more edges of the state graph. Used when validating consecutive snapshots,
// where one poll interval may legitimately span several server-side edges.
func CanAdvance(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if CanTransition(from, to) {
		return true
	}
	// The only multi-edge path is pending→paid→completed.
	return from == StatusPending && to == StatusCompleted
}
