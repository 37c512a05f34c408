package view

import (
	"strconv"
	"strings"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
)

// Filter narrows a snapshot projection. Zero values mean "no restriction";
// Search is a case-insensitive substring matched against order id, amounts
// and counterparty identities.
type Filter struct {
	Kind   domain.OrderKind
	Status domain.OrderStatus
	Search string
}

// Project returns the orders of a snapshot matching every active filter,
// newest first. Pure and side-effect free: identical inputs always yield
// identical output, so the same call backs both live rendering and test
// assertions.
func Project(snap *domain.Snapshot, f Filter) []domain.Order {
	orders := snap.Orders()
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if f.Kind != "" && o.Kind != f.Kind {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if search != "" && !matches(o, search) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func matches(o domain.Order, search string) bool {
	if strings.Contains(strconv.FormatInt(o.ID, 10), search) {
		return true
	}
	if strings.Contains(o.AmountRequested.String(), search) ||
		strings.Contains(o.TotalPrice.String(), search) {
		return true
	}
	for _, name := range []string{o.Counterparty.Buyer, o.Counterparty.Seller, o.Counterparty.Merchant} {
		if name != "" && strings.Contains(strings.ToLower(name), search) {
			return true
		}
	}
	return false
}
