package view

import "github.com/Shehuna2/MafitaPay-sub002/internal/domain"

// StatusTheme is the presentation attached to one order status.
type StatusTheme struct {
	Label string
	Color string // hex, frontend-agnostic
	Icon  string
}

// ThemeFor maps every status to its presentation. The switch is total over
// the status set; adding a status without a theme falls through to the
// unknown theme instead of rendering a blank badge.
func ThemeFor(s domain.OrderStatus) StatusTheme {
	switch s {
	case domain.StatusPending:
		return StatusTheme{Label: "Pending", Color: "#F59E0B", Icon: "clock"}
	case domain.StatusPaid:
		return StatusTheme{Label: "Paid", Color: "#3B82F6", Icon: "banknote"}
	case domain.StatusCompleted:
		return StatusTheme{Label: "Completed", Color: "#10B981", Icon: "check-circle"}
	case domain.StatusCancelled:
		return StatusTheme{Label: "Cancelled", Color: "#EF4444", Icon: "x-circle"}
	}
	return StatusTheme{Label: "Unknown", Color: "#6B7280", Icon: "help-circle"}
}
