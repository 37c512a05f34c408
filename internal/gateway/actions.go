package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
	"github.com/Shehuna2/MafitaPay-sub002/internal/infra"
)

// Refresher is the engine-side hook the gateway uses to reconcile after an
// action. The gateway never mutates the snapshot itself; the mirror is
// single-writer and server truth is always re-fetched.
type Refresher interface {
	Poke()
}

// SnapshotSource exposes the current mirror for client-side precondition
// checks. May return nil before the first fetch lands.
type SnapshotSource interface {
	Current() *domain.Snapshot
}

// Actions issues order-mutating commands. All methods are synchronous, return
// typed errors and, on success or conflict, wake the owning engine so the
// local mirror converges on whatever the server decided.
type Actions struct {
	client    *Client
	refresher Refresher
	source    SnapshotSource
}

// NewActions creates the action gateway bound to one view's engine.
func NewActions(client *Client, refresher Refresher, source SnapshotSource) *Actions {
	return &Actions{client: client, refresher: refresher, source: source}
}

// MarkPaid claims that the initiating party has paid a withdraw order.
// Precondition: pending.
func (a *Actions) MarkPaid(ctx context.Context, key domain.OrderKey) error {
	if key.Kind != domain.KindWithdraw {
		return &domain.RejectedError{Action: "mark-paid", Message: "only withdraw orders can be marked paid"}
	}
	if err := a.checkLocal(key, "mark-paid", domain.StatusPending); err != nil {
		return err
	}
	return a.post(ctx, "mark-paid", key, actionPath(key, "mark-paid"))
}

// ConfirmRelease releases escrowed funds for a paid order of either kind.
// Precondition: paid.
func (a *Actions) ConfirmRelease(ctx context.Context, key domain.OrderKey) error {
	if err := a.checkLocal(key, "confirm-release", domain.StatusPaid); err != nil {
		return err
	}
	return a.post(ctx, "confirm-release", key, actionPath(key, "confirm"))
}

// Cancel withdraws a pending order of either kind. Paid orders cannot be
// cancelled; the payment claim must be resolved by the escrow holder.
func (a *Actions) Cancel(ctx context.Context, key domain.OrderKey) error {
	if err := a.checkLocal(key, "cancel", domain.StatusPending); err != nil {
		return err
	}
	return a.post(ctx, "cancel", key, actionPath(key, "cancel"))
}

func actionPath(key domain.OrderKey, verb string) string {
	base := "orders"
	if key.Kind == domain.KindWithdraw {
		base = "withdraw-orders"
	}
	return fmt.Sprintf("%s/%d/%s/", base, key.ID, verb)
}

// checkLocal fails fast when the mirror already knows the precondition no
// longer holds. The mirror may lag the server, so absence or a matching
// status still goes to the server for the authoritative answer.
func (a *Actions) checkLocal(key domain.OrderKey, action string, want domain.OrderStatus) error {
	if a.source == nil {
		return nil
	}
	order, ok := a.source.Current().Get(key)
	if !ok || order.Status == want {
		return nil
	}
	if order.Status.Rank() < want.Rank() {
		return &domain.RejectedError{Action: action, Message: "order is still " + string(order.Status)}
	}
	infra.GlobalMetrics.RecordActionConflict()
	return &domain.ConflictError{Key: key, Action: action, Message: "order is " + string(order.Status)}
}

func (a *Actions) post(ctx context.Context, action string, key domain.OrderKey, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.client.baseURL+path, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	a.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	// The server deduplicates repeated submissions (e.g. a double-click) on
	// this key rather than processing the transition twice.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(action, err)
	}
	defer resp.Body.Close()

	outcome := a.decodeOutcome(action, key, resp)
	if outcome == nil || domain.IsConflict(outcome) {
		// Success and conflict both mean server truth differs from the local
		// belief that made the action possible; reconcile either way.
		a.refresh()
	}
	return outcome
}

func (a *Actions) decodeOutcome(action string, key domain.OrderKey, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := serverMessage(body)

	switch resp.StatusCode {
	case http.StatusConflict:
		infra.GlobalMetrics.RecordActionConflict()
		return &domain.ConflictError{Key: key, Action: action, Message: message}
	case http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity:
		if message == "" {
			message = resp.Status
		}
		return &domain.RejectedError{Action: action, Message: message}
	default:
		return domain.NewNetworkError(action, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
}

// serverMessage pulls a human-readable explanation out of an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	switch {
	case payload.Detail != "":
		return payload.Detail
	case payload.Message != "":
		return payload.Message
	default:
		return payload.Error
	}
}

func (a *Actions) refresh() {
	if a.refresher == nil {
		return
	}
	slog.Debug("Action completed, forcing refresh")
	a.refresher.Poke()
}
