package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Shehuna2/MafitaPay-sub002/internal/domain"
)

// List endpoint paths, relative to the API root. Deposit and withdraw orders
// live on separate endpoints and are merged into one snapshot by the caller.
const (
	pathMyOrders               = "my-orders/"
	pathMyWithdrawOrders       = "my-withdraw-orders/"
	pathMerchantOrders         = "merchant-orders/"
	pathMerchantWithdrawOrders = "merchant-withdraw-orders/"
)

// Client talks to the escrow order REST surface. It holds no order state;
// scheduling and snapshot construction belong to the sync engine.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client for the given API root.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListOrders fetches both order kinds for the given role and returns them as
// one flat slice, each record tagged with its kind. A failure on either
// endpoint fails the whole fetch so the engine keeps its last-known snapshot
// instead of mirroring a half view.
func (c *Client) ListOrders(ctx context.Context, role domain.Role) ([]domain.Order, error) {
	depositPath, withdrawPath := listPaths(role)

	deposits, err := c.listKind(ctx, depositPath, domain.KindDeposit)
	if err != nil {
		return nil, err
	}
	withdraws, err := c.listKind(ctx, withdrawPath, domain.KindWithdraw)
	if err != nil {
		return nil, err
	}
	return append(deposits, withdraws...), nil
}

func listPaths(role domain.Role) (deposit, withdraw string) {
	if role == domain.RoleMerchant {
		return pathMerchantOrders, pathMerchantWithdrawOrders
	}
	return pathMyOrders, pathMyWithdrawOrders
}

func (c *Client) listKind(ctx context.Context, path string, kind domain.OrderKind) ([]domain.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("list "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("list "+path, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("list "+path, err)
	}

	orders, err := normalizeList(body)
	if err != nil {
		// Defensive: a malformed payload yields an empty page plus a
		// recoverable error, never a crash in the view layer.
		slog.Warn("Malformed list payload", slog.String("path", path), slog.Any("error", err))
		return nil, err
	}

	for i := range orders {
		orders[i].Kind = kind
	}
	return orders, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// normalizeList accepts either a bare JSON array or a paginated
// {"results": [...]} envelope and flattens both to one slice.
func normalizeList(body []byte) ([]domain.Order, error) {
	var bare []domain.Order
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var envelope struct {
		Results []domain.Order `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Results != nil {
		return envelope.Results, nil
	}

	return nil, domain.ErrMalformedPayload
}
