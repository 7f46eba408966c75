// Package orders resolves merchant order IDs to the event organizer that must
// be paid out. Resolution is layered: an in-memory TTL cache in front of the
// live ticketing API, with the PostgreSQL order registry as offline fallback.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/settlement-reconciliation/internal/config"
	"github.com/settlement-reconciliation/internal/domain/order"
)

// APIResolver resolves orders against the ticketing platform's HTTP API.
type APIResolver struct {
	client  *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewAPIResolver creates a resolver backed by the ticketing API. Returns nil
// when no base URL is configured; callers treat a nil resolver as absent.
func NewAPIResolver(logger *slog.Logger, cfg *config.OrdersConfig) *APIResolver {
	if cfg.APIBaseURL == "" {
		return nil
	}
	return &APIResolver{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.APIBaseURL,
		token:   cfg.APIToken,
		logger:  logger,
	}
}

type orderResponse struct {
	OrderID       string `json:"order_id"`
	OrganizerID   string `json:"organizer_id"`
	OrganizerName string `json:"organizer_name"`
	EventID       string `json:"event_id"`
}

// Resolve fetches the organizer attribution for an order. The dedicated
// resolve endpoint is tried first; any miss there falls back to the per-order
// lookup, where a 404 means the order is unknown and yields (nil, nil).
func (r *APIResolver) Resolve(ctx context.Context, orderID string) (*order.Info, error) {
	if info := r.resolvePost(ctx, orderID); info != nil {
		return info, nil
	}
	return r.resolveGet(ctx, orderID)
}

// resolvePost asks the resolve endpoint for the order. Every failure mode is
// a miss: the per-order lookup decides whether the order exists.
func (r *APIResolver) resolvePost(ctx context.Context, orderID string) *order.Info {
	payload, err := json.Marshal(map[string]string{"id": orderID})
	if err != nil {
		return nil
	}

	endpoint := r.baseURL + "/api/app/order/resolve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	r.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("Order resolve endpoint unreachable", "order_id", orderID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	if body.OrganizerID == "" {
		return nil
	}
	return body.toInfo(orderID)
}

func (r *APIResolver) resolveGet(ctx context.Context, orderID string) (*order.Info, error) {
	endpoint := fmt.Sprintf("%s/api/orders/%s", r.baseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build order request: %w", err)
	}
	r.setHeaders(req)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Failed to call orders API", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to call orders API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decode
	case http.StatusNotFound:
		return nil, nil
	default:
		r.logger.Error("Orders API returned unexpected status",
			"order_id", orderID,
			"status", resp.StatusCode)
		return nil, fmt.Errorf("orders API returned status %d", resp.StatusCode)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if body.OrganizerID == "" {
		return nil, nil
	}
	return body.toInfo(orderID), nil
}

func (r *APIResolver) setHeaders(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("Accept", "application/json")
}

func (b orderResponse) toInfo(orderID string) *order.Info {
	info := &order.Info{
		OrderID:       orderID,
		OrganizerID:   b.OrganizerID,
		OrganizerName: b.OrganizerName,
		EventID:       b.EventID,
	}
	if b.OrderID != "" {
		info.OrderID = b.OrderID
	}
	return info
}
