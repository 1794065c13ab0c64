package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"rewards-terminal/internal/models"
)

const tracerName = "rewards-terminal/gateway"

// HTTPGateway talks JSON over HTTP to the rewards backend.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewHTTPGateway creates a gateway for baseURL. An empty baseURL yields a
// gateway whose every call reports ErrUnavailable.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "gateway").Logger(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

func (g *HTTPGateway) Configured() bool {
	return g.baseURL != ""
}

func (g *HTTPGateway) FetchProfile(ctx context.Context, identity models.Identity) (models.PlayerStateSnapshot, error) {
	var snapshot models.PlayerStateSnapshot
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(string(identity)))
	if err := g.do(ctx, "FetchProfile", http.MethodGet, path, nil, &snapshot); err != nil {
		return models.PlayerStateSnapshot{}, err
	}
	if snapshot.PlayerName == "" {
		snapshot.PlayerName = models.UnknownPlayerName
	}
	if snapshot.SpawnedItems == nil {
		snapshot.SpawnedItems = []string{}
	}
	return snapshot, nil
}

func (g *HTTPGateway) FetchInventory(ctx context.Context, identity models.Identity) (models.InventorySnapshot, error) {
	var inventory models.InventorySnapshot
	path := fmt.Sprintf("/api/users/%s/inventory", url.PathEscape(string(identity)))
	if err := g.do(ctx, "FetchInventory", http.MethodGet, path, nil, &inventory); err != nil {
		return models.InventorySnapshot{}, err
	}
	if inventory.Items == nil {
		inventory.Items = []models.InventoryItem{}
	}
	return inventory, nil
}

func (g *HTTPGateway) FetchShop(ctx context.Context, page int) (models.ShopSnapshot, error) {
	if page < 1 {
		page = 1
	}
	var shop models.ShopSnapshot
	path := "/api/shop/items?page=" + strconv.Itoa(page)
	if err := g.do(ctx, "FetchShop", http.MethodGet, path, nil, &shop); err != nil {
		return models.ShopSnapshot{}, err
	}
	shop.Page = page
	shop.FetchedAt = g.now()
	if shop.Items == nil {
		shop.Items = []models.ShopItem{}
	}
	return shop, nil
}

func (g *HTTPGateway) FetchCalendar(ctx context.Context, identity models.Identity) (models.CalendarSnapshot, error) {
	var calendar models.CalendarSnapshot
	path := fmt.Sprintf("/api/users/%s/calendar", url.PathEscape(string(identity)))
	if err := g.do(ctx, "FetchCalendar", http.MethodGet, path, nil, &calendar); err != nil {
		return models.CalendarSnapshot{}, err
	}
	calendar.FetchedAt = g.now()
	return calendar, nil
}

func (g *HTTPGateway) Purchase(ctx context.Context, backendUserID, itemID int, period models.PurchasePeriod) (models.PurchaseResult, error) {
	body := map[string]any{
		"user":    backendUserID,
		"item_id": itemID,
		"period":  period,
	}
	var result models.PurchaseResult
	if err := g.do(ctx, "Purchase", http.MethodPost, "/api/shop/purchase", body, &result); err != nil {
		return models.PurchaseResult{}, err
	}
	return result, nil
}

func (g *HTTPGateway) ClaimReward(ctx context.Context, identity models.Identity, rewardID int) (models.ClaimResult, error) {
	body := map[string]any{"reward_id": rewardID}
	var result models.ClaimResult
	path := fmt.Sprintf("/api/users/%s/calendar/claim", url.PathEscape(string(identity)))
	if err := g.do(ctx, "ClaimReward", http.MethodPost, path, body, &result); err != nil {
		return models.ClaimResult{}, err
	}
	return result, nil
}

func (g *HTTPGateway) OpenLootbox(ctx context.Context, identity models.Identity, userItemID int, suspense bool) (models.LootboxOpenResult, error) {
	body := map[string]any{"suspense": suspense}
	var result models.LootboxOpenResult
	path := fmt.Sprintf("/api/users/%s/lootboxes/%d/open", url.PathEscape(string(identity)), userItemID)
	if err := g.do(ctx, "OpenLootbox", http.MethodPost, path, body, &result); err != nil {
		return models.LootboxOpenResult{}, err
	}
	// The reveal strip is built locally; anything the backend sent is ignored.
	result.Sequence = nil
	result.SequenceSeed = ""
	result.SuspenseMode = suspense
	return result, nil
}

// SendUptime maps 2xx to Success, 404 to NotFound and everything else,
// including transport errors and an unconfigured backend, to NeedsRetry.
func (g *HTTPGateway) SendUptime(ctx context.Context, identity models.Identity, entry, exit time.Time) models.UptimeResult {
	body := map[string]any{
		"entry_time": entry.UTC(),
		"exit_time":  exit.UTC(),
	}
	path := fmt.Sprintf("/api/users/%s/uptime", url.PathEscape(string(identity)))
	err := g.do(ctx, "SendUptime", http.MethodPost, path, body, nil)
	if err == nil {
		return models.UptimeSuccess
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr.Status == http.StatusNotFound {
		return models.UptimeNotFound
	}
	return models.UptimeNeedsRetry
}

func (g *HTTPGateway) AddSpawnBanTimer(ctx context.Context, identity models.Identity) error {
	path := fmt.Sprintf("/api/users/%s/spawn-ban", url.PathEscape(string(identity)))
	return g.do(ctx, "AddSpawnBanTimer", http.MethodPost, path, nil, nil)
}

func (g *HTTPGateway) ClearSpawnBanTimers(ctx context.Context) error {
	return g.do(ctx, "ClearSpawnBanTimers", http.MethodDelete, "/api/spawn-bans", nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("http.request.method", method), attribute.String("rewards.path", path))

	if !g.Configured() {
		return ErrUnavailable
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("X-Api-Key", g.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := g.now()
	resp, err := g.http.Do(req)
	if err != nil {
		g.logger.Warn().Err(err).Str("op", op).Msg("rewards backend request failed")
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	g.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", g.now().Sub(start)).
		Msg("rewards backend call")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", ErrUnavailable, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &BackendError{Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		g.logger.Error().Err(err).Str("op", op).Int("status", resp.StatusCode).Msg("undecodable rewards backend response")
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(data []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 256 {
		return text
	}
	return fallback
}
