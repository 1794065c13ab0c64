// Package gateway is the single boundary between the rewards terminal and the
// external rewards backend. Every call is an independent request that may fail.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-terminal/internal/models"
)

// ErrUnavailable is returned when the backend is not configured or cannot be reached.
var ErrUnavailable = errors.New("rewards backend unavailable")

// ErrMalformedResponse is returned when the backend answered 2xx but the body
// could not be decoded. For state-changing calls the operation may have
// committed.
var ErrMalformedResponse = errors.New("malformed rewards backend response")

// BackendError is a failure reported by the backend itself (non-2xx response
// or business rejection). Message is meant to be shown to the player verbatim.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("rewards backend returned %d: %s", e.Status, e.Message)
}

type Gateway interface {
	FetchProfile(ctx context.Context, identity models.Identity) (models.PlayerStateSnapshot, error)
	FetchInventory(ctx context.Context, identity models.Identity) (models.InventorySnapshot, error)
	FetchShop(ctx context.Context, page int) (models.ShopSnapshot, error)
	FetchCalendar(ctx context.Context, identity models.Identity) (models.CalendarSnapshot, error)
	Purchase(ctx context.Context, backendUserID, itemID int, period models.PurchasePeriod) (models.PurchaseResult, error)
	ClaimReward(ctx context.Context, identity models.Identity, rewardID int) (models.ClaimResult, error)
	OpenLootbox(ctx context.Context, identity models.Identity, userItemID int, suspense bool) (models.LootboxOpenResult, error)
	SendUptime(ctx context.Context, identity models.Identity, entry, exit time.Time) models.UptimeResult
	AddSpawnBanTimer(ctx context.Context, identity models.Identity) error
	ClearSpawnBanTimers(ctx context.Context) error
}

// FailureMessage turns a gateway error into the message shown to the player.
func FailureMessage(err error) string {
	var backendErr *BackendError
	switch {
	case errors.As(err, &backendErr) && backendErr.Message != "":
		return backendErr.Message
	default:
		return models.MessageServiceUnavailable
	}
}
