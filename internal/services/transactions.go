package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

var tracer = otel.Tracer("rewards-terminal/services")

// TransactionCoordinator runs the state-changing flows (purchase, claim,
// lootbox open) and the read flows that push fresh state to a session.
// Flows for one identity are serialized; different identities run freely.
type TransactionCoordinator struct {
	gateway     gateway.Gateway
	players     *PlayerStateCache
	inventories *InventoryCache
	shop        *ShopCache
	resolver    *LootboxResolver
	pusher      Pusher
	locks       *identityLocks
	logger      zerolog.Logger
}

func NewTransactionCoordinator(
	gw gateway.Gateway,
	players *PlayerStateCache,
	inventories *InventoryCache,
	shop *ShopCache,
	resolver *LootboxResolver,
	pusher Pusher,
	logger zerolog.Logger,
) *TransactionCoordinator {
	return &TransactionCoordinator{
		gateway:     gw,
		players:     players,
		inventories: inventories,
		shop:        shop,
		resolver:    resolver,
		pusher:      pusher,
		locks:       newIdentityLocks(),
		logger:      logger.With().Str("component", "transactions").Logger(),
	}
}

func (c *TransactionCoordinator) begin(ctx context.Context, op string, identity models.Identity) (context.Context, trace.Span, zerolog.Logger) {
	txID := models.GenerateTransactionID()
	ctx, span := tracer.Start(ctx, "transaction."+op, trace.WithAttributes(
		attribute.String("tx.id", txID),
		attribute.String("player.identity", string(identity)),
	))
	return ctx, span, c.logger.With().Str("tx_id", txID).Str("op", op).Str("identity", string(identity)).Logger()
}

func (c *TransactionCoordinator) Purchase(ctx context.Context, identity models.Identity, itemID int, period models.PurchasePeriod) models.PurchaseResult {
	ctx, span, logger := c.begin(ctx, "purchase", identity)
	defer span.End()
	span.SetAttributes(attribute.Int("item.id", itemID), attribute.String("item.period", string(period)))

	if err := period.Validate(); err != nil {
		result := models.NewPurchaseFailure(err.Error())
		c.pusher.PushPurchaseResult(identity, result)
		return result
	}

	unlock := c.locks.Lock(identity)
	defer unlock()

	// The backend keys purchases by its own user id, which only a loaded
	// profile carries. Profiles are loaded for live sessions only.
	snapshot, ok := c.players.Peek(identity)
	if !ok || snapshot.User == 0 {
		live := c.players.Tracked(identity)
		message := models.MessageDataNotLoaded
		if !live {
			message = models.MessageNoSession
		}
		logger.Info().Bool("live_session", live).Msg("purchase rejected, profile not loaded")
		result := models.NewPurchaseFailure(message)
		c.pusher.PushPurchaseResult(identity, result)
		return result
	}

	result, err := c.gateway.Purchase(ctx, snapshot.User, itemID, period)
	switch {
	case errors.Is(err, gateway.ErrMalformedResponse):
		logger.Error().Err(err).Int("item_id", itemID).Msg("purchase outcome unknown, refreshing state")
		span.SetStatus(codes.Error, err.Error())
		result = models.NewPurchaseFailure(models.MessageUnconfirmed)
		c.shop.Invalidate()
		c.settle(ctx, identity, func() { c.pusher.PushPurchaseResult(identity, result) })
		return result
	case err != nil:
		logger.Warn().Err(err).Int("item_id", itemID).Msg("purchase failed")
		span.SetStatus(codes.Error, err.Error())
		result = models.NewPurchaseFailure(gateway.FailureMessage(err))
	}
	if !result.Success {
		c.pusher.PushPurchaseResult(identity, result)
		return result
	}

	logger.Info().Int("item_id", itemID).Str("period", string(period)).Msg("purchase completed")
	c.shop.Invalidate()
	c.settle(ctx, identity, func() { c.pusher.PushPurchaseResult(identity, result) })
	return result
}

func (c *TransactionCoordinator) ClaimReward(ctx context.Context, identity models.Identity, rewardID int, isPremium bool) models.ClaimResult {
	ctx, span, logger := c.begin(ctx, "claim", identity)
	defer span.End()
	span.SetAttributes(attribute.Int("reward.id", rewardID), attribute.Bool("reward.premium", isPremium))

	unlock := c.locks.Lock(identity)
	defer unlock()

	result, err := c.gateway.ClaimReward(ctx, identity, rewardID)
	switch {
	case errors.Is(err, gateway.ErrMalformedResponse):
		logger.Error().Err(err).Int("reward_id", rewardID).Msg("claim outcome unknown, refreshing state")
		span.SetStatus(codes.Error, err.Error())
		result = models.NewClaimFailure(models.MessageUnconfirmed, isPremium)
		c.settle(ctx, identity, func() { c.pusher.PushClaimResult(identity, result) })
		return result
	case err != nil:
		logger.Warn().Err(err).Int("reward_id", rewardID).Msg("claim failed")
		span.SetStatus(codes.Error, err.Error())
		result = models.NewClaimFailure(gateway.FailureMessage(err), isPremium)
	}
	result.IsPremium = isPremium
	if !result.Success {
		c.pusher.PushClaimResult(identity, result)
		return result
	}

	logger.Info().Int("reward_id", rewardID).Bool("premium", isPremium).Msg("reward claimed")
	c.settle(ctx, identity, func() { c.pusher.PushClaimResult(identity, result) })
	return result
}

func (c *TransactionCoordinator) OpenLootbox(ctx context.Context, identity models.Identity, userItemID int, suspense bool) models.LootboxOpenResult {
	ctx, span, logger := c.begin(ctx, "lootbox_open", identity)
	defer span.End()
	span.SetAttributes(attribute.Int("lootbox.user_item_id", userItemID), attribute.Bool("lootbox.suspense", suspense))

	unlock := c.locks.Lock(identity)
	defer unlock()

	opened, err := c.gateway.OpenLootbox(ctx, identity, userItemID, suspense)
	switch {
	case errors.Is(err, gateway.ErrMalformedResponse):
		logger.Error().Err(err).Int("user_item_id", userItemID).Msg("lootbox outcome unknown, refreshing state")
		span.SetStatus(codes.Error, err.Error())
		result := models.NewLootboxFailure(models.MessageUnconfirmed, suspense)
		c.settle(ctx, identity, func() { c.pusher.PushLootboxResult(identity, result) })
		return result
	case err != nil:
		logger.Warn().Err(err).Int("user_item_id", userItemID).Msg("lootbox open failed")
		span.SetStatus(codes.Error, err.Error())
		opened = models.NewLootboxFailure(gateway.FailureMessage(err), suspense)
	}

	result := c.resolver.BuildOpenResult(opened, suspense)
	if !result.Success {
		c.pusher.PushLootboxResult(identity, result)
		return result
	}

	logger.Info().
		Int("user_item_id", userItemID).
		Int("item_id", result.Item.ItemID).
		Stringer("rarity", result.Item.Rarity).
		Bool("suspense", suspense).
		Msg("lootbox opened")
	c.settle(ctx, identity, func() { c.pusher.PushLootboxResult(identity, result) })
	return result
}

func (c *TransactionCoordinator) RefreshProfile(ctx context.Context, identity models.Identity) models.PlayerStateSnapshot {
	snapshot := c.players.GetOrFetch(ctx, identity)
	c.pusher.PushProfile(identity, snapshot)
	return snapshot
}

func (c *TransactionCoordinator) RefreshShop(ctx context.Context, identity models.Identity, page int) models.ShopSnapshot {
	shop := c.shop.Get(ctx, page)
	c.pusher.PushShop(identity, shop)
	return shop
}

// RefreshCalendar always asks the backend; calendar state changes daily and
// on every claim, so it is not cached.
func (c *TransactionCoordinator) RefreshCalendar(ctx context.Context, identity models.Identity) models.CalendarSnapshot {
	calendar, err := c.gateway.FetchCalendar(ctx, identity)
	if err != nil {
		c.logger.Warn().Err(err).Str("identity", string(identity)).Msg("failed to fetch calendar")
		calendar = models.NewCalendarError(gateway.FailureMessage(err))
	}
	c.pusher.PushCalendar(identity, calendar)
	return calendar
}

func (c *TransactionCoordinator) RefreshInventory(ctx context.Context, identity models.Identity) models.InventorySnapshot {
	inventory := c.inventories.GetOrFetch(ctx, identity)
	c.pusher.PushInventory(identity, inventory)
	return inventory
}

func (c *TransactionCoordinator) invalidate(identity models.Identity) {
	c.players.Invalidate(identity)
	c.inventories.Invalidate(identity)
}

// settle runs after a transaction that committed, or may have: cached state
// is dropped before the result goes out, and the state pushed afterwards is
// fetched fresh.
func (c *TransactionCoordinator) settle(ctx context.Context, identity models.Identity, pushResult func()) {
	c.invalidate(identity)
	pushResult()
	c.refetchAndPush(ctx, identity)
}

// refetchAndPush is the second half of invalidate-then-refetch. It must run
// after invalidate so nothing pushed here predates the transaction.
func (c *TransactionCoordinator) refetchAndPush(ctx context.Context, identity models.Identity) {
	c.pusher.PushProfile(identity, c.players.GetOrFetch(ctx, identity))
	c.pusher.PushInventory(identity, c.inventories.GetOrFetch(ctx, identity))
}
