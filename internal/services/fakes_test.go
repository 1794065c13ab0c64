package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeGateway records calls and serves whatever the test configured. Nil
// funcs fall back to a registered profile and successful operations.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	profileFn   func(identity models.Identity) (models.PlayerStateSnapshot, error)
	inventoryFn func(identity models.Identity) (models.InventorySnapshot, error)
	shopFn      func(page int) (models.ShopSnapshot, error)
	calendarFn  func(identity models.Identity) (models.CalendarSnapshot, error)
	purchaseFn  func(userID, itemID int, period models.PurchasePeriod) (models.PurchaseResult, error)
	claimFn     func(identity models.Identity, rewardID int) (models.ClaimResult, error)
	openFn      func(identity models.Identity, userItemID int) (models.LootboxOpenResult, error)
	uptimeFn    func(identity models.Identity) models.UptimeResult
	spawnBanErr error
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func registeredProfile(identity models.Identity) models.PlayerStateSnapshot {
	return models.PlayerStateSnapshot{
		PlayerName:   "Unknown",
		PlayerID:     string(identity),
		User:         42,
		IsRegistered: true,
		Level:        3,
		Energy:       decimal.NewFromInt(100),
		Crystals:     decimal.NewFromInt(5),
	}
}

func (g *fakeGateway) FetchProfile(_ context.Context, identity models.Identity) (models.PlayerStateSnapshot, error) {
	g.record("profile")
	if g.profileFn != nil {
		return g.profileFn(identity)
	}
	return registeredProfile(identity), nil
}

func (g *fakeGateway) FetchInventory(_ context.Context, identity models.Identity) (models.InventorySnapshot, error) {
	g.record("inventory")
	if g.inventoryFn != nil {
		return g.inventoryFn(identity)
	}
	return models.InventorySnapshot{
		UserID:     42,
		PlayerID:   string(identity),
		TotalItems: 1,
		Items: []models.InventoryItem{
			{ID: 1, Name: "Rifle", GameEntityID: "weapon_rifle", Category: "weapons"},
		},
	}, nil
}

func (g *fakeGateway) FetchShop(_ context.Context, page int) (models.ShopSnapshot, error) {
	g.record("shop")
	if g.shopFn != nil {
		return g.shopFn(page)
	}
	return models.ShopSnapshot{
		Items:      []models.ShopItem{{ID: 7, Name: "Hat", GameEntityID: "hat_red"}},
		TotalCount: 1,
		Page:       page,
	}, nil
}

func (g *fakeGateway) FetchCalendar(_ context.Context, identity models.Identity) (models.CalendarSnapshot, error) {
	g.record("calendar")
	if g.calendarFn != nil {
		return g.calendarFn(identity)
	}
	return models.CalendarSnapshot{CalendarName: "October"}, nil
}

func (g *fakeGateway) Purchase(_ context.Context, userID, itemID int, period models.PurchasePeriod) (models.PurchaseResult, error) {
	g.record("purchase")
	if g.purchaseFn != nil {
		return g.purchaseFn(userID, itemID, period)
	}
	return models.PurchaseResult{Success: true, Message: "purchased"}, nil
}

func (g *fakeGateway) ClaimReward(_ context.Context, identity models.Identity, rewardID int) (models.ClaimResult, error) {
	g.record("claim")
	if g.claimFn != nil {
		return g.claimFn(identity, rewardID)
	}
	return models.ClaimResult{Success: true, Message: "claimed"}, nil
}

func (g *fakeGateway) OpenLootbox(_ context.Context, identity models.Identity, userItemID int, _ bool) (models.LootboxOpenResult, error) {
	g.record("open")
	if g.openFn != nil {
		return g.openFn(identity, userItemID)
	}
	return models.LootboxOpenResult{
		Success:     true,
		LootboxName: "Emerald",
		Item:        &models.LootboxReward{ItemID: 9, DisplayName: "Crown", Rarity: models.RarityLegendary},
	}, nil
}

func (g *fakeGateway) SendUptime(_ context.Context, identity models.Identity, _, _ time.Time) models.UptimeResult {
	g.record("uptime")
	if g.uptimeFn != nil {
		return g.uptimeFn(identity)
	}
	return models.UptimeSuccess
}

func (g *fakeGateway) AddSpawnBanTimer(_ context.Context, _ models.Identity) error {
	g.record("spawn_ban")
	return g.spawnBanErr
}

func (g *fakeGateway) ClearSpawnBanTimers(_ context.Context) error {
	g.record("clear_spawn_bans")
	return g.spawnBanErr
}

type push struct {
	kind     string
	identity models.Identity
	payload  any
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) add(kind string, identity models.Identity, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{kind: kind, identity: identity, payload: payload})
}

func (p *fakePusher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]string, len(p.pushes))
	for i, pu := range p.pushes {
		kinds[i] = pu.kind
	}
	return kinds
}

func (p *fakePusher) last(kind string) (push, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.pushes) - 1; i >= 0; i-- {
		if p.pushes[i].kind == kind {
			return p.pushes[i], true
		}
	}
	return push{}, false
}

func (p *fakePusher) PushProfile(identity models.Identity, snapshot models.PlayerStateSnapshot) {
	p.add("profile", identity, snapshot)
}

func (p *fakePusher) PushShop(identity models.Identity, shop models.ShopSnapshot) {
	p.add("shop", identity, shop)
}

func (p *fakePusher) PushCalendar(identity models.Identity, calendar models.CalendarSnapshot) {
	p.add("calendar", identity, calendar)
}

func (p *fakePusher) PushInventory(identity models.Identity, inventory models.InventorySnapshot) {
	p.add("inventory", identity, inventory)
}

func (p *fakePusher) PushPurchaseResult(identity models.Identity, result models.PurchaseResult) {
	p.add("purchase_result", identity, result)
}

func (p *fakePusher) PushClaimResult(identity models.Identity, result models.ClaimResult) {
	p.add("claim_result", identity, result)
}

func (p *fakePusher) PushLootboxResult(identity models.Identity, result models.LootboxOpenResult) {
	p.add("lootbox_result", identity, result)
}
