package services

import "rewards-terminal/internal/models"

// Pusher delivers state to the single session that owns identity. Pushes are
// never broadcast.
type Pusher interface {
	PushProfile(identity models.Identity, snapshot models.PlayerStateSnapshot)
	PushShop(identity models.Identity, shop models.ShopSnapshot)
	PushCalendar(identity models.Identity, calendar models.CalendarSnapshot)
	PushInventory(identity models.Identity, inventory models.InventorySnapshot)
	PushPurchaseResult(identity models.Identity, result models.PurchaseResult)
	PushClaimResult(identity models.Identity, result models.ClaimResult)
	PushLootboxResult(identity models.Identity, result models.LootboxOpenResult)
}
