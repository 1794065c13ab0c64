package models

import "time"

// UserSession is an authenticated terminal session minted by the game host.
type UserSession struct {
	Identity     Identity  `json:"identity" redis:"identity"`
	PlayerName   string    `json:"player_name" redis:"player_name"`
	SessionID    string    `json:"session_id" redis:"session_id"`
	CreatedAt    time.Time `json:"created_at" redis:"created_at"`
	LastAccessed time.Time `json:"last_accessed" redis:"last_accessed"`
}

type CreateSessionRequest struct {
	Identity   string `json:"identity" binding:"required"`
	PlayerName string `json:"player_name"`
}

type PurchaseRequest struct {
	ItemID int            `json:"item_id" binding:"required,min=1"`
	Period PurchasePeriod `json:"period" binding:"required"`
}

type ClaimRequest struct {
	RewardID  int  `json:"reward_id" binding:"required,min=1"`
	IsPremium bool `json:"is_premium"`
}

type OpenLootboxRequest struct {
	UserItemID int  `json:"user_item_id" binding:"required,min=1"`
	Suspense   bool `json:"suspense"`
}

type SpawnRequest struct {
	GameEntityID string `json:"game_entity_id" binding:"required"`
}
