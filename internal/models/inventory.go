package models

import "github.com/samber/lo"

type InventoryItem struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	GameEntityID string `json:"game_entity_id,omitempty"`
	Category     string `json:"category"`
	Source       string `json:"source"`
	TimeFinish   string `json:"time_finish,omitempty"`
	Permanent    bool   `json:"permanent"`
}

type InventorySnapshot struct {
	UserID       int             `json:"user_id"`
	PlayerName   string          `json:"player_name,omitempty"`
	PlayerID     string          `json:"player_id"`
	TotalItems   int             `json:"total_items"`
	Items        []InventoryItem `json:"items"`
	HasError     bool            `json:"has_error"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func NewInventoryError(message string) InventorySnapshot {
	return InventorySnapshot{
		Items:        []InventoryItem{},
		HasError:     true,
		ErrorMessage: message,
	}
}

// Owns reports whether an item with the given game entity id is in the inventory.
func (s InventorySnapshot) Owns(gameEntityID string) bool {
	if gameEntityID == "" {
		return false
	}
	return lo.ContainsBy(s.Items, func(item InventoryItem) bool {
		return item.GameEntityID == gameEntityID
	})
}
