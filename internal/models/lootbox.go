package models

import (
	"encoding/json"
	"fmt"
)

type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityEpic
	RarityMythic
	RarityLegendary
)

var rarityNames = [...]string{"common", "epic", "mythic", "legendary"}

func (r Rarity) String() string {
	if int(r) < len(rarityNames) {
		return rarityNames[r]
	}
	return fmt.Sprintf("rarity(%d)", uint8(r))
}

func ParseRarity(s string) (Rarity, error) {
	for i, name := range rarityNames {
		if name == s {
			return Rarity(i), nil
		}
	}
	return RarityCommon, fmt.Errorf("unknown rarity: %q", s)
}

func (r Rarity) MarshalJSON() ([]byte, error) {
	if int(r) >= len(rarityNames) {
		return nil, fmt.Errorf("unknown rarity: %d", uint8(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the rarity name or its ordinal, which is how the
// backend's byte enum serializes.
func (r *Rarity) UnmarshalJSON(data []byte) error {
	var n uint8
	if err := json.Unmarshal(data, &n); err == nil {
		if int(n) >= len(rarityNames) {
			return fmt.Errorf("unknown rarity: %d", n)
		}
		*r = Rarity(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("rarity must be a name or an ordinal: %w", err)
	}
	parsed, err := ParseRarity(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// LootboxReward is the backend's authoritative result for one open request.
type LootboxReward struct {
	ItemID       int    `json:"item_id"`
	DisplayName  string `json:"display_name"`
	GameEntityID string `json:"game_entity_id,omitempty"`
	Rarity       Rarity `json:"rarity"`
}

type LootboxOpenResult struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	LootboxName string         `json:"lootbox_name,omitempty"`
	Item        *LootboxReward `json:"item,omitempty"`
	// Sequence is the reveal strip for suspense opens; nil for instant opens.
	Sequence     []Rarity `json:"sequence,omitempty"`
	SequenceSeed string   `json:"sequence_seed,omitempty"`
	SuspenseMode bool     `json:"suspense_mode"`
}
