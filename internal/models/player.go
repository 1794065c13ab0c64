package models

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Identity is the stable per-connection key used for every cache and queue lookup.
type Identity string

const UnknownPlayerName = "Unknown"

type PlayerStateSnapshot struct {
	PlayerName   string `json:"player_name"`
	PlayerID     string `json:"player_id"`
	User         int    `json:"user"`
	IsRegistered bool   `json:"is_registered"`
	HasError     bool   `json:"has_error"`
	ErrorMessage string `json:"error_message,omitempty"`

	OOCColor               string `json:"ooc_color"`
	ExtraSlots             int    `json:"extra_slots"`
	HavePriorityJoinGame   bool   `json:"have_priority_join_game"`
	HavePriorityAntageGame bool   `json:"have_priority_antage_game"`
	AllowJob               bool   `json:"allow_job"`
	IsTimeUp               bool   `json:"is_time_up"`

	Energy      decimal.Decimal `json:"energy"`
	Crystals    decimal.Decimal `json:"crystals"`
	Level       int             `json:"level"`
	Experience  int             `json:"experience"`
	RequiredExp int             `json:"required_exp"`
	ToNextLevel int             `json:"to_next_level"`
	Progress    float64         `json:"progress"`

	CurrentPremium     *PremiumData            `json:"current_premium,omitempty"`
	ActiveSubscription *ActiveSubscriptionData `json:"active_subscription,omitempty"`

	// SpawnedItems holds game entity ids already materialized this round.
	// It is local state and never comes from the backend.
	SpawnedItems []string `json:"spawned_items"`
}

type PremiumData struct {
	PremiumLevel PremiumLevelData `json:"premium_level"`
	Active       bool             `json:"active"`
	ExpiresIn    int              `json:"expires_in"`
	StartedAt    string           `json:"started_at,omitempty"`
	ExpiresAt    string           `json:"expires_at,omitempty"`
}

type PremiumLevelData struct {
	ID           int             `json:"id"`
	Level        int             `json:"level"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	DurationDays int             `json:"duration_days"`
	BonusXP      float64         `json:"bonus_xp"`
	BonusEnergy  float64         `json:"bonus_energy"`
	BonusSlots   int             `json:"bonus_slots"`
	Price        decimal.Decimal `json:"price"`
}

type ActiveSubscriptionData struct {
	Name                   string `json:"name"`
	StartDate              string `json:"start_date"`
	FinishDate             string `json:"finish_date"`
	Description            string `json:"description"`
	OOCColor               string `json:"ooc_color"`
	ExtraSlots             int    `json:"extra_slots"`
	HavePriorityJoinGame   bool   `json:"have_priority_join_game"`
	HavePriorityAntageGame bool   `json:"have_priority_antage_game"`
	AllowJob               bool   `json:"allow_job"`
}

// Cacheable reports whether the snapshot may be stored: only registered,
// non-error results are.
func (s PlayerStateSnapshot) Cacheable() bool {
	return s.IsRegistered && !s.HasError
}

func (s PlayerStateSnapshot) HasSpawned(gameEntityID string) bool {
	return slices.Contains(s.SpawnedItems, gameEntityID)
}

// WithSpawned returns a copy with the given spawned set attached.
func (s PlayerStateSnapshot) WithSpawned(spawned []string) PlayerStateSnapshot {
	s.SpawnedItems = slices.Clone(spawned)
	if s.SpawnedItems == nil {
		s.SpawnedItems = []string{}
	}
	return s
}

// WithPlayerName fills the display name only when it is still unknown.
func (s PlayerStateSnapshot) WithPlayerName(name string) PlayerStateSnapshot {
	if name != "" && (s.PlayerName == "" || s.PlayerName == UnknownPlayerName) {
		s.PlayerName = name
	}
	return s
}

func NewErrorSnapshot(message string) PlayerStateSnapshot {
	return PlayerStateSnapshot{
		PlayerName:   UnknownPlayerName,
		HasError:     true,
		ErrorMessage: message,
		Level:        1,
		SpawnedItems: []string{},
	}
}

func NewUnregisteredSnapshot() PlayerStateSnapshot {
	return PlayerStateSnapshot{
		PlayerName:   UnknownPlayerName,
		IsRegistered: false,
		Level:        1,
		SpawnedItems: []string{},
	}
}
