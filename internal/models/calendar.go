package models

import "time"

type CalendarRewardStatus string

const (
	CalendarRewardLocked    CalendarRewardStatus = "locked"
	CalendarRewardAvailable CalendarRewardStatus = "available"
	CalendarRewardClaimed   CalendarRewardStatus = "claimed"
)

type CalendarRewardItem struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	GameEntityID string `json:"game_entity_id,omitempty"`
	Owned        bool   `json:"owned"`
	RewardID     int    `json:"reward_id"`
	IsHidden     bool   `json:"is_hidden"`
	IsLootbox    bool   `json:"is_lootbox"`
}

type CalendarDayReward struct {
	RewardID int                  `json:"reward_id"`
	Day      int                  `json:"day"`
	Status   CalendarRewardStatus `json:"status"`
	Item     CalendarRewardItem   `json:"item"`
}

type CalendarPreviewDay struct {
	Item   *CalendarRewardItem  `json:"item,omitempty"`
	Status CalendarRewardStatus `json:"status"`
}

type CalendarPreview struct {
	Yesterday *CalendarPreviewDay `json:"yesterday,omitempty"`
	Today     *CalendarPreviewDay `json:"today,omitempty"`
	Tomorrow  *CalendarPreviewDay `json:"tomorrow,omitempty"`
}

type CalendarProgress struct {
	CurrentDay int `json:"current_day"`
	PoolID     int `json:"pool_id"`
}

type CalendarSnapshot struct {
	CalendarName   string              `json:"calendar_name"`
	NormalRewards  []CalendarDayReward `json:"normal_rewards"`
	PremiumRewards []CalendarDayReward `json:"premium_rewards"`
	NormalPreview  *CalendarPreview    `json:"normal_preview,omitempty"`
	PremiumPreview *CalendarPreview    `json:"premium_preview,omitempty"`
	Progress       *CalendarProgress   `json:"progress,omitempty"`
	HasError       bool                `json:"has_error"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	FetchedAt      time.Time           `json:"fetched_at"`
}

func NewCalendarError(message string) CalendarSnapshot {
	return CalendarSnapshot{
		NormalRewards:  []CalendarDayReward{},
		PremiumRewards: []CalendarDayReward{},
		HasError:       true,
		ErrorMessage:   message,
	}
}

type ClaimResult struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	ClaimedItem *CalendarRewardItem `json:"claimed_item,omitempty"`
	IsPremium   bool                `json:"is_premium"`
}
