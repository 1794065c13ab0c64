package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PurchasePeriod string

const (
	PurchasePeriodWeek       PurchasePeriod = "week"
	PurchasePeriodMonth      PurchasePeriod = "month"
	PurchasePeriodThreeMonth PurchasePeriod = "three_month"
	PurchasePeriodSixMonth   PurchasePeriod = "six_month"
	PurchasePeriodYear       PurchasePeriod = "year"
	PurchasePeriodAlways     PurchasePeriod = "always"
)

func (p PurchasePeriod) Validate() error {
	switch p {
	case PurchasePeriodWeek, PurchasePeriodMonth, PurchasePeriodThreeMonth,
		PurchasePeriodSixMonth, PurchasePeriodYear, PurchasePeriodAlways:
		return nil
	default:
		return fmt.Errorf("invalid purchase period: %q", p)
	}
}

type ShopItem struct {
	ID           int                                `json:"id"`
	Name         string                             `json:"name"`
	GameEntityID string                             `json:"game_entity_id"`
	ImageURL     string                             `json:"image_url"`
	Category     string                             `json:"category"`
	Subcategory  string                             `json:"subcategory,omitempty"`
	Prices       map[PurchasePeriod]decimal.Decimal `json:"prices"`
	Owned        bool                               `json:"owned"`
}

type ShopSnapshot struct {
	Items        []ShopItem `json:"items"`
	TotalCount   int        `json:"total_count"`
	HasNextPage  bool       `json:"has_next_page"`
	Page         int        `json:"page"`
	HasError     bool       `json:"has_error"`
	ErrorMessage string     `json:"error_message,omitempty"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

func NewShopError(message string) ShopSnapshot {
	return ShopSnapshot{
		Items:        []ShopItem{},
		HasError:     true,
		ErrorMessage: message,
	}
}

type PurchaseResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
