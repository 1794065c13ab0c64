package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MessageServiceUnavailable = "service unavailable, please try again later"
	MessageDataNotLoaded      = "user data not loaded"
	MessageNoSession          = "user data not loaded, open the rewards terminal in game first"
	MessageUnconfirmed        = "the result could not be confirmed, your balance has been refreshed"
)

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%s",
		time.Now().Format("20060102"),
		uuid.NewString())
}

func GenerateSessionID() string {
	return uuid.NewString()
}

func (r *PurchaseRequest) Validate() error {
	if r.ItemID <= 0 {
		return fmt.Errorf("item id must be positive")
	}
	return r.Period.Validate()
}

func (r *ClaimRequest) Validate() error {
	if r.RewardID <= 0 {
		return fmt.Errorf("reward id must be positive")
	}
	return nil
}

func (r *OpenLootboxRequest) Validate() error {
	if r.UserItemID <= 0 {
		return fmt.Errorf("user item id must be positive")
	}
	return nil
}

func NewPurchaseFailure(message string) PurchaseResult {
	return PurchaseResult{Success: false, Message: message}
}

func NewClaimFailure(message string, isPremium bool) ClaimResult {
	return ClaimResult{Success: false, Message: message, IsPremium: isPremium}
}

func NewLootboxFailure(message string, suspense bool) LootboxOpenResult {
	return LootboxOpenResult{Success: false, Message: message, SuspenseMode: suspense}
}
