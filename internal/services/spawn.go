package services

import (
	"context"

	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

type SpawnDecision struct {
	Allowed  bool                       `json:"allowed"`
	Reason   string                     `json:"reason,omitempty"`
	Snapshot models.PlayerStateSnapshot `json:"snapshot"`
}

const (
	SpawnReasonNotLoaded      = "user data not loaded"
	SpawnReasonNotOwned       = "item is not in the inventory"
	SpawnReasonAlreadySpawned = "item already spawned this round"
)

// SpawnService guards in-round item materialization: an owned item can be
// spawned once per player per round. The game host performs the spawn itself.
type SpawnService struct {
	gateway     gateway.Gateway
	players     *PlayerStateCache
	inventories *InventoryCache
	pusher      Pusher
	logger      zerolog.Logger
}

func NewSpawnService(gw gateway.Gateway, players *PlayerStateCache, inventories *InventoryCache, pusher Pusher, logger zerolog.Logger) *SpawnService {
	return &SpawnService{
		gateway:     gw,
		players:     players,
		inventories: inventories,
		pusher:      pusher,
		logger:      logger.With().Str("component", "spawn").Logger(),
	}
}

// RequestSpawn decides whether identity may spawn gameEntityID now and, if
// so, records it and pushes the updated profile.
func (s *SpawnService) RequestSpawn(ctx context.Context, identity models.Identity, gameEntityID string) SpawnDecision {
	snapshot, ok := s.players.Peek(identity)
	if !ok {
		snapshot = s.players.GetOrFetch(ctx, identity)
		if !snapshot.Cacheable() {
			return SpawnDecision{Reason: SpawnReasonNotLoaded, Snapshot: snapshot}
		}
	}
	if snapshot.HasSpawned(gameEntityID) {
		return SpawnDecision{Reason: SpawnReasonAlreadySpawned, Snapshot: snapshot}
	}

	inventory, ok := s.inventories.Peek(identity)
	if !ok {
		inventory = s.inventories.GetOrFetch(ctx, identity)
		if inventory.HasError {
			return SpawnDecision{Reason: SpawnReasonNotLoaded, Snapshot: snapshot}
		}
	}
	if !inventory.Owns(gameEntityID) {
		return SpawnDecision{Reason: SpawnReasonNotOwned, Snapshot: snapshot}
	}

	updated, ok := s.players.MarkSpawned(identity, gameEntityID)
	if !ok {
		// Lost a race with another spawn or an invalidation.
		current, _ := s.players.Peek(identity)
		if current.HasSpawned(gameEntityID) {
			return SpawnDecision{Reason: SpawnReasonAlreadySpawned, Snapshot: current}
		}
		return SpawnDecision{Reason: SpawnReasonNotLoaded, Snapshot: current}
	}

	s.logger.Info().Str("identity", string(identity)).Str("game_entity_id", gameEntityID).Msg("item spawned")
	s.pusher.PushProfile(identity, updated)
	return SpawnDecision{Allowed: true, Snapshot: updated}
}

// OnStartingGear is called when the host equips a player's starting gear.
func (s *SpawnService) OnStartingGear(ctx context.Context, identity models.Identity) error {
	if err := s.gateway.AddSpawnBanTimer(ctx, identity); err != nil {
		s.logger.Warn().Err(err).Str("identity", string(identity)).Msg("failed to add spawn ban timer")
		return err
	}
	return nil
}

// OnRoundRestart forgets every cached snapshot and spawned set and asks the
// backend to drop its spawn-ban timers.
func (s *SpawnService) OnRoundRestart(ctx context.Context) error {
	s.players.ResetRound()
	s.inventories.ResetRound()

	if err := s.gateway.ClearSpawnBanTimers(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear spawn ban timers")
		return err
	}
	s.logger.Info().Msg("round restarted")
	return nil
}
