package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	mathrand "math/rand/v2"
	"sync"

	"rewards-terminal/internal/models"
)

// Reveal protocol constants shared with the client. Changing either one
// without the client moves the landing card, not the awarded item.
const (
	RevealSequenceLength = 50
	RevealWinningIndex   = 44
)

type rarityWeight struct {
	rarity models.Rarity
	weight int
}

var fillerWeights = []rarityWeight{
	{models.RarityCommon, 50},
	{models.RarityEpic, 25},
	{models.RarityMythic, 15},
	{models.RarityLegendary, 10},
}

var fillerTotalWeight = func() int {
	total := 0
	for _, w := range fillerWeights {
		total += w.weight
	}
	return total
}()

// LootboxResolver turns the backend's authoritative lootbox result into what
// the client renders. It never re-rolls the awarded item; filler entries are
// cosmetic and drawn from a per-open seed so a strip can be rebuilt later.
type LootboxResolver struct {
	mu         sync.Mutex
	serverSeed []byte
	nonce      uint64
}

// NewLootboxResolver uses serverSeed when given, otherwise a random one.
func NewLootboxResolver(serverSeed string) *LootboxResolver {
	r := &LootboxResolver{}
	if serverSeed != "" {
		r.serverSeed = []byte(serverSeed)
	} else {
		r.serverSeed = generateServerSeed()
	}
	return r
}

func generateServerSeed() []byte {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return seed
}

// ServerSeedHash publishes a commitment to the current server seed.
func (r *LootboxResolver) ServerSeedHash() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := sha256.Sum256(r.serverSeed)
	return hex.EncodeToString(hash[:])
}

func (r *LootboxResolver) RotateServerSeed(newSeed string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if newSeed == "" {
		r.serverSeed = generateServerSeed()
	} else {
		r.serverSeed = []byte(newSeed)
	}
	r.nonce = 0
}

// BuildOpenResult attaches a reveal sequence to a successful suspense open.
// Instant opens and failures carry no sequence.
func (r *LootboxResolver) BuildOpenResult(opened models.LootboxOpenResult, suspense bool) models.LootboxOpenResult {
	result := opened
	result.SuspenseMode = suspense
	result.Sequence = nil
	result.SequenceSeed = ""

	if !result.Success {
		return result
	}
	if result.Item == nil {
		failure := models.NewLootboxFailure("lootbox opened without an awarded item", suspense)
		failure.LootboxName = result.LootboxName
		return failure
	}
	if !suspense {
		return result
	}

	seed := r.nextSeed(result.Item.ItemID)
	result.Sequence = buildSequence(seed, result.Item.Rarity)
	result.SequenceSeed = hex.EncodeToString(seed)
	return result
}

func (r *LootboxResolver) nextSeed(itemID int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nonce++
	h := hmac.New(sha256.New, r.serverSeed)
	fmt.Fprintf(h, "reveal:%d:%d", itemID, r.nonce)
	return h.Sum(nil)
}

// RebuildSequence regenerates the strip produced for seedHex.
func RebuildSequence(seedHex string, winning models.Rarity) ([]models.Rarity, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid sequence seed: %w", err)
	}
	if len(seed) != sha256.Size {
		return nil, fmt.Errorf("invalid sequence seed length: %d", len(seed))
	}
	return buildSequence(seed, winning), nil
}

func buildSequence(seed []byte, winning models.Rarity) []models.Rarity {
	var key [32]byte
	copy(key[:], seed)
	rng := mathrand.New(mathrand.NewChaCha8(key))

	sequence := make([]models.Rarity, RevealSequenceLength)
	for i := range sequence {
		sequence[i] = drawFiller(rng)
	}
	sequence[RevealWinningIndex] = winning
	return sequence
}

func drawFiller(rng *mathrand.Rand) models.Rarity {
	n := rng.IntN(fillerTotalWeight)
	for _, w := range fillerWeights {
		if n < w.weight {
			return w.rarity
		}
		n -= w.weight
	}
	return models.RarityCommon
}
