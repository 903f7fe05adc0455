package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"roulette/domain/entities"
)

// Randomizer is the random source behind a draw. *rand.Rand satisfies it.
type Randomizer interface {
	Intn(n int) int
}

// NewSeededRandomizer returns a deterministic source, mainly for tests
func NewSeededRandomizer(seed int64) Randomizer {
	return rand.New(rand.NewSource(seed))
}

// OutcomeGenerator draws a uniformly random sector from the wheel
type OutcomeGenerator struct {
	wheel *entities.Wheel

	mu  sync.Mutex
	rng Randomizer
}

// NewOutcomeGenerator validates the wheel and binds it to a random source.
// A nil source is replaced by a time-seeded one.
func NewOutcomeGenerator(wheel *entities.Wheel, rng Randomizer) (*OutcomeGenerator, error) {
	if wheel == nil {
		return nil, fmt.Errorf("outcome generator requires a wheel")
	}
	if err := wheel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wheel: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &OutcomeGenerator{wheel: wheel, rng: rng}, nil
}

// Draw selects one sector
func (g *OutcomeGenerator) Draw() entities.Outcome {
	g.mu.Lock()
	index := g.rng.Intn(len(g.wheel.Sectors))
	g.mu.Unlock()

	sector := g.wheel.Sectors[index]
	return entities.Outcome{
		Index:    index,
		Number:   sector.Number,
		Category: sector.Category,
	}
}

// Wheel returns the wheel the generator draws from
func (g *OutcomeGenerator) Wheel() *entities.Wheel {
	return g.wheel
}
