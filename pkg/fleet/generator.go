package fleet

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

const (
	// DefaultAttempts bounds the anchor samples spent on a single ship.
	DefaultAttempts = 1000

	// DefaultRounds bounds how many times a stuck layout is reshuffled.
	DefaultRounds = 8
)

// Generator places fleets by rejection sampling: for each ship, sample a
// random anchor and orientation until Check passes. There is no
// backtracking within a round; a ship that exhausts its attempts throws
// the whole layout away and a new round starts from an empty board.
type Generator struct {
	rng      *rand.Rand
	attempts int
	rounds   int
}

// NewGenerator returns a generator drawing from rng. Non-positive bounds
// fall back to DefaultAttempts and DefaultRounds.
func NewGenerator(rng *rand.Rand, attempts, rounds int) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	return &Generator{rng: rng, attempts: attempts, rounds: rounds}
}

// Generate returns a new board holding a full layout of m.
func (g *Generator) Generate(m Manifest) (*board.Board, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for round := 0; round < g.rounds; round++ {
		b := board.New()
		if err := g.populate(b, m); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %d rounds of %d attempts per ship", ErrPlacementExhausted, g.rounds, g.attempts)
}

// populate places every ship of m on b, longest ships as listed first.
func (g *Generator) populate(b *board.Board, m Manifest) error {
	for _, length := range m {
		placed := false
		for attempt := 0; attempt < g.attempts && !placed; attempt++ {
			anchor := board.Cell{X: g.rng.Intn(board.Size), Y: g.rng.Intn(board.Size)}
			o := Orientation(g.rng.Intn(2))
			cells := Span(anchor, length, o)
			if Check(b, cells) != nil {
				continue
			}
			if _, err := b.PlaceShip(cells); err != nil {
				return err
			}
			placed = true
		}
		if !placed {
			return fmt.Errorf("%w: ship of length %d", ErrPlacementExhausted, length)
		}
	}
	return nil
}
