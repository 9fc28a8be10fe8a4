package game

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

// ErrNoTargets is returned when every cell has already been attacked.
var ErrNoTargets = errors.New("no cells left to attack")

// TargetSource picks the next cell to attack.
type TargetSource interface {
	Next(ctx context.Context, v View) (board.Cell, error)
}

// TargetFunc adapts a function to a TargetSource.
type TargetFunc func(ctx context.Context, v View) (board.Cell, error)

// Next calls f(ctx, v).
func (f TargetFunc) Next(ctx context.Context, v View) (board.Cell, error) {
	return f(ctx, v)
}

// RandomTargets fires at random unattacked cells, following up around
// hits that have not been reported sunk.
type RandomTargets struct {
	rng *rand.Rand
}

// NewRandomTargets returns a source drawing from rng.
func NewRandomTargets(rng *rand.Rand) *RandomTargets {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomTargets{rng: rng}
}

func (r *RandomTargets) Next(ctx context.Context, v View) (board.Cell, error) {
	mirror := v.Opponent

	var follow []board.Cell
	for _, h := range mirror.Hits() {
		if mirror.CellState(h) == board.CellSunk {
			continue
		}
		for _, n := range orthogonal(h) {
			if !mirror.IsAttacked(n) {
				follow = append(follow, n)
			}
		}
	}
	if len(follow) > 0 {
		return follow[r.rng.Intn(len(follow))], nil
	}

	// Ships never touch, so cells around a sunk ship are empty.
	var free []board.Cell
	for y := 0; y < board.Size; y++ {
		for x := 0; x < board.Size; x++ {
			c := board.Cell{X: x, Y: y}
			if mirror.IsAttacked(c) || touchesSunk(mirror, c) {
				continue
			}
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		// Fall back to anything left.
		for y := 0; y < board.Size; y++ {
			for x := 0; x < board.Size; x++ {
				if c := (board.Cell{X: x, Y: y}); !mirror.IsAttacked(c) {
					free = append(free, c)
				}
			}
		}
	}
	if len(free) == 0 {
		return board.Cell{}, ErrNoTargets
	}
	return free[r.rng.Intn(len(free))], nil
}

func touchesSunk(m *board.Mirror, c board.Cell) bool {
	for _, n := range c.Neighbours() {
		if m.CellState(n) == board.CellSunk {
			return true
		}
	}
	return false
}

// orthogonal returns the in-bounds cells sharing an edge with c.
func orthogonal(c board.Cell) []board.Cell {
	cells := make([]board.Cell, 0, 4)
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if n := (board.Cell{X: c.X + d[0], Y: c.Y + d[1]}); n.InBounds() {
			cells = append(cells, n)
		}
	}
	return cells
}
