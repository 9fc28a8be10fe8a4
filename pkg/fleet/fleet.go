// Package fleet validates and generates ship layouts.
//
// One predicate, Check, decides whether a candidate ship fits next to the
// ships already on a board: every cell in bounds, no shared cells and no
// cell touching another ship, diagonals included. The random generator,
// the manual placer and the validation of a layout received from the
// opponent all go through it.
package fleet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

var (
	// ErrOutOfBounds is returned for candidates leaving the board.
	ErrOutOfBounds = fmt.Errorf("%w: out of bounds", board.ErrInvalidPlacement)

	// ErrOverlap is returned for candidates sharing a cell with a placed ship.
	ErrOverlap = fmt.Errorf("%w: overlaps another ship", board.ErrInvalidPlacement)

	// ErrAdjacent is returned for candidates touching a placed ship.
	ErrAdjacent = fmt.Errorf("%w: adjacent to another ship", board.ErrInvalidPlacement)

	// ErrPlacementExhausted is returned when the generator gives up.
	ErrPlacementExhausted = errors.New("placement exhausted")
)

// Orientation of a ship from its anchor cell.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "Horizontal"
	case Vertical:
		return "Vertical"
	default:
		return "Unknown"
	}
}

// Manifest lists the ship lengths of a fleet.
type Manifest []int

// DefaultManifest is one ship of 4, two of 3, three of 2 and four of 1.
var DefaultManifest = Manifest{4, 3, 3, 2, 2, 2, 1, 1, 1, 1}

// Validate checks that every length fits the board and the fleet is not
// larger than the board itself.
func (m Manifest) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("empty fleet manifest")
	}
	for _, l := range m {
		if l < 1 || l > board.Size {
			return fmt.Errorf("ship length %d outside 1..%d", l, board.Size)
		}
	}
	if m.Cells() > board.Size*board.Size {
		return fmt.Errorf("fleet of %d cells does not fit a %dx%d board", m.Cells(), board.Size, board.Size)
	}
	return nil
}

// Cells returns the total number of cells the fleet occupies.
func (m Manifest) Cells() (n int) {
	for _, l := range m {
		n += l
	}
	return
}

// Equal reports whether both manifests hold the same lengths, in any order.
func (m Manifest) Equal(o Manifest) bool {
	if len(m) != len(o) {
		return false
	}
	a := append(Manifest(nil), m...)
	b := append(Manifest(nil), o...)
	sort.Sort(sort.Reverse(sort.IntSlice(a)))
	sort.Sort(sort.Reverse(sort.IntSlice(b)))
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Of returns the manifest of a layout.
func Of(layout [][]board.Cell) Manifest {
	m := make(Manifest, len(layout))
	for i, ship := range layout {
		m[i] = len(ship)
	}
	return m
}

// Span returns the cells of a ship of the given length, starting at anchor
// and growing right (Horizontal) or down (Vertical). Cells may fall off
// the board; Check rejects those.
func Span(anchor board.Cell, length int, o Orientation) []board.Cell {
	cells := make([]board.Cell, length)
	for i := 0; i < length; i++ {
		if o == Horizontal {
			cells[i] = board.Cell{X: anchor.X + i, Y: anchor.Y}
		} else {
			cells[i] = board.Cell{X: anchor.X, Y: anchor.Y + i}
		}
	}
	return cells
}

// Check validates a candidate ship against the ships already on b.
func Check(b *board.Board, cells []board.Cell) error {
	if len(cells) == 0 {
		return fmt.Errorf("%w: ship has no cells", board.ErrInvalidPlacement)
	}
	own := make(map[board.Cell]bool, len(cells))
	for _, c := range cells {
		own[c] = true
	}

	for _, c := range cells {
		if !c.InBounds() {
			return fmt.Errorf("%w: %s", ErrOutOfBounds, c)
		}
		if _, ok := b.ShipAt(c); ok {
			return fmt.Errorf("%w: %s", ErrOverlap, c)
		}
		for _, n := range c.Neighbours() {
			if own[n] {
				continue
			}
			if _, ok := b.ShipAt(n); ok {
				return fmt.Errorf("%w: %s touches %s", ErrAdjacent, c, n)
			}
		}
	}
	return nil
}

// Fits reports whether a ship of the given length fits at anchor.
func Fits(b *board.Board, anchor board.Cell, length int, o Orientation) bool {
	return Check(b, Span(anchor, length, o)) == nil
}

// ValidateLayout checks a complete layout, typically one received from
// the opponent: every ship straight and contiguous, and the fleet as a
// whole passing Check ship by ship.
func ValidateLayout(layout [][]board.Cell) error {
	if len(layout) == 0 {
		return fmt.Errorf("%w: empty fleet", board.ErrInvalidPlacement)
	}
	b := board.New()
	for i, ship := range layout {
		if err := straight(ship); err != nil {
			return fmt.Errorf("ship %d: %w", i, err)
		}
		if err := Check(b, ship); err != nil {
			return fmt.Errorf("ship %d: %w", i, err)
		}
		if _, err := b.PlaceShip(ship); err != nil {
			return fmt.Errorf("ship %d: %w", i, err)
		}
	}
	return nil
}

// straight checks that the cells form one horizontal or vertical run
// without gaps, in any order.
func straight(cells []board.Cell) error {
	if len(cells) <= 1 {
		return nil
	}
	sorted := append([]board.Cell(nil), cells...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	horizontal := sorted[0].Y == sorted[1].Y
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if horizontal && (cur.Y != prev.Y || cur.X != prev.X+1) {
			return fmt.Errorf("%w: cells are not a contiguous straight line", board.ErrInvalidPlacement)
		}
		if !horizontal && (cur.X != prev.X || cur.Y != prev.Y+1) {
			return fmt.Errorf("%w: cells are not a contiguous straight line", board.ErrInvalidPlacement)
		}
	}
	return nil
}
