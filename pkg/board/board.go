package board

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrInvalidPlacement is returned when a ship cannot be committed to a board.
var ErrInvalidPlacement = errors.New("invalid placement")

// ShipID identifies a ship on its owner's board. It carries no
// information about the ship's name, length or position.
type ShipID string

// NewShipID returns a fresh opaque ship id.
func NewShipID() ShipID {
	return ShipID(uuid.NewString())
}

// Ship is a straight run of cells owned by a single board.
type Ship struct {
	ID    ShipID
	Cells []Cell
}

// Len returns the number of cells the ship occupies.
func (s Ship) Len() int {
	return len(s.Cells)
}

// CellState is the rendering state of one cell.
type CellState int

const (
	CellUnknown CellState = iota
	CellShip
	CellHit
	CellSunk
	CellMiss
)

func (s CellState) String() string {
	switch s {
	case CellUnknown:
		return "Unknown"
	case CellShip:
		return "Ship"
	case CellHit:
		return "Hit"
	case CellSunk:
		return "Sunk"
	case CellMiss:
		return "Miss"
	default:
		return "Unknown"
	}
}

// Grid is the read-only view the presentation layer renders.
type Grid interface {
	CellState(c Cell) CellState
}

// Board is one player's own grid: the fleet and every attack received.
//
// A cell, once hit or missed, stays that way for the rest of the game.
type Board struct {
	ships    []Ship
	occupied map[Cell]ShipID
	hits     map[Cell]struct{}
	misses   map[Cell]struct{}

	// history is the stack of attacks received, oldest first.
	history []Cell
}

// New returns an empty board.
func New() *Board {
	return &Board{
		ships:    make([]Ship, 0),
		occupied: make(map[Cell]ShipID),
		hits:     make(map[Cell]struct{}),
		misses:   make(map[Cell]struct{}),
	}
}

// PlaceShip records a new ship on the given cells and returns its id.
//
// Adjacency is the placer's concern. PlaceShip only refuses empty ships,
// cells off the board and cells already occupied.
func (b *Board) PlaceShip(cells []Cell) (ShipID, error) {
	if len(cells) == 0 {
		return "", fmt.Errorf("%w: ship has no cells", ErrInvalidPlacement)
	}
	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		if !c.InBounds() {
			return "", fmt.Errorf("%w: cell %s out of bounds", ErrInvalidPlacement, c)
		}
		if seen[c] {
			return "", fmt.Errorf("%w: duplicated cell %s", ErrInvalidPlacement, c)
		}
		if _, ok := b.occupied[c]; ok {
			return "", fmt.Errorf("%w: cell %s already occupied", ErrInvalidPlacement, c)
		}
		seen[c] = true
	}

	ship := Ship{ID: NewShipID(), Cells: append([]Cell(nil), cells...)}
	b.ships = append(b.ships, ship)
	for _, c := range ship.Cells {
		b.occupied[c] = ship.ID
	}
	return ship.ID, nil
}

// RemoveShip takes a ship off the board. Only allowed before any attack
// has been received.
func (b *Board) RemoveShip(id ShipID) error {
	if len(b.history) > 0 {
		return fmt.Errorf("cannot remove ship %s: board already under attack", id)
	}
	for i := range b.ships {
		if b.ships[i].ID != id {
			continue
		}
		for _, c := range b.ships[i].Cells {
			delete(b.occupied, c)
		}
		b.ships = append(b.ships[:i], b.ships[i+1:]...)
		return nil
	}
	return fmt.Errorf("ship %s not found", id)
}

// ReceiveAttack applies an attack and reports whether it hit a ship.
//
// Repeating an attack is harmless: the cell stays where it was first
// recorded. Cells off the board are never recorded.
func (b *Board) ReceiveAttack(c Cell) bool {
	if !c.InBounds() {
		return false
	}
	if _, ok := b.occupied[c]; ok {
		if _, done := b.hits[c]; !done {
			b.hits[c] = struct{}{}
			b.history = append(b.history, c)
		}
		return true
	}
	if _, done := b.misses[c]; !done {
		b.misses[c] = struct{}{}
		b.history = append(b.history, c)
	}
	return false
}

// AllShipsSunk reports whether every ship cell has been hit.
func (b *Board) AllShipsSunk() bool {
	for _, s := range b.ships {
		for _, c := range s.Cells {
			if _, ok := b.hits[c]; !ok {
				return false
			}
		}
	}
	return true
}

// IsAttacked reports whether the cell has been hit or missed.
func (b *Board) IsAttacked(c Cell) bool {
	return b.IsHit(c) || b.IsMiss(c)
}

// IsHit reports whether the cell is a hit ship cell.
func (b *Board) IsHit(c Cell) bool {
	_, ok := b.hits[c]
	return ok
}

// IsMiss reports whether the cell was attacked and empty.
func (b *Board) IsMiss(c Cell) bool {
	_, ok := b.misses[c]
	return ok
}

// ShipAt returns the id of the ship occupying c.
func (b *Board) ShipAt(c Cell) (ShipID, bool) {
	id, ok := b.occupied[c]
	return id, ok
}

// IsSunk reports whether every cell of the ship has been hit.
func (b *Board) IsSunk(id ShipID) bool {
	for _, s := range b.ships {
		if s.ID != id {
			continue
		}
		for _, c := range s.Cells {
			if !b.IsHit(c) {
				return false
			}
		}
		return true
	}
	return false
}

// Ships returns a copy of the fleet in placement order.
func (b *Board) Ships() []Ship {
	ships := make([]Ship, len(b.ships))
	for i, s := range b.ships {
		ships[i] = Ship{ID: s.ID, Cells: append([]Cell(nil), s.Cells...)}
	}
	return ships
}

// Layout returns the fleet as plain cell lists, the shape exchanged
// with the opponent at session start.
func (b *Board) Layout() [][]Cell {
	layout := make([][]Cell, len(b.ships))
	for i, s := range b.ships {
		layout[i] = append([]Cell(nil), s.Cells...)
	}
	return layout
}

// ShipCells returns the number of occupied cells.
func (b *Board) ShipCells() int {
	return len(b.occupied)
}

// Hits returns the hit cells in row order.
func (b *Board) Hits() []Cell {
	return sortedCells(b.hits)
}

// Misses returns the missed cells in row order.
func (b *Board) Misses() []Cell {
	return sortedCells(b.misses)
}

// History returns the attacks received, oldest first.
func (b *Board) History() []Cell {
	return append([]Cell(nil), b.history...)
}

// CellState implements Grid. Ship cells are always revealed on an own board.
func (b *Board) CellState(c Cell) CellState {
	switch {
	case b.IsMiss(c):
		return CellMiss
	case b.IsHit(c):
		if id, _ := b.ShipAt(c); b.IsSunk(id) {
			return CellSunk
		}
		return CellHit
	default:
		if _, ok := b.occupied[c]; ok {
			return CellShip
		}
		return CellUnknown
	}
}

// String renders the board with ships revealed.
func (b *Board) String() string {
	return Render(b)
}

func sortedCells(set map[Cell]struct{}) []Cell {
	cells := make([]Cell, 0, len(set))
	for c := range set {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return less(cells[i], cells[j]) })
	return cells
}
