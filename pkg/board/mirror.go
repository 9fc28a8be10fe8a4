package board

// Mirror is the attacker's reconstruction of the opponent board. It only
// holds what the opponent acknowledged: hits and misses. Unrevealed ship
// cells are never stored here.
type Mirror struct {
	shipCells int
	hits      map[Cell]struct{}
	misses    map[Cell]struct{}
	sunk      map[Cell]struct{}
	history   []Cell
}

// NewMirror returns an empty mirror of a fleet occupying shipCells cells.
func NewMirror(shipCells int) *Mirror {
	return &Mirror{
		shipCells: shipCells,
		hits:      make(map[Cell]struct{}),
		misses:    make(map[Cell]struct{}),
		sunk:      make(map[Cell]struct{}),
	}
}

// Record applies an acknowledged attack result. A cell already recorded
// keeps its first result.
func (m *Mirror) Record(c Cell, hit bool) {
	if !c.InBounds() || m.IsAttacked(c) {
		return
	}
	if hit {
		m.hits[c] = struct{}{}
	} else {
		m.misses[c] = struct{}{}
	}
	m.history = append(m.history, c)
}

// MarkSunk flags a hit cell as part of a sunk ship, for rendering.
func (m *Mirror) MarkSunk(c Cell) {
	if _, ok := m.hits[c]; ok {
		m.sunk[c] = struct{}{}
	}
}

// AllShipsSunk reports whether every announced ship cell has been hit.
func (m *Mirror) AllShipsSunk() bool {
	return m.shipCells > 0 && len(m.hits) >= m.shipCells
}

// Remaining returns the number of ship cells not yet hit.
func (m *Mirror) Remaining() int {
	if r := m.shipCells - len(m.hits); r > 0 {
		return r
	}
	return 0
}

// IsAttacked reports whether the cell already has a known result.
func (m *Mirror) IsAttacked(c Cell) bool {
	_, hit := m.hits[c]
	_, miss := m.misses[c]
	return hit || miss
}

// IsHit reports whether the cell was acknowledged as a hit.
func (m *Mirror) IsHit(c Cell) bool {
	_, ok := m.hits[c]
	return ok
}

// Hits returns the acknowledged hits in row order.
func (m *Mirror) Hits() []Cell {
	return sortedCells(m.hits)
}

// Misses returns the acknowledged misses in row order.
func (m *Mirror) Misses() []Cell {
	return sortedCells(m.misses)
}

// History returns the recorded attacks, oldest first.
func (m *Mirror) History() []Cell {
	return append([]Cell(nil), m.history...)
}

// CellState implements Grid.
func (m *Mirror) CellState(c Cell) CellState {
	switch {
	case m.IsHit(c):
		if _, ok := m.sunk[c]; ok {
			return CellSunk
		}
		return CellHit
	case m.IsAttacked(c):
		return CellMiss
	default:
		return CellUnknown
	}
}

// String renders the mirror.
func (m *Mirror) String() string {
	return Render(m)
}
