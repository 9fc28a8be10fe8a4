package board

import (
	"encoding/json"
	"fmt"
)

// Size is the width and height of every board.
const Size = 10

// Cell is one grid coordinate. It is a value type and can be used as a map key.
type Cell struct {
	X int
	Y int
}

// InBounds reports whether the cell lies on a Size x Size board.
func (c Cell) InBounds() bool {
	return c.X >= 0 && c.X < Size && c.Y >= 0 && c.Y < Size
}

// Neighbours returns the in-bounds cells 8-directionally adjacent to c.
func (c Cell) Neighbours() []Cell {
	cells := make([]Cell, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Cell{X: c.X + dx, Y: c.Y + dy}
			if n.InBounds() {
				cells = append(cells, n)
			}
		}
	}
	return cells
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// MarshalJSON encodes the cell as [x, y].
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.X, c.Y})
}

// UnmarshalJSON decodes a cell from [x, y].
func (c *Cell) UnmarshalJSON(b []byte) error {
	var v [2]int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("cell must be a [x, y] pair: %w", err)
	}
	c.X, c.Y = v[0], v[1]
	return nil
}

// less orders cells row by row.
func less(a, b Cell) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
