package fleet

import (
	"fmt"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

// Placer walks a player through placing a manifest by hand, one ship at a
// time, with the same rules as the generator.
type Placer struct {
	board       *board.Board
	manifest    Manifest
	orientation Orientation
	placed      []board.ShipID
}

// NewPlacer starts manual placement of m on an empty board.
func NewPlacer(m Manifest) (*Placer, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Placer{
		board:    board.New(),
		manifest: append(Manifest(nil), m...),
	}, nil
}

// Next returns the length of the next ship to place.
func (p *Placer) Next() (length int, ok bool) {
	if p.Done() {
		return 0, false
	}
	return p.manifest[len(p.placed)], true
}

// Orientation returns the orientation used by Fits and Place.
func (p *Placer) Orientation() Orientation {
	return p.orientation
}

// Rotate toggles between horizontal and vertical.
func (p *Placer) Rotate() {
	if p.orientation == Horizontal {
		p.orientation = Vertical
	} else {
		p.orientation = Horizontal
	}
}

// Candidate returns the cells the next ship would cover at anchor.
func (p *Placer) Candidate(anchor board.Cell) []board.Cell {
	length, ok := p.Next()
	if !ok {
		return nil
	}
	return Span(anchor, length, p.orientation)
}

// Fits reports whether the next ship can go at anchor, for previews.
func (p *Placer) Fits(anchor board.Cell) bool {
	cells := p.Candidate(anchor)
	return cells != nil && Check(p.board, cells) == nil
}

// Place commits the next ship at anchor.
func (p *Placer) Place(anchor board.Cell) error {
	cells := p.Candidate(anchor)
	if cells == nil {
		return fmt.Errorf("all %d ships already placed", len(p.manifest))
	}
	if err := Check(p.board, cells); err != nil {
		return err
	}
	id, err := p.board.PlaceShip(cells)
	if err != nil {
		return err
	}
	p.placed = append(p.placed, id)
	return nil
}

// Undo removes the most recently placed ship.
func (p *Placer) Undo() error {
	if len(p.placed) == 0 {
		return fmt.Errorf("no ship to undo")
	}
	last := p.placed[len(p.placed)-1]
	if err := p.board.RemoveShip(last); err != nil {
		return err
	}
	p.placed = p.placed[:len(p.placed)-1]
	return nil
}

// Done reports whether every ship has been placed.
func (p *Placer) Done() bool {
	return len(p.placed) == len(p.manifest)
}

// Board returns the board being filled. It is complete once Done is true.
func (p *Placer) Board() *board.Board {
	return p.board
}
