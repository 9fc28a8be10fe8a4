package board_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

func TestPlaceShip(t *testing.T) {
	b := board.New()

	id, err := b.PlaceShip([]board.Cell{{X: 1, Y: 1}, {X: 2, Y: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a ship id")
	}

	for _, c := range []board.Cell{{X: 1, Y: 1}, {X: 2, Y: 1}} {
		have, ok := b.ShipAt(c)
		if !ok || have != id {
			t.Errorf("expected ship %s at %s, got %q (ok=%v)", id, c, have, ok)
		}
	}
	if _, ok := b.ShipAt(board.Cell{X: 3, Y: 1}); ok {
		t.Errorf("unexpected ship at (3, 1)")
	}
	if want, have := 2, b.ShipCells(); want != have {
		t.Errorf("unexpected ship cells. want %d, have %d", want, have)
	}
}

func TestPlaceShip_Invalid(t *testing.T) {
	b := board.New()
	if _, err := b.PlaceShip([]board.Cell{{X: 0, Y: 0}, {X: 0, Y: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string][]board.Cell{
		"empty":        {},
		"out of range": {{X: 9, Y: 9}, {X: 10, Y: 9}},
		"negative":     {{X: -1, Y: 4}},
		"occupied":     {{X: 0, Y: 1}, {X: 0, Y: 2}},
		"duplicated":   {{X: 5, Y: 5}, {X: 5, Y: 5}},
	}
	for name, cells := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := b.PlaceShip(cells)
			if !errors.Is(err, board.ErrInvalidPlacement) {
				t.Errorf("expected ErrInvalidPlacement, got %v", err)
			}
		})
	}
	if want, have := 1, len(b.Ships()); want != have {
		t.Errorf("rejected ships must not be recorded. want %d ships, have %d", want, have)
	}
}

func TestReceiveAttack(t *testing.T) {
	b := board.New()
	b.PlaceShip([]board.Cell{{X: 1, Y: 1}, {X: 1, Y: 2}})

	if b.ReceiveAttack(board.Cell{X: 4, Y: 4}) {
		t.Errorf("attack on empty cell should miss")
	}
	if !b.IsMiss(board.Cell{X: 4, Y: 4}) {
		t.Errorf("missed attack should be recorded as miss")
	}
	if !b.ReceiveAttack(board.Cell{X: 1, Y: 1}) {
		t.Errorf("attack on ship cell should hit")
	}
	if !b.IsHit(board.Cell{X: 1, Y: 1}) {
		t.Errorf("hit should be recorded")
	}
	if b.ReceiveAttack(board.Cell{X: 10, Y: 0}) {
		t.Errorf("attack off the board should not hit")
	}
	if want, have := 2, len(b.History()); want != have {
		t.Errorf("unexpected history length. want %d, have %d", want, have)
	}
}

func TestReceiveAttack_Idempotent(t *testing.T) {
	b := board.New()
	b.PlaceShip([]board.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}})

	for i := 0; i < 3; i++ {
		if !b.ReceiveAttack(board.Cell{X: 0, Y: 0}) {
			t.Fatalf("attack %d on ship cell should hit", i)
		}
		if b.ReceiveAttack(board.Cell{X: 5, Y: 5}) {
			t.Fatalf("attack %d on empty cell should miss", i)
		}
	}

	if want, have := 1, len(b.Hits()); want != have {
		t.Errorf("unexpected hits. want %d, have %d", want, have)
	}
	if want, have := 1, len(b.Misses()); want != have {
		t.Errorf("unexpected misses. want %d, have %d", want, have)
	}
	if b.IsMiss(board.Cell{X: 0, Y: 0}) || b.IsHit(board.Cell{X: 5, Y: 5}) {
		t.Errorf("repeated attacks moved a cell between hit and miss")
	}
	if b.AllShipsSunk() {
		t.Errorf("repeated attacks must not sink the ship")
	}
	if want, have := 2, len(b.History()); want != have {
		t.Errorf("repeated attacks must not grow history. want %d, have %d", want, have)
	}
}

func TestAllShipsSunk(t *testing.T) {
	b := board.New()
	id, _ := b.PlaceShip([]board.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}})

	b.ReceiveAttack(board.Cell{X: 0, Y: 0})
	if b.AllShipsSunk() {
		t.Errorf("expected fleet afloat after hitting (0, 0) only")
	}
	if b.IsSunk(id) {
		t.Errorf("expected ship afloat")
	}

	b.ReceiveAttack(board.Cell{X: 1, Y: 0})
	if !b.AllShipsSunk() {
		t.Errorf("expected fleet sunk after hitting (0, 0) and (1, 0)")
	}
	if !b.IsSunk(id) {
		t.Errorf("expected ship sunk")
	}
}

func TestRemoveShip(t *testing.T) {
	b := board.New()
	id, _ := b.PlaceShip([]board.Cell{{X: 3, Y: 3}})
	if err := b.RemoveShip(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.ShipAt(board.Cell{X: 3, Y: 3}); ok {
		t.Errorf("cell still occupied after removal")
	}
	if err := b.RemoveShip(id); err == nil {
		t.Errorf("expected error removing unknown ship")
	}

	id, _ = b.PlaceShip([]board.Cell{{X: 3, Y: 3}})
	b.ReceiveAttack(board.Cell{X: 0, Y: 0})
	if err := b.RemoveShip(id); err == nil {
		t.Errorf("expected error removing ship after attacks")
	}
}

func TestCellState(t *testing.T) {
	b := board.New()
	b.PlaceShip([]board.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}})
	b.PlaceShip([]board.Cell{{X: 5, Y: 5}})
	b.ReceiveAttack(board.Cell{X: 0, Y: 0})
	b.ReceiveAttack(board.Cell{X: 5, Y: 5})
	b.ReceiveAttack(board.Cell{X: 9, Y: 9})

	tests := map[board.Cell]board.CellState{
		{X: 0, Y: 0}: board.CellHit,
		{X: 1, Y: 0}: board.CellShip,
		{X: 5, Y: 5}: board.CellSunk,
		{X: 9, Y: 9}: board.CellMiss,
		{X: 4, Y: 4}: board.CellUnknown,
	}
	for c, want := range tests {
		if have := b.CellState(c); want != have {
			t.Errorf("unexpected state at %s. want %s, have %s", c, want, have)
		}
	}

	rendered := b.String()
	if want, have := board.Size+1, strings.Count(rendered, "\n"); want != have {
		t.Errorf("unexpected rendered lines. want %d, have %d", want, have)
	}
}

func TestCellJSON(t *testing.T) {
	b, err := json.Marshal(board.Cell{X: 3, Y: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := "[3,7]", string(b); want != have {
		t.Errorf("unexpected JSON. want %s, have %s", want, have)
	}

	var c board.Cell
	if err := json.Unmarshal([]byte("[4, 2]"), &c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := (board.Cell{X: 4, Y: 2}), c; want != have {
		t.Errorf("unexpected cell. want %v, have %v", want, have)
	}
}

func TestNeighbours(t *testing.T) {
	if want, have := 3, len(board.Cell{X: 0, Y: 0}.Neighbours()); want != have {
		t.Errorf("corner neighbours. want %d, have %d", want, have)
	}
	if want, have := 5, len(board.Cell{X: 0, Y: 4}.Neighbours()); want != have {
		t.Errorf("edge neighbours. want %d, have %d", want, have)
	}
	if want, have := 8, len(board.Cell{X: 4, Y: 4}.Neighbours()); want != have {
		t.Errorf("inner neighbours. want %d, have %d", want, have)
	}
}
