package game

import "github.com/JJ-Intelligence/SR-Battleships/pkg/board"

// EventKind tells presentation hooks what happened.
type EventKind int

const (
	TurnChanged EventKind = iota
	ShotFired
	Hit
	Miss
	ShipSunk
	GameOver
)

func (k EventKind) String() string {
	switch k {
	case TurnChanged:
		return "TurnChanged"
	case ShotFired:
		return "ShotFired"
	case Hit:
		return "Hit"
	case Miss:
		return "Miss"
	case ShipSunk:
		return "ShipSunk"
	case GameOver:
		return "GameOver"
	default:
		return "Unknown"
	}
}

// View is what the presentation layer renders. The boards are the live
// session boards and must not be modified.
type View struct {
	Role     Role
	State    State
	Outcome  Outcome
	Own      *board.Board
	Opponent *board.Mirror
	Shots    int
	Hits     int
}

// Event is emitted synchronously from the session goroutine.
type Event struct {
	Kind EventKind

	// Incoming is set for shots fired by the opponent at the own board.
	Incoming bool

	// Cell is the attacked cell for shot events.
	Cell board.Cell

	// Cells holds the cells of a sunk ship.
	Cells []board.Cell

	View View
}

// EventHandler receives session events.
type EventHandler func(Event)
