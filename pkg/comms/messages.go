// Package comms carries game messages between two peers.
//
// Messages are JSON records, one per length-prefixed frame. A frame goes
// over a plain TCP stream or inside a binary websocket message; the
// Session type hides which.
package comms

import (
	"errors"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
)

var (
	// ErrConnection is returned when a listener or dialer cannot reach the peer.
	ErrConnection = errors.New("connection error")

	// ErrSend is returned when a message could not be written.
	ErrSend = errors.New("send error")

	// ErrDisconnected is returned once the peer stream has closed.
	ErrDisconnected = errors.New("peer disconnected")

	// ErrTimeout is returned when no message arrived within the receive timeout.
	ErrTimeout = errors.New("receive timeout")

	// ErrMalformedMessage is returned for frames that decode to no known message.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrFrameTooLarge is returned for frames over the size limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Message is one of Fleet, Attack, Result, GameOver or Hello.
type Message interface {
	isMessage()
}

// Fleet announces a full layout at session start.
type Fleet struct {
	Ships [][]board.Cell `mapstructure:"ships"`
}

// Attack fires at one cell of the recipient's board.
type Attack struct {
	Cell board.Cell `mapstructure:"cell"`
}

// Result answers an Attack. Sunk is set when the hit finished a ship.
type Result struct {
	Hit  bool `mapstructure:"hit"`
	Sunk bool `mapstructure:"sunk"`
}

// Winner names the winner of a game from the sender's point of view.
type Winner string

const (
	// WinnerSelf means the sender won.
	WinnerSelf Winner = "self"

	// WinnerEnemy means the recipient won.
	WinnerEnemy Winner = "enemy"
)

// Valid reports whether w is WinnerSelf or WinnerEnemy.
func (w Winner) Valid() bool {
	return w == WinnerSelf || w == WinnerEnemy
}

// GameOver ends the game.
type GameOver struct {
	Winner Winner `mapstructure:"winner"`
}

// SenderWon reports whether the sender of the message claims the win.
func (g GameOver) SenderWon() bool {
	return g.Winner == WinnerSelf
}

// Hello is sent by a relay to each player before the fleet exchange.
type Hello struct {
	Session string `mapstructure:"session"`
	Role    string `mapstructure:"role"`
}

func (Fleet) isMessage()    {}
func (Attack) isMessage()   {}
func (Result) isMessage()   {}
func (GameOver) isMessage() {}
func (Hello) isMessage()    {}
