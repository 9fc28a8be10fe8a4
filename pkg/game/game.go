// Package game runs one side of a battleships match.
//
// A Session owns the local board and the mirror of the opponent's board
// and advances through
//
//	AwaitingFleetExchange -> MyTurn <-> OpponentTurn -> Finished
//
// purely by exchanging messages with the peer. The host moves first.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/history"
)

var (
	// ErrProtocolViolation is returned when the peer sends something the
	// current state does not allow.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrNotYourTurn is returned by Attack outside MyTurn.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrNotOpponentTurn is returned by AwaitAttack outside OpponentTurn.
	ErrNotOpponentTurn = errors.New("not the opponent's turn")

	// ErrInvalidTarget is returned for attack cells rejected before sending.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrOffBoard is returned for attack cells outside the board.
	ErrOffBoard = fmt.Errorf("%w: cell off the board", ErrInvalidTarget)

	// ErrAlreadyAttacked is returned for cells with a known result.
	ErrAlreadyAttacked = fmt.Errorf("%w: cell already attacked", ErrInvalidTarget)

	// ErrPeerUnresponsive is returned once the receive timeout budget is spent.
	ErrPeerUnresponsive = errors.New("peer unresponsive")

	// ErrFinished is returned by calls made after the game ended.
	ErrFinished = errors.New("game finished")
)

// Role is the side a player takes. The host moves first.
type Role int

const (
	Host Role = iota
	Guest
)

func (r Role) String() string {
	switch r {
	case Host:
		return "host"
	case Guest:
		return "guest"
	default:
		return "unknown"
	}
}

// ParseRole parses "host" or "guest".
func ParseRole(s string) (Role, error) {
	switch s {
	case "host":
		return Host, nil
	case "guest":
		return Guest, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// State of a session.
type State int

const (
	AwaitingFleetExchange State = iota
	MyTurn
	OpponentTurn
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingFleetExchange:
		return "AwaitingFleetExchange"
	case MyTurn:
		return "MyTurn"
	case OpponentTurn:
		return "OpponentTurn"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Outcome of a finished session.
type Outcome int

const (
	Undecided Outcome = iota
	Won
	Lost
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return history.Won
	case Lost:
		return history.Lost
	case Aborted:
		return history.Aborted
	default:
		return "undecided"
	}
}

// Transport is the message channel to the peer. *comms.Session implements it.
type Transport interface {
	ID() string
	Send(m comms.Message) error
	// Receive returns comms.ErrTimeout for a slow round and
	// comms.ErrDisconnected once the peer is gone.
	Receive(timeout time.Duration) (comms.Message, error)
	Close() error
}

// Config tunes a session.
type Config struct {
	// ReceiveTimeout bounds a single wait for the peer.
	ReceiveTimeout time.Duration

	// MaxTimeouts is how many consecutive timeouts a wait tolerates
	// before the peer is declared unresponsive.
	MaxTimeouts int

	// Strict aborts on any protocol violation. Otherwise violations are
	// logged and skipped where the game can carry on.
	Strict bool

	// Manifest, when set, is the fleet the opponent must announce.
	Manifest fleet.Manifest
}

const (
	DefaultReceiveTimeout = 5 * time.Second
	DefaultMaxTimeouts    = 60
)

// DefaultConfig is a lenient config expecting the default fleet.
func DefaultConfig() Config {
	return Config{
		ReceiveTimeout: DefaultReceiveTimeout,
		MaxTimeouts:    DefaultMaxTimeouts,
		Manifest:       fleet.DefaultManifest,
	}
}

// WithDefaults fills unset timeouts with the defaults.
func (c Config) WithDefaults() Config {
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.MaxTimeouts <= 0 {
		c.MaxTimeouts = DefaultMaxTimeouts
	}
	return c
}
