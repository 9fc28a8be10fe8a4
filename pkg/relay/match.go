// Package relay hosts matches centrally. The relay sits between two
// players, keeps both boards and decides every attack result itself; the
// players run the ordinary game session against it.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxIgnored = 32

// IsValidMatchID reports whether id could have been issued by NewMatchID.
func IsValidMatchID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewMatchID returns a fresh match id.
func NewMatchID() string {
	return uuid.NewString()
}

// Match relays one game between a host and a guest.
type Match struct {
	Log     *zap.Logger
	MatchID string

	// Players holds the host and the guest, in turn order.
	Players [2]game.Transport

	cfg    game.Config
	boards [2]*board.Board
	once   sync.Once
}

// NewMatch prepares a match. The players must already know their roles.
func NewMatch(id string, host, guest game.Transport, cfg game.Config, log *zap.Logger) *Match {
	if log == nil {
		log = zap.NewNop()
	}
	return &Match{
		Log:     log.With(zap.String("match", id)),
		MatchID: id,
		Players: [2]game.Transport{host, guest},
		cfg:     cfg.WithDefaults(),
	}
}

// Close drops both players.
func (m *Match) Close() {
	m.once.Do(func() {
		for _, p := range m.Players {
			p.Close()
		}
	})
}

// Run relays the game and returns the winner. Any failure of either
// player ends the match for both.
func (m *Match) Run(ctx context.Context) (game.Role, error) {
	defer m.Close()
	stop := context.AfterFunc(ctx, m.Close)
	defer stop()

	winner, err := m.run(ctx)
	if err != nil {
		m.Log.Error("match aborted", zap.Error(err))
		return 0, err
	}
	m.Log.Info(fmt.Sprintf("match won by the %s", winner))
	return winner, nil
}

func (m *Match) run(ctx context.Context) (game.Role, error) {
	// The host announces its fleet first, the guest answers.
	for _, r := range []game.Role{game.Host, game.Guest} {
		msg, err := m.expect(ctx, r, "fleet", func(msg comms.Message) bool {
			_, ok := msg.(comms.Fleet)
			return ok
		})
		if err != nil {
			return 0, err
		}
		f := msg.(comms.Fleet)
		b, err := m.rebuild(f.Ships)
		if err != nil {
			return 0, fmt.Errorf("%s fleet: %w", r, err)
		}
		m.boards[r] = b
		if err := m.send(other(r), f); err != nil {
			return 0, err
		}
	}
	m.Log.Info("fleets exchanged")

	attacker := game.Host
	for {
		defender := other(attacker)
		msg, err := m.expect(ctx, attacker, "attack", func(msg comms.Message) bool {
			_, ok := msg.(comms.Attack)
			return ok
		})
		if err != nil {
			return 0, err
		}
		c := msg.(comms.Attack).Cell
		if err := m.send(defender, msg); err != nil {
			return 0, err
		}

		msg, err = m.expect(ctx, defender, "attack result", func(msg comms.Message) bool {
			_, ok := msg.(comms.Result)
			return ok
		})
		if err != nil {
			return 0, err
		}
		claimed := msg.(comms.Result)

		// The relay's board decides. Repeated and off-board attacks are
		// answered from what the board already recorded.
		b := m.boards[defender]
		res := comms.Result{Hit: b.ReceiveAttack(c)}
		if id, ok := b.ShipAt(c); ok && res.Hit {
			res.Sunk = b.IsSunk(id)
		}
		if claimed != res {
			m.Log.Warn(fmt.Sprintf("%s answered %+v at %s, relay board says %+v", defender, claimed, c, res))
		}
		if err := m.send(attacker, res); err != nil {
			return 0, err
		}

		if b.AllShipsSunk() {
			// The relay speaks as each player's opponent.
			if err := m.send(attacker, comms.GameOver{Winner: comms.WinnerEnemy}); err != nil {
				m.Log.Warn("could not notify the winner", zap.Error(err))
			}
			if err := m.send(defender, comms.GameOver{Winner: comms.WinnerSelf}); err != nil {
				m.Log.Warn("could not notify the loser", zap.Error(err))
			}
			return attacker, nil
		}
		attacker = defender
	}
}

// rebuild validates a fleet and places it on a fresh board.
func (m *Match) rebuild(ships [][]board.Cell) (*board.Board, error) {
	if err := fleet.ValidateLayout(ships); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrProtocolViolation, err)
	}
	if want := m.cfg.Manifest; want != nil && !want.Equal(fleet.Of(ships)) {
		err := fmt.Errorf("%w: fleet %v does not match %v", game.ErrProtocolViolation, fleet.Of(ships), want)
		if m.cfg.Strict {
			return nil, err
		}
		m.Log.Warn("accepting fleet", zap.Error(err))
	}
	b := board.New()
	for _, cells := range ships {
		if _, err := b.PlaceShip(cells); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// expect waits for a message from r accepted by want.
func (m *Match) expect(ctx context.Context, r game.Role, what string, want func(comms.Message) bool) (comms.Message, error) {
	for ignored := 0; ignored < maxIgnored; ignored++ {
		msg, err := game.Receive(ctx, m.Players[r], m.cfg, m.Log)
		if errors.Is(err, comms.ErrMalformedMessage) && !m.cfg.Strict {
			m.Log.Warn(fmt.Sprintf("ignoring malformed message from the %s", r), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r, err)
		}
		if want(msg) {
			return msg, nil
		}
		err = fmt.Errorf("%w: %s sent %T while the relay waited for %s", game.ErrProtocolViolation, r, msg, what)
		if m.cfg.Strict {
			return nil, err
		}
		m.Log.Warn("ignoring protocol violation", zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %d unexpected messages from the %s", game.ErrProtocolViolation, maxIgnored, r)
}

func (m *Match) send(r game.Role, msg comms.Message) error {
	if err := m.Players[r].Send(msg); err != nil {
		return fmt.Errorf("%s: %w", r, err)
	}
	return nil
}

func other(r game.Role) game.Role {
	if r == game.Host {
		return game.Guest
	}
	return game.Host
}

// MatchStore stores match IDs mapped to running matches.
type MatchStore struct {
	// We're using a sync.Map which is optimised for few writes but lots of reads
	store sync.Map
}

func (s *MatchStore) Put(key string, value *Match) {
	s.store.Store(key, value)
}

func (s *MatchStore) Delete(key string) {
	s.store.Delete(key)
}

// Len counts the stored matches.
func (s *MatchStore) Len() int {
	n := 0
	s.store.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
