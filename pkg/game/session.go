package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/history"
	"go.uber.org/zap"
)

const (
	// maxIgnored bounds the unexpected messages skipped in one wait.
	maxIgnored = 32

	// maxTargetPicks bounds the rejected picks of a target source per turn.
	maxTargetPicks = 100
)

// Session is one side of a match. It is not safe for concurrent use;
// Run drives it from a single goroutine.
type Session struct {
	transport Transport
	role      Role
	cfg       Config

	own    *board.Board
	mirror *board.Mirror

	state   State
	outcome Outcome
	reason  error

	shots   int
	hits    int
	started time.Time

	log      *zap.Logger
	handlers []EventHandler
	recorder history.Recorder
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithEventHandler adds an event handler.
func WithEventHandler(h EventHandler) Option {
	return func(s *Session) {
		s.handlers = append(s.handlers, h)
	}
}

// WithRecorder sets where the finished game is recorded.
func WithRecorder(r history.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSession prepares a session over t with a fully placed own board.
func NewSession(t Transport, role Role, own *board.Board, cfg Config, opts ...Option) *Session {
	s := &Session{
		transport: t,
		role:      role,
		cfg:       cfg.WithDefaults(),
		own:       own,
		mirror:    board.NewMirror(0),
		state:     AwaitingFleetExchange,
		started:   time.Now(),
		log:       zap.NewNop(),
		recorder:  history.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("session", t.ID()), zap.String("role", role.String()))
	return s
}

func (s *Session) Role() Role              { return s.role }
func (s *Session) State() State            { return s.state }
func (s *Session) Outcome() Outcome        { return s.outcome }
func (s *Session) Own() *board.Board       { return s.own }
func (s *Session) Opponent() *board.Mirror { return s.mirror }
func (s *Session) Shots() int              { return s.shots }
func (s *Session) Hits() int               { return s.hits }

// Err returns why the session was aborted.
func (s *Session) Err() error {
	return s.reason
}

// View returns the current view for rendering.
func (s *Session) View() View {
	return View{
		Role:     s.role,
		State:    s.state,
		Outcome:  s.outcome,
		Own:      s.own,
		Opponent: s.mirror,
		Shots:    s.shots,
		Hits:     s.hits,
	}
}

// ExchangeFleets swaps layouts with the peer. The host sends first, the
// guest answers. Only the size of the opponent fleet is kept.
func (s *Session) ExchangeFleets(ctx context.Context) error {
	if s.state == Finished {
		return ErrFinished
	}
	if s.state != AwaitingFleetExchange {
		return fmt.Errorf("fleets already exchanged")
	}

	mine := comms.Fleet{Ships: s.own.Layout()}
	if s.role == Host {
		if err := s.transport.Send(mine); err != nil {
			return s.abort(err)
		}
	}

	m, err := s.next(ctx, "fleet", func(m comms.Message) bool {
		_, ok := m.(comms.Fleet)
		return ok
	})
	if err != nil {
		return s.abort(err)
	}
	if over, ok := m.(comms.GameOver); ok {
		return s.finishRemote(over)
	}
	theirs := m.(comms.Fleet)

	if err := fleet.ValidateLayout(theirs.Ships); err != nil {
		return s.abort(fmt.Errorf("%w: opponent fleet: %v", ErrProtocolViolation, err))
	}
	if want := s.cfg.Manifest; want != nil && !want.Equal(fleet.Of(theirs.Ships)) {
		err := fmt.Errorf("%w: opponent fleet %v does not match %v", ErrProtocolViolation, fleet.Of(theirs.Ships), want)
		if verr := s.violation(err); verr != nil {
			return s.abort(verr)
		}
	}

	if s.role == Guest {
		if err := s.transport.Send(mine); err != nil {
			return s.abort(err)
		}
	}

	s.mirror = board.NewMirror(fleet.Of(theirs.Ships).Cells())
	s.log.Info(fmt.Sprintf("fleets exchanged, opponent has %d ships", len(theirs.Ships)))
	if s.role == Host {
		s.setState(MyTurn)
	} else {
		s.setState(OpponentTurn)
	}
	return nil
}

// Attack fires at c and waits for the result. Cells off the board or
// already attacked are rejected with ErrInvalidTarget before anything is
// sent, and the turn stays with us.
func (s *Session) Attack(ctx context.Context, c board.Cell) error {
	switch s.state {
	case Finished:
		return ErrFinished
	case MyTurn:
	default:
		return ErrNotYourTurn
	}
	if !c.InBounds() {
		return fmt.Errorf("%w: %s", ErrOffBoard, c)
	}
	if s.mirror.IsAttacked(c) {
		return fmt.Errorf("%w: %s", ErrAlreadyAttacked, c)
	}

	if err := s.transport.Send(comms.Attack{Cell: c}); err != nil {
		return s.abort(err)
	}
	s.shots++
	s.emit(Event{Kind: ShotFired, Cell: c})

	m, err := s.next(ctx, "attack result", func(m comms.Message) bool {
		_, ok := m.(comms.Result)
		return ok
	})
	if err != nil {
		return s.abort(err)
	}
	if over, ok := m.(comms.GameOver); ok {
		return s.finishRemote(over)
	}
	res := m.(comms.Result)

	s.mirror.Record(c, res.Hit)
	if res.Hit {
		s.hits++
		s.log.Debug(fmt.Sprintf("hit at %s", c))
		s.emit(Event{Kind: Hit, Cell: c})
	} else {
		s.log.Debug(fmt.Sprintf("miss at %s", c))
		s.emit(Event{Kind: Miss, Cell: c})
	}
	if res.Hit && res.Sunk {
		s.emit(Event{Kind: ShipSunk, Cell: c, Cells: s.markSunk(c)})
	}

	if s.mirror.AllShipsSunk() {
		if err := s.transport.Send(comms.GameOver{Winner: comms.WinnerSelf}); err != nil {
			s.log.Warn("could not notify the peer of the game end", zap.Error(err))
		}
		s.finish(Won, nil)
		return nil
	}
	s.setState(OpponentTurn)
	return nil
}

// AwaitAttack waits for the opponent's attack and answers it.
func (s *Session) AwaitAttack(ctx context.Context) error {
	switch s.state {
	case Finished:
		return ErrFinished
	case OpponentTurn:
	default:
		return ErrNotOpponentTurn
	}

	m, err := s.next(ctx, "attack", func(m comms.Message) bool {
		_, ok := m.(comms.Attack)
		return ok
	})
	if err != nil {
		return s.abort(err)
	}
	if over, ok := m.(comms.GameOver); ok {
		return s.finishRemote(over)
	}
	c := m.(comms.Attack).Cell

	if !c.InBounds() {
		// A shot off the board is a miss that changes nothing.
		if err := s.violation(fmt.Errorf("%w: attack off the board at %s", ErrProtocolViolation, c)); err != nil {
			return s.abort(err)
		}
		return s.answer(comms.Result{})
	}
	if s.own.IsAttacked(c) {
		// Repeat the recorded answer without touching the board.
		if err := s.violation(fmt.Errorf("%w: repeated attack at %s", ErrProtocolViolation, c)); err != nil {
			return s.abort(err)
		}
		return s.answer(comms.Result{Hit: s.own.IsHit(c)})
	}

	hit := s.own.ReceiveAttack(c)
	res := comms.Result{Hit: hit}
	var sunk []board.Cell
	if hit {
		if id, ok := s.own.ShipAt(c); ok && s.own.IsSunk(id) {
			res.Sunk = true
			sunk = shipCells(s.own, id)
		}
	}

	s.emit(Event{Kind: ShotFired, Incoming: true, Cell: c})
	if hit {
		s.emit(Event{Kind: Hit, Incoming: true, Cell: c})
	} else {
		s.emit(Event{Kind: Miss, Incoming: true, Cell: c})
	}
	if res.Sunk {
		s.emit(Event{Kind: ShipSunk, Incoming: true, Cell: c, Cells: sunk})
	}
	return s.answer(res)
}

// answer replies to an attack and passes the turn, or ends the game when
// the own fleet is gone.
func (s *Session) answer(res comms.Result) error {
	if err := s.transport.Send(res); err != nil {
		return s.abort(err)
	}
	if s.own.AllShipsSunk() {
		if err := s.transport.Send(comms.GameOver{Winner: comms.WinnerEnemy}); err != nil {
			s.log.Warn("could not notify the peer of the game end", zap.Error(err))
		}
		s.finish(Lost, nil)
		return nil
	}
	s.setState(MyTurn)
	return nil
}

// Step advances the session by one phase: the fleet exchange, one own
// attack or one opponent attack.
func (s *Session) Step(ctx context.Context, src TargetSource) error {
	switch s.state {
	case AwaitingFleetExchange:
		return s.ExchangeFleets(ctx)
	case MyTurn:
		for i := 0; i < maxTargetPicks; i++ {
			c, err := src.Next(ctx, s.View())
			if err != nil {
				return s.abort(fmt.Errorf("picking a target: %w", err))
			}
			err = s.Attack(ctx, c)
			if errors.Is(err, ErrInvalidTarget) {
				s.log.Info(fmt.Sprintf("target rejected: %v", err))
				continue
			}
			return err
		}
		return s.abort(fmt.Errorf("%w: %d targets rejected in a row", ErrInvalidTarget, maxTargetPicks))
	case OpponentTurn:
		return s.AwaitAttack(ctx)
	default:
		return ErrFinished
	}
}

// Run plays the session to the end. Cancelling ctx closes the transport,
// which aborts the game.
func (s *Session) Run(ctx context.Context, src TargetSource) (Outcome, error) {
	stop := context.AfterFunc(ctx, func() {
		s.transport.Close()
	})
	defer stop()

	for s.state != Finished {
		if err := s.Step(ctx, src); err != nil && s.state != Finished {
			return s.outcome, err
		}
	}
	return s.outcome, s.reason
}

// next waits for a message accepted by want. A GameOver is always
// returned. Anything else is a violation: strict mode gives up, lenient
// mode skips it.
func (s *Session) next(ctx context.Context, what string, want func(comms.Message) bool) (comms.Message, error) {
	for ignored := 0; ignored < maxIgnored; ignored++ {
		m, err := s.receive(ctx)
		if errors.Is(err, comms.ErrMalformedMessage) {
			if verr := s.violation(fmt.Errorf("%w: %v", ErrProtocolViolation, err)); verr != nil {
				return nil, verr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if over, ok := m.(comms.GameOver); ok && !over.Winner.Valid() {
			if verr := s.violation(fmt.Errorf("%w: game over without a winner", ErrProtocolViolation)); verr != nil {
				return nil, verr
			}
			continue
		}
		if _, ok := m.(comms.GameOver); ok || want(m) {
			return m, nil
		}
		if verr := s.violation(fmt.Errorf("%w: got %T while waiting for %s in %s", ErrProtocolViolation, m, what, s.state)); verr != nil {
			return nil, verr
		}
	}
	return nil, fmt.Errorf("%w: %d unexpected messages while waiting for %s", ErrProtocolViolation, maxIgnored, what)
}

// receive waits for one message, retrying timeouts up to MaxTimeouts.
func (s *Session) receive(ctx context.Context) (comms.Message, error) {
	return Receive(ctx, s.transport, s.cfg, s.log)
}

// Receive waits for one message from t. Timeouts are retried until
// cfg.MaxTimeouts have passed in a row, then ErrPeerUnresponsive is returned.
func Receive(ctx context.Context, t Transport, cfg Config, log *zap.Logger) (comms.Message, error) {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	for timeouts := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := t.Receive(cfg.ReceiveTimeout)
		if err == nil {
			return m, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ctxErr, err)
		}
		if !errors.Is(err, comms.ErrTimeout) {
			return nil, err
		}
		timeouts++
		if timeouts >= cfg.MaxTimeouts {
			return nil, fmt.Errorf("%w: %d receive timeouts in a row", ErrPeerUnresponsive, timeouts)
		}
		log.Warn(fmt.Sprintf("peer silent for %s, waiting again (%d/%d)", cfg.ReceiveTimeout, timeouts, cfg.MaxTimeouts))
	}
}

// violation returns err in strict mode and logs it otherwise.
func (s *Session) violation(err error) error {
	if s.cfg.Strict {
		return err
	}
	s.log.Warn("ignoring protocol violation", zap.Error(err))
	return nil
}

// markSunk flags the hits connected to c as one sunk ship. Ships never
// touch, so the connected hits are exactly that ship.
func (s *Session) markSunk(c board.Cell) []board.Cell {
	seen := map[board.Cell]bool{c: true}
	queue := []board.Cell{c}
	var cells []board.Cell
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cells = append(cells, cur)
		s.mirror.MarkSunk(cur)
		for _, n := range orthogonal(cur) {
			if !seen[n] && s.mirror.IsHit(n) {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return cells
}

func (s *Session) finishRemote(over comms.GameOver) error {
	if over.SenderWon() {
		if !s.own.AllShipsSunk() {
			s.log.Warn("peer claims the win with ships still afloat")
		}
		s.finish(Lost, nil)
	} else {
		s.finish(Won, nil)
	}
	return nil
}

// abort ends the session on a transport or protocol failure.
func (s *Session) abort(err error) error {
	if s.state == Finished {
		return err
	}
	s.log.Error("game aborted", zap.Error(err))
	s.transport.Close()
	s.finish(Aborted, err)
	return err
}

func (s *Session) finish(o Outcome, reason error) {
	if s.state == Finished {
		return
	}
	s.state = Finished
	s.outcome = o
	s.reason = reason
	s.log.Info(fmt.Sprintf("game over: %s after %d shots, %d hits", o, s.shots, s.hits))

	rec := history.NewRecord(s.transport.ID(), s.role.String(), o.String(), s.shots, s.hits, s.started, time.Now())
	if reason != nil {
		rec.Reason = reason.Error()
	}
	if err := s.recorder.Record(rec); err != nil {
		s.log.Warn("could not record the game", zap.Error(err))
	}
	s.emit(Event{Kind: GameOver})
}

func (s *Session) setState(st State) {
	s.state = st
	s.log.Debug(fmt.Sprintf("turn: %s", st))
	s.emit(Event{Kind: TurnChanged})
}

func (s *Session) emit(e Event) {
	e.View = s.View()
	for _, h := range s.handlers {
		h(e)
	}
}

func shipCells(b *board.Board, id board.ShipID) []board.Cell {
	for _, ship := range b.Ships() {
		if ship.ID == id {
			return ship.Cells
		}
	}
	return nil
}
