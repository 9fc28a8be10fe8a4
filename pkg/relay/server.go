package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
	"go.uber.org/zap"
)

// Server pairs players as they connect and relays a match for each pair.
type Server struct {
	Log *zap.Logger

	// MaxMatches bounds the matches relayed at once. Players wait in the
	// listener backlog while the relay is full. Zero means no limit.
	MaxMatches int

	listener comms.Listener
	cfg      game.Config
	matches  MatchStore
	wg       sync.WaitGroup
}

// NewServer constructs a new Server on l.
func NewServer(l comms.Listener, cfg game.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Log:      log,
		listener: l,
		cfg:      cfg.WithDefaults(),
	}
}

// Matches returns the running matches.
func (s *Server) Matches() *MatchStore {
	return &s.matches
}

// Serve accepts players until ctx is done or the listener fails. The
// first player of a pair hosts. Serve waits for running matches before
// returning.
func (s *Server) Serve(ctx context.Context) error {
	defer s.wg.Wait()

	var slots chan struct{}
	if s.MaxMatches > 0 {
		slots = make(chan struct{}, s.MaxMatches)
	}
	release := func() {
		if slots != nil {
			<-slots
		}
	}

	for {
		if slots != nil {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return s.stopped(ctx, ctx.Err())
			}
		}

		id := NewMatchID()
		host, err := s.greet(ctx, id, game.Host)
		if err != nil {
			release()
			return s.stopped(ctx, err)
		}
		guest, err := s.greet(ctx, id, game.Guest)
		if err != nil {
			host.Close()
			release()
			return s.stopped(ctx, err)
		}

		m := NewMatch(id, host, guest, s.cfg, s.Log)
		s.matches.Put(id, m)
		s.Log.Info(fmt.Sprintf("starting match %s between %s and %s", id, host.RemoteAddr(), guest.RemoteAddr()),
			zap.Int("running", s.matches.Len()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer release()
			defer s.matches.Delete(m.MatchID)
			m.Run(ctx)
		}()
	}
}

// greet accepts the next player and tells it its role.
func (s *Server) greet(ctx context.Context, id string, r game.Role) (*comms.Session, error) {
	for {
		p, err := s.listener.Accept(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.Send(comms.Hello{Session: id, Role: r.String()}); err != nil {
			// Gone before the game started; wait for someone else.
			s.Log.Warn("greeting failed", zap.Error(err))
			p.Close()
			continue
		}
		s.Log.Info(fmt.Sprintf("%s joined match %s as %s", p.RemoteAddr(), id, r))
		return p, nil
	}
}

func (s *Server) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.Log.Info("relay stopped")
		return nil
	}
	return err
}
