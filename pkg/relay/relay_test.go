package relay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/relay"
)

var (
	hostShip  = []board.Cell{{X: 0, Y: 0}, {X: 0, Y: 1}}
	guestShip = []board.Cell{{X: 5, Y: 5}, {X: 6, Y: 5}}
)

func testConfig() game.Config {
	return game.Config{
		ReceiveTimeout: time.Second,
		MaxTimeouts:    5,
		Strict:         true,
		Manifest:       fleet.Manifest{2},
	}
}

func newBoard(t *testing.T, cells []board.Cell) *board.Board {
	t.Helper()
	b := board.New()
	if _, err := b.PlaceShip(cells); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func startRelay(t *testing.T, maxMatches int) (string, *relay.Server) {
	t.Helper()
	l, err := comms.Listen("127.0.0.1:0", comms.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := relay.NewServer(l, testConfig(), nil)
	s.MaxMatches = maxMatches
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		l.Close()
	})
	return l.Addr().String(), s
}

// join connects to the relay and waits for the greeting.
func join(t *testing.T, ctx context.Context, addr string) (*comms.Session, game.Role, string) {
	t.Helper()
	conn, err := comms.Dial(ctx, addr, comms.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	role, match, err := game.AwaitHello(ctx, conn, testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return conn, role, match
}

func targets(cells ...board.Cell) game.TargetSource {
	return game.TargetFunc(func(ctx context.Context, v game.View) (board.Cell, error) {
		c := cells[0]
		cells = cells[1:]
		return c, nil
	})
}

func TestIsValidMatchID(t *testing.T) {
	if !relay.IsValidMatchID(relay.NewMatchID()) {
		t.Errorf("expected a generated id to be valid")
	}
	if relay.IsValidMatchID("lobby-1") {
		t.Errorf("expected lobby-1 to be invalid")
	}
}

func TestRelay_Match(t *testing.T) {
	addr, server := startRelay(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConn, hostRole, hostMatch := join(t, ctx, addr)
	guestConn, guestRole, guestMatch := join(t, ctx, addr)
	if hostRole != game.Host || guestRole != game.Guest {
		t.Fatalf("unexpected roles: first %s, second %s", hostRole, guestRole)
	}
	if hostMatch != guestMatch || !relay.IsValidMatchID(hostMatch) {
		t.Fatalf("players were not paired: %q and %q", hostMatch, guestMatch)
	}

	host := game.NewSession(hostConn, game.Host, newBoard(t, hostShip), testConfig())
	guest := game.NewSession(guestConn, game.Guest, newBoard(t, guestShip), testConfig())

	guestDone := make(chan game.Outcome, 1)
	go func() {
		o, _ := guest.Run(ctx, targets(board.Cell{X: 0, Y: 0}))
		guestDone <- o
	}()

	outcome, err := host.Run(ctx, targets(board.Cell{X: 5, Y: 5}, board.Cell{X: 6, Y: 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := game.Won, outcome; want != have {
		t.Errorf("unexpected host outcome. want %s, have %s", want, have)
	}
	if want, have := game.Lost, <-guestDone; want != have {
		t.Errorf("unexpected guest outcome. want %s, have %s", want, have)
	}

	deadline := time.Now().Add(5 * time.Second)
	for server.Matches().Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := server.Matches().Len(); n != 0 {
		t.Errorf("expected finished match removed, %d still stored", n)
	}
}

func TestRelay_AuthoritativeResult(t *testing.T) {
	addr, _ := startRelay(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConn, _, _ := join(t, ctx, addr)
	liar, _, _ := join(t, ctx, addr)

	host := game.NewSession(hostConn, game.Host, newBoard(t, hostShip), testConfig())

	// The guest claims every shot misses.
	go func() {
		if _, err := liar.Receive(5 * time.Second); err != nil {
			return
		}
		liar.Send(comms.Fleet{Ships: [][]board.Cell{guestShip}})
		if _, err := liar.Receive(5 * time.Second); err != nil {
			return
		}
		liar.Send(comms.Result{Hit: false})
	}()

	if err := host.ExchangeFleets(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := host.Attack(ctx, board.Cell{X: 5, Y: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !host.Opponent().IsHit(board.Cell{X: 5, Y: 5}) {
		t.Errorf("expected the relay to report the hit the guest denied")
	}
	if want, have := game.OpponentTurn, host.State(); want != have {
		t.Errorf("unexpected state. want %s, have %s", want, have)
	}
}

func TestRelay_PlayerLeaves(t *testing.T) {
	addr, _ := startRelay(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConn, _, _ := join(t, ctx, addr)
	guestConn, _, _ := join(t, ctx, addr)
	guestConn.Close()

	host := game.NewSession(hostConn, game.Host, newBoard(t, hostShip), testConfig())
	outcome, err := host.Run(ctx, targets(board.Cell{X: 5, Y: 5}))
	if want, have := game.Aborted, outcome; want != have {
		t.Errorf("unexpected outcome. want %s, have %s", want, have)
	}
	if err == nil {
		t.Errorf("expected an error when the other player leaves")
	}
}

func TestRelay_MaxMatches(t *testing.T) {
	addr, _ := startRelay(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host, _, _ := join(t, ctx, addr)
	guest, _, _ := join(t, ctx, addr)

	waiting, err := comms.Dial(ctx, addr, comms.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer waiting.Close()

	impatient := testConfig()
	impatient.ReceiveTimeout = 50 * time.Millisecond
	impatient.MaxTimeouts = 2
	if _, _, err := game.AwaitHello(ctx, waiting, impatient, nil); !errors.Is(err, game.ErrPeerUnresponsive) {
		t.Fatalf("expected no greeting while the relay is full, have %v", err)
	}

	// Ending the running match frees the slot.
	host.Close()
	guest.Close()
	role, _, err := game.AwaitHello(ctx, waiting, testConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := game.Host, role; want != have {
		t.Errorf("unexpected role. want %s, have %s", want, have)
	}
}
