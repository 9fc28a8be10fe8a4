package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/fleet"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/game"
)

// terminal reads placements and targets as "x y" lines and prints what
// happens in the game.
type terminal struct {
	in  *bufio.Scanner
	out io.Writer

	// lines is fed by a single reader goroutine so a prompt can be
	// abandoned when the game is cancelled.
	lines chan string
	// readErr is set before lines is closed.
	readErr error
	once    sync.Once
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{
		in:    bufio.NewScanner(in),
		out:   out,
		lines: make(chan string),
	}
}

func (t *terminal) readLoop() {
	defer close(t.lines)
	for t.in.Scan() {
		t.lines <- t.in.Text()
	}
	t.readErr = t.in.Err()
	if t.readErr == nil {
		t.readErr = io.ErrUnexpectedEOF
	}
}

// line prompts for one line of input, or gives up when ctx is done.
func (t *terminal) line(ctx context.Context, prompt string) (string, error) {
	t.once.Do(func() { go t.readLoop() })
	fmt.Fprint(t.out, prompt)
	select {
	case s, ok := <-t.lines:
		if !ok {
			return "", t.readErr
		}
		return strings.TrimSpace(s), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func parseCell(s string) (board.Cell, error) {
	var c board.Cell
	if _, err := fmt.Sscanf(s, "%d %d", &c.X, &c.Y); err != nil {
		return c, fmt.Errorf("expected two numbers, e.g. \"3 7\"")
	}
	if !c.InBounds() {
		return c, fmt.Errorf("%s is off the board", c)
	}
	return c, nil
}

// placeFleet lets the player place m by hand.
func (t *terminal) placeFleet(ctx context.Context, m fleet.Manifest) (*board.Board, error) {
	p, err := fleet.NewPlacer(m)
	if err != nil {
		return nil, err
	}
	for !p.Done() {
		length, _ := p.Next()
		fmt.Fprint(t.out, board.Render(p.Board()))
		s, err := t.line(ctx, fmt.Sprintf("Ship of %d, %s. Enter x y, r to rotate or u to undo: ", length, p.Orientation()))
		if err != nil {
			return nil, err
		}

		switch s {
		case "r":
			p.Rotate()
			continue
		case "u":
			if err := p.Undo(); err != nil {
				fmt.Fprintln(t.out, err)
			}
			continue
		}

		c, err := parseCell(s)
		if err != nil {
			fmt.Fprintln(t.out, err)
			continue
		}
		if !p.Fits(c) {
			fmt.Fprintf(t.out, "A ship of %d does not fit at %s\n", length, c)
			continue
		}
		if err := p.Place(c); err != nil {
			fmt.Fprintln(t.out, err)
		}
	}
	return p.Board(), nil
}

// Next asks the player for a target until a fresh cell is given.
func (t *terminal) Next(ctx context.Context, v game.View) (board.Cell, error) {
	fmt.Fprint(t.out, board.Render(v.Opponent))
	for {
		s, err := t.line(ctx, "Target (x y): ")
		if err != nil {
			return board.Cell{}, err
		}
		c, err := parseCell(s)
		if err != nil {
			fmt.Fprintln(t.out, err)
			continue
		}
		if v.Opponent.IsAttacked(c) {
			fmt.Fprintf(t.out, "Already fired at %s\n", c)
			continue
		}
		return c, nil
	}
}

func (t *terminal) printEvent(e game.Event) {
	who := "You"
	if e.Incoming {
		who = "Opponent"
	}
	switch e.Kind {
	case game.TurnChanged:
		if e.View.State == game.OpponentTurn {
			fmt.Fprintln(t.out, "Waiting for the opponent...")
		}
	case game.ShotFired:
		if !e.Incoming {
			fmt.Fprintf(t.out, "Firing at %s\n", e.Cell)
		}
	case game.Hit:
		fmt.Fprintf(t.out, "%s hit %s\n", who, e.Cell)
	case game.Miss:
		fmt.Fprintf(t.out, "%s missed at %s\n", who, e.Cell)
	case game.ShipSunk:
		fmt.Fprintf(t.out, "%s sank a ship of %d\n", who, len(e.Cells))
		if e.Incoming {
			fmt.Fprint(t.out, board.Render(e.View.Own))
		}
	case game.GameOver:
		fmt.Fprint(t.out, board.Render(e.View.Own))
	}
}
