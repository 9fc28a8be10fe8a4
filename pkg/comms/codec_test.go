package comms_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/JJ-Intelligence/SR-Battleships/pkg/comms"
)

func TestEncodeDecode(t *testing.T) {
	tests := map[string]comms.Message{
		"fleet": comms.Fleet{Ships: [][]board.Cell{
			{{X: 0, Y: 0}, {X: 0, Y: 1}},
			{{X: 5, Y: 5}},
		}},
		"attack":   comms.Attack{Cell: board.Cell{X: 3, Y: 7}},
		"miss":     comms.Result{},
		"hit":      comms.Result{Hit: true},
		"sunk":     comms.Result{Hit: true, Sunk: true},
		"won":      comms.GameOver{Winner: comms.WinnerSelf},
		"lost":     comms.GameOver{Winner: comms.WinnerEnemy},
		"greeting": comms.Hello{Session: "abc", Role: "guest"},
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := comms.Encode(want)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			have, err := comms.Decode(data)
			if err != nil {
				t.Fatalf("unexpected error decoding %s: %v", data, err)
			}
			if !reflect.DeepEqual(want, have) {
				t.Errorf("unexpected message. want %#v, have %#v", want, have)
			}
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	tests := []struct {
		msg  comms.Message
		want string
	}{
		{comms.Attack{Cell: board.Cell{X: 1, Y: 2}}, `{"action":"attack","cell":[1,2]}`},
		{comms.Result{Hit: false}, `{"hit":false}`},
		{comms.Result{Hit: true, Sunk: true}, `{"hit":true,"sunk":true}`},
		{comms.GameOver{Winner: comms.WinnerSelf}, `{"action":"game_over","winner":"self"}`},
		{comms.Fleet{}, `{"ships":[]}`},
	}
	for _, tc := range tests {
		have, err := comms.Encode(tc.msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal([]byte(tc.want), have) {
			t.Errorf("unexpected wire format. want %s, have %s", tc.want, have)
		}
	}
}

func TestDecode_BooleanWinner(t *testing.T) {
	tests := map[string]comms.Winner{
		`{"action":"game_over","winner":true}`:  comms.WinnerSelf,
		`{"action":"game_over","winner":false}`: comms.WinnerEnemy,
	}
	for data, want := range tests {
		m, err := comms.Decode([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		g, ok := m.(comms.GameOver)
		if !ok {
			t.Fatalf("expected GameOver, got %T", m)
		}
		if want != g.Winner {
			t.Errorf("unexpected winner for %s. want %s, have %s", data, want, g.Winner)
		}
	}
}

func TestDecode_ResultWithoutSunk(t *testing.T) {
	m, err := comms.Decode([]byte(`{"hit": true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := (comms.Result{Hit: true}), m; want != have {
		t.Errorf("unexpected message. want %#v, have %#v", want, have)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `{"hit"`,
		"not a record":     `[1, 2]`,
		"null":             `null`,
		"unknown":          `{"action":"surrender"}`,
		"empty":            `{}`,
		"attack no cell":   `{"action":"attack"}`,
		"attack bad cell":  `{"action":"attack","cell":[1]}`,
		"fractional cell":  `{"action":"attack","cell":[1.5, 2]}`,
		"text cell":        `{"action":"attack","cell":"b2"}`,
		"bad winner":       `{"action":"game_over","winner":"nobody"}`,
		"no winner":        `{"action":"game_over"}`,
		"hit not a bool":   `{"hit":"yes"}`,
		"ships not a list": `{"ships":3}`,
		"null cell":        `{"action":"attack","cell":null}`,
		"null winner":      `{"action":"game_over","winner":null}`,
		"null hit":         `{"hit":null}`,
		"null ships":       `{"ships":null}`,
		"null session":     `{"action":"hello","session":null,"role":"host"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := comms.Decode([]byte(data))
			if !errors.Is(err, comms.ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := comms.WriteFrame(&buf, []byte(`{"hit":true}`), 64); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := 4+12, buf.Len(); want != have {
		t.Fatalf("unexpected frame length. want %d, have %d", want, have)
	}
	if want, have := []byte{0, 0, 0, 12}, buf.Bytes()[:4]; !bytes.Equal(want, have) {
		t.Errorf("unexpected header. want %v, have %v", want, have)
	}

	payload, err := comms.ReadFrame(&buf, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, have := `{"hit":true}`, string(payload); want != have {
		t.Errorf("unexpected payload. want %s, have %s", want, have)
	}

	if err := comms.WriteFrame(&buf, make([]byte, 65), 64); !errors.Is(err, comms.ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge writing, got %v", err)
	}
	buf.Reset()
	buf.Write([]byte{0, 1, 0, 0})
	if _, err := comms.ReadFrame(&buf, 64); !errors.Is(err, comms.ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge reading, got %v", err)
	}
}

func TestFrame_ShortRead(t *testing.T) {
	tests := map[string][]byte{
		"empty":          {},
		"partial header": {0, 0},
		"partial body":   {0, 0, 0, 5, 'a', 'b'},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := comms.ReadFrame(bytes.NewReader(data), 64)
			if !errors.Is(err, comms.ErrDisconnected) {
				t.Errorf("expected ErrDisconnected, got %v", err)
			}
		})
	}
}
