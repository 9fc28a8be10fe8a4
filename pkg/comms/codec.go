package comms

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/JJ-Intelligence/SR-Battleships/pkg/board"
	"github.com/mitchellh/mapstructure"
)

const (
	actionAttack   = "attack"
	actionGameOver = "game_over"
	actionHello    = "hello"
)

// Encode serializes a message to its JSON record.
func Encode(m Message) ([]byte, error) {
	var data map[string]interface{}
	switch m := m.(type) {
	case Fleet:
		ships := m.Ships
		if ships == nil {
			ships = [][]board.Cell{}
		}
		data = map[string]interface{}{"ships": ships}
	case Attack:
		data = map[string]interface{}{"action": actionAttack, "cell": m.Cell}
	case Result:
		data = map[string]interface{}{"hit": m.Hit}
		if m.Sunk {
			data["sunk"] = true
		}
	case GameOver:
		if !m.Winner.Valid() {
			return nil, fmt.Errorf("%w: winner %q", ErrMalformedMessage, m.Winner)
		}
		data = map[string]interface{}{"action": actionGameOver, "winner": m.Winner}
	case Hello:
		data = map[string]interface{}{"action": actionHello, "session": m.Session, "role": m.Role}
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrMalformedMessage, m)
	}
	return json.Marshal(data)
}

// Decode parses a JSON record into one of the known messages.
//
// The record is classified by its keys: "ships" is a Fleet, an "action"
// of attack, game_over or hello selects those messages, and a bare "hit"
// is a Result. Unknown extra keys are ignored.
func Decode(data []byte) (Message, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a record", ErrMalformedMessage)
	}

	action, _ := raw["action"].(string)
	switch {
	case has(raw, "ships"):
		var m Fleet
		if err := decodeInto(raw, &m, "ships"); err != nil {
			return nil, err
		}
		return m, nil
	case action == actionAttack:
		var m Attack
		if err := decodeInto(raw, &m, "cell"); err != nil {
			return nil, err
		}
		return m, nil
	case action == actionGameOver:
		var m GameOver
		if err := decodeInto(raw, &m, "winner"); err != nil {
			return nil, err
		}
		return m, nil
	case action == actionHello:
		var m Hello
		if err := decodeInto(raw, &m, "session", "role"); err != nil {
			return nil, err
		}
		return m, nil
	case has(raw, "hit"):
		var m Result
		if err := decodeInto(raw, &m, "hit"); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown record %s", ErrMalformedMessage, data)
	}
}

func has(raw map[string]interface{}, key string) bool {
	_, ok := raw[key]
	return ok
}

// decodeInto fills out from raw once every required key is present.
func decodeInto(raw map[string]interface{}, out interface{}, required ...string) error {
	for _, key := range required {
		// A null value leaves the field unset, so it counts as missing.
		if v, ok := raw[key]; !ok || v == nil {
			return fmt.Errorf("%w: missing %q", ErrMalformedMessage, key)
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(cellHook),
			mapstructure.DecodeHookFuncType(winnerHook),
		),
		Result: out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

var (
	cellType   = reflect.TypeOf(board.Cell{})
	winnerType = reflect.TypeOf(Winner(""))
)

// cellHook turns a decoded [x, y] array into a board.Cell.
func cellHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != cellType {
		return data, nil
	}
	pair, ok := data.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("cell must be [x, y], got %v", data)
	}
	x, okX := integer(pair[0])
	y, okY := integer(pair[1])
	if !okX || !okY {
		return nil, fmt.Errorf("cell coordinates must be integers, got %v", data)
	}
	return board.Cell{X: x, Y: y}, nil
}

// winnerHook accepts the boolean form of the winner field as well.
func winnerHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != winnerType {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		if v {
			return WinnerSelf, nil
		}
		return WinnerEnemy, nil
	case string:
		if w := Winner(v); w.Valid() {
			return w, nil
		}
	}
	return nil, fmt.Errorf("winner must be a bool, %q or %q, got %v", WinnerSelf, WinnerEnemy, data)
}

func integer(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
