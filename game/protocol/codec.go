package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed event")
)

// Envelope is the frame every event travels in
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses a client frame into one of the Inbound events
func DecodeInbound(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Event {
	case KindJoin:
		return decodeJoin(env.Data)
	case KindMove:
		var mv Move
		if err := decodeData(env.Data, &mv); err != nil {
			return nil, err
		}
		return mv, nil
	case KindGameOver:
		var ev GameOver
		if len(env.Data) > 0 {
			if err := decodeData(env.Data, &ev); err != nil {
				return nil, err
			}
		}
		return ev, nil
	case KindReset:
		return Reset{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// decodeJoin accepts either a bare name string or {"name": "..."}
func decodeJoin(data json.RawMessage) (Inbound, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return Join{Name: name}, nil
	}
	var ev Join
	if err := decodeData(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Encode wraps an outbound event in its envelope. Events without a payload are
// sent with no data field.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	env := Envelope{Event: ev.Kind()}
	if !bytes.Equal(data, []byte("{}")) {
		env.Data = data
	}
	return json.Marshal(env)
}
