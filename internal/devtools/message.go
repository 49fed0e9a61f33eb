package devtools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/IniZio/reim/internal/value"
)

// Frame and command types.
const (
	TypeInit     = "INIT"
	TypeAction   = "ACTION"
	TypeDispatch = "DISPATCH"

	JumpToState  = "JUMP_TO_STATE"
	JumpToAction = "JUMP_TO_ACTION"
)

// Payload carries the command of a DISPATCH message.
type Payload struct {
	Type string `json:"type"`

	// ActionID is the commit sequence a JUMP_TO_ACTION targets.
	ActionID int64 `json:"actionId,omitempty"`
}

// Message is a frame exchanged with the debugger.
//
// Outbound frames are INIT and ACTION. Inbound commands are DISPATCH with
// a JUMP_TO_STATE or JUMP_TO_ACTION payload; their state may arrive as a
// JSON value or as a JSON string holding serialized JSON.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Action  string          `json:"action,omitempty"`
	Payload *Payload        `json:"payload,omitempty"`
	State   json.RawMessage `json:"state,omitempty"`
}

// NewFrame builds an outbound frame with state encoded canonically.
func NewFrame(typ, id, action string, state value.Value) (Message, error) {
	data, err := value.MarshalCanonical(state)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s frame: %w", typ, err)
	}
	return Message{Type: typ, ID: id, Action: action, State: data}, nil
}

// JumpCommand builds an inbound jump command.
func JumpCommand(id, kind string, state value.Value) (Message, error) {
	data, err := value.MarshalCanonical(state)
	if err != nil {
		return Message{}, fmt.Errorf("encode jump state: %w", err)
	}
	return Message{Type: TypeDispatch, ID: id, Payload: &Payload{Type: kind}, State: data}, nil
}

// IsJump reports whether m asks the store to jump to a recorded state.
func (m Message) IsJump() bool {
	if m.Type != TypeDispatch || m.Payload == nil {
		return false
	}
	return m.Payload.Type == JumpToState || m.Payload.Type == JumpToAction
}

// Jump decodes the target state of a jump command.
//
// ok is false when m is not a jump. A jump without state yields a nil
// state and no error; the caller may resolve Payload.ActionID instead.
func (m Message) Jump() (state value.Value, ok bool, err error) {
	if !m.IsJump() {
		return nil, false, nil
	}

	raw := bytes.TrimSpace(m.State)
	if len(raw) == 0 {
		return nil, true, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, true, fmt.Errorf("decode jump state: %w", err)
		}
		raw = []byte(text)
	}

	state, err = value.Unmarshal(raw)
	if err != nil {
		return nil, true, fmt.Errorf("decode jump state: %w", err)
	}
	return state, true, nil
}

// DecodeState decodes the state of an outbound frame.
func (m Message) DecodeState() (value.Value, error) {
	if len(bytes.TrimSpace(m.State)) == 0 {
		return nil, nil
	}
	return value.Unmarshal(m.State)
}
