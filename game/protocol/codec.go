package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownEvent  = errors.New("unknown event type")
	ErrMalformed     = errors.New("malformed message")
)

// Message is a decoded inbound event. It is implemented only by the types in
// this package.
type Message interface {
	isMessage()
}

// PlayerListUpdate is a full roster snapshot
type PlayerListUpdate struct {
	Players []Player
}

func (PlayerListUpdate) isMessage() {}

// Optional marks whether a field was present in a partial payload.
// An explicit JSON null is Set with a zero Value.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// GameStateUpdate is an authoritative phase change plus the phase fields that
// accompanied it
type GameStateUpdate struct {
	State       Phase
	ModeratorID Optional[string]
	Letter      Optional[string]
	Category    Optional[string]
	Answers     Optional[[]Answer]
	TimeLimit   Optional[int]
}

func (GameStateUpdate) isMessage() {}

// UnmarshalJSON decodes a partial game state payload, remembering which keys
// were sent. Unknown keys are ignored.
func (u *GameStateUpdate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var state string
	if err := json.Unmarshal(raw["state"], &state); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if !Phase(state).Valid() {
		return fmt.Errorf("unknown state %q", state)
	}

	out := GameStateUpdate{State: Phase(state)}
	if err := decodeOptional(raw, "moderator_id", &out.ModeratorID); err != nil {
		return err
	}
	if err := decodeOptional(raw, "letter", &out.Letter); err != nil {
		return err
	}
	if err := decodeOptional(raw, "category", &out.Category); err != nil {
		return err
	}
	if err := decodeOptional(raw, "answers", &out.Answers); err != nil {
		return err
	}
	if err := decodeOptional(raw, "time_limit", &out.TimeLimit); err != nil {
		return err
	}

	*u = out
	return nil
}

// MarshalJSON emits only the fields that are Set; unset optionals are
// omitted and Set zero strings are sent as null.
func (u GameStateUpdate) MarshalJSON() ([]byte, error) {
	out := map[string]any{"state": u.State}
	if u.ModeratorID.Set {
		out["moderator_id"] = nullIfEmpty(u.ModeratorID.Value)
	}
	if u.Letter.Set {
		out["letter"] = nullIfEmpty(u.Letter.Value)
	}
	if u.Category.Set {
		out["category"] = nullIfEmpty(u.Category.Value)
	}
	if u.Answers.Set {
		answers := u.Answers.Value
		if answers == nil {
			answers = []Answer{}
		}
		out["answers"] = answers
	}
	if u.TimeLimit.Set {
		out["time_limit"] = u.TimeLimit.Value
	}
	return json.Marshal(out)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decodeOptional[T any](raw map[string]json.RawMessage, key string, dst *Optional[T]) error {
	value, ok := raw[key]
	if !ok {
		return nil
	}
	dst.Set = true
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(value, &dst.Value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

type outboundEnvelope struct {
	Action  Action `json:"action"`
	Payload any    `json:"payload"`
}

type inboundEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes an intent. A nil payload is sent as an empty object.
func Encode(action Action, payload any) ([]byte, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(outboundEnvelope{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", action, err)
	}
	return data, nil
}

// Decode parses one inbound frame into a typed message
func Decode(data []byte) (Message, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case EventPlayerListUpdate:
		var players []Player
		if err := json.Unmarshal(env.Payload, &players); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		return PlayerListUpdate{Players: players}, nil

	case EventGameStateUpdate:
		var update GameStateUpdate
		if err := json.Unmarshal(env.Payload, &update); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
		}
		return update, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// Intent is an outbound envelope as seen by the server
type Intent struct {
	Action  Action
	Payload json.RawMessage
}

// DecodeIntent parses a client frame. Missing payloads decode as "{}".
func DecodeIntent(data []byte) (Intent, error) {
	var env struct {
		Action  Action          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !env.Action.Valid() {
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		env.Payload = json.RawMessage("{}")
	}
	return Intent{Action: env.Action, Payload: env.Payload}, nil
}

// EncodeEvent serializes a server event envelope
func EncodeEvent(eventType EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return json.Marshal(inboundEnvelope{Type: eventType, Payload: raw})
}
