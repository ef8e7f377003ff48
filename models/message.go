package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType tags a ServerMessage.
type MessageType string

const (
	TypeJoin               MessageType = "JOIN"
	TypeParticipantsUpdate MessageType = "PARTICIPANTS_UPDATE"
	TypeMatchResult        MessageType = "MATCH_RESULT"
	TypeError              MessageType = "ERROR"
)

func (t MessageType) Known() bool {
	switch t {
	case TypeJoin, TypeParticipantsUpdate, TypeMatchResult, TypeError:
		return true
	}
	return false
}

// Client to server message types.
const (
	ClientStartGame = "START_GAME"
)

var ErrMalformedMessage = errors.New("malformed message")

// DecodeError reports a server message that could not be decoded.
type DecodeError struct {
	Type MessageType
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode server message: %v", e.Err)
	}
	return fmt.Sprintf("decode %s payload: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrMalformedMessage }

// Payload is the variant body of a ServerMessage.
type Payload interface {
	Type() MessageType
}

type JoinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
}

func (JoinPayload) Type() MessageType { return TypeJoin }

// ParticipantsPayload is the room roster; on the wire it is a bare array.
type ParticipantsPayload struct {
	Participants []Participant
}

func (ParticipantsPayload) Type() MessageType { return TypeParticipantsUpdate }

func (p ParticipantsPayload) MarshalJSON() ([]byte, error) {
	if p.Participants == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Participants)
}

func (p *ParticipantsPayload) UnmarshalJSON(b []byte) error {
	var list []Participant
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	for i, part := range list {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("participant %d: %w", i, err)
		}
	}
	if list == nil {
		list = []Participant{}
	}
	p.Participants = list
	return nil
}

// MatchResultPayload accepts either {"target":"name"} or a bare "name".
type MatchResultPayload struct {
	Target string `json:"target"`
}

func (MatchResultPayload) Type() MessageType { return TypeMatchResult }

func (p *MatchResultPayload) UnmarshalJSON(b []byte) error {
	var target string
	if isJSONString(b) {
		if err := json.Unmarshal(b, &target); err != nil {
			return err
		}
	} else {
		var obj struct {
			Target string `json:"target"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		target = obj.Target
	}
	if target == "" {
		return ErrEmptyTarget
	}
	p.Target = target
	return nil
}

// ErrorPayload accepts either {"message":"..."} or a bare "...".
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (ErrorPayload) Type() MessageType { return TypeError }

func (p *ErrorPayload) UnmarshalJSON(b []byte) error {
	if isJSONString(b) {
		var msg string
		if err := json.Unmarshal(b, &msg); err != nil {
			return err
		}
		*p = ErrorPayload{Message: msg}
		return nil
	}
	type plain ErrorPayload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = ErrorPayload(v)
	return nil
}

// UnknownPayload keeps a message whose tag this build does not understand.
type UnknownPayload struct {
	Tag MessageType
	Raw json.RawMessage
}

func (p UnknownPayload) Type() MessageType { return p.Tag }

// ServerMessage is one inbound event from the matching backend.
type ServerMessage struct {
	Type    MessageType
	Payload Payload
}

func NewServerMessage(p Payload) ServerMessage {
	return ServerMessage{Type: p.Type(), Payload: p}
}

func ErrorMessage(code, message string) ServerMessage {
	return NewServerMessage(ErrorPayload{Code: code, Message: message})
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	env := envelope{Type: m.Type}
	switch p := m.Payload.(type) {
	case nil:
		env.Payload = json.RawMessage("null")
	case UnknownPayload:
		env.Payload = p.Raw
		if len(env.Payload) == 0 {
			env.Payload = json.RawMessage("null")
		}
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func (m *ServerMessage) UnmarshalJSON(b []byte) error {
	decoded, err := DecodeServerMessage(b)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// DecodeServerMessage parses one wire frame. Unknown tags decode to
// UnknownPayload; a missing tag or a payload that does not fit its tag is a
// *DecodeError.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ServerMessage{}, &DecodeError{Err: err}
	}
	if env.Type == "" {
		return ServerMessage{}, &DecodeError{Err: errors.New("missing type")}
	}

	var (
		payload Payload
		err     error
	)
	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		err = unmarshalPayload(env.Payload, &p)
		if err == nil && (p.RoomCode == "" || p.Name == "") {
			err = errors.New("roomCode and name are required")
		}
		payload = p
	case TypeParticipantsUpdate:
		var p ParticipantsPayload
		err = unmarshalPayload(env.Payload, &p)
		payload = p
	case TypeMatchResult:
		var p MatchResultPayload
		err = unmarshalPayload(env.Payload, &p)
		payload = p
	case TypeError:
		payload = decodeErrorPayload(env.Payload)
	default:
		raw := make(json.RawMessage, len(env.Payload))
		copy(raw, env.Payload)
		payload = UnknownPayload{Tag: env.Type, Raw: raw}
	}
	if err != nil {
		return ServerMessage{}, &DecodeError{Type: env.Type, Err: err}
	}
	return ServerMessage{Type: env.Type, Payload: payload}, nil
}

// decodeErrorPayload never fails: an ERROR has to reach the user whatever its
// payload looks like.
func decodeErrorPayload(raw json.RawMessage) ErrorPayload {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrorPayload{}
	}
	var p ErrorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ErrorPayload{Message: string(raw)}
	}
	return p
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}

func isJSONString(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '"'
}

// ClientMessage is the envelope sent from a participant to the server.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
