package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidView      = errors.New("invalid view")
	ErrEmptyTarget      = errors.New("target name is empty")
	ErrEmptyParticipant = errors.New("participant name is empty")
)

// View is the screen a client session is currently on.
type View string

const (
	ViewLanding View = "landing"
	ViewLobby   View = "lobby"
	ViewResults View = "results"
)

func (v View) Valid() bool {
	switch v {
	case ViewLanding, ViewLobby, ViewResults:
		return true
	}
	return false
}

func ParseView(s string) (View, error) {
	v := View(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
	}
	return v, nil
}

func (v *View) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidView, err)
	}
	parsed, err := ParseView(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Participant is one member of a gift-exchange room.
type Participant struct {
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	Avatar string `json:"avatar"`
}

func (p Participant) Validate() error {
	if p.Name == "" {
		return ErrEmptyParticipant
	}
	return nil
}

// Target is the gift recipient assigned to a user. The zero value means no
// assignment exists yet and encodes as JSON null.
type Target struct {
	name string
}

func NotAssigned() Target {
	return Target{}
}

func AssignedTo(name string) (Target, error) {
	if name == "" {
		return Target{}, ErrEmptyTarget
	}
	return Target{name: name}, nil
}

func (t Target) Name() (string, bool) {
	return t.name, t.name != ""
}

func (t Target) IsAssigned() bool {
	return t.name != ""
}

func (t Target) String() string {
	if t.name == "" {
		return "<not assigned>"
	}
	return t.name
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(t.name)
}

func (t *Target) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = NotAssigned()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	assigned, err := AssignedTo(s)
	if err != nil {
		return err
	}
	*t = assigned
	return nil
}

// AppState is the full client-visible state of one user's session.
type AppState struct {
	CurrentView  View          `json:"currentView"`
	UserName     string        `json:"userName"`
	RoomCode     string        `json:"roomCode"`
	Participants []Participant `json:"participants"`
	MyTarget     Target        `json:"myTarget"`
}

func NewAppState(userName string) AppState {
	return AppState{
		CurrentView:  ViewLanding,
		UserName:     userName,
		Participants: []Participant{},
		MyTarget:     NotAssigned(),
	}
}

// Clone returns a copy that does not share the participants slice.
func (s AppState) Clone() AppState {
	out := s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	return out
}

func (s *AppState) UnmarshalJSON(b []byte) error {
	type plain AppState
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if !p.CurrentView.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidView, p.CurrentView)
	}
	for i, part := range p.Participants {
		if err := part.Validate(); err != nil {
			return fmt.Errorf("participant %d: %w", i, err)
		}
	}
	if p.Participants == nil {
		p.Participants = []Participant{}
	}
	*s = AppState(p)
	return nil
}

func (s AppState) MarshalJSON() ([]byte, error) {
	type plain AppState
	p := plain(s)
	if p.Participants == nil {
		p.Participants = []Participant{}
	}
	return json.Marshal(p)
}

// Action is how a connecting client enters a room.
type Action string

const (
	ActionCreate Action = "create"
	ActionJoin   Action = "join"
)

func ParseAction(s string) Action {
	if Action(s) == ActionCreate {
		return ActionCreate
	}
	return ActionJoin
}

type Client struct {
	ID       string
	Name     string
	Avatar   string
	RoomCode string
	Action   Action
	Send     chan ServerMessage
}

type Room struct {
	Code        string
	Members     []*Client
	Host        *Client
	Started     bool
	Assignments map[string]string
}

// Participants lists the room's members in join order.
func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.Members))
	for _, c := range r.Members {
		out = append(out, Participant{
			Name:   c.Name,
			IsHost: c == r.Host,
			Avatar: c.Avatar,
		})
	}
	return out
}

func (r *Room) Member(name string) *Client {
	for _, c := range r.Members {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type RoomCodeResponse struct {
	Code string `json:"code"`
}
