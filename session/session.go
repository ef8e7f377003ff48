package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"secretsanta/models"
)

var (
	ErrIllegalTransition = errors.New("illegal view transition")
	ErrAlreadyAssigned   = errors.New("target already assigned")
)

// TransitionError is returned when a message arrives in a view that cannot
// accept it.
type TransitionError struct {
	From models.View
	Type models.MessageType
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s in view %s: %v", e.Type, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }

func illegal(cur models.AppState, msg models.ServerMessage, err error) (models.AppState, error) {
	return cur, &TransitionError{From: cur.CurrentView, Type: msg.Type, Err: err}
}

// Next computes the state that follows cur once msg is applied. It never
// mutates cur. ERROR and unknown messages leave the state as it is.
func Next(cur models.AppState, msg models.ServerMessage) (models.AppState, error) {
	switch p := msg.Payload.(type) {
	case models.JoinPayload:
		if cur.CurrentView != models.ViewLanding {
			return illegal(cur, msg, ErrIllegalTransition)
		}
		next := cur.Clone()
		next.CurrentView = models.ViewLobby
		next.RoomCode = p.RoomCode
		next.UserName = p.Name
		next.MyTarget = models.NotAssigned()
		return next, nil

	case models.ParticipantsPayload:
		if cur.CurrentView == models.ViewLanding {
			return illegal(cur, msg, ErrIllegalTransition)
		}
		next := cur.Clone()
		next.Participants = make([]models.Participant, len(p.Participants))
		copy(next.Participants, p.Participants)
		return next, nil

	case models.MatchResultPayload:
		switch cur.CurrentView {
		case models.ViewLobby:
		case models.ViewResults:
			return illegal(cur, msg, ErrAlreadyAssigned)
		default:
			return illegal(cur, msg, ErrIllegalTransition)
		}
		target, err := models.AssignedTo(p.Target)
		if err != nil {
			return cur, err
		}
		next := cur.Clone()
		next.CurrentView = models.ViewResults
		next.MyTarget = target
		return next, nil

	case models.ErrorPayload, models.UnknownPayload, nil:
		return cur, nil
	}
	return cur, fmt.Errorf("unsupported payload %T", msg.Payload)
}

// Feedback receives everything the user has to be told about.
type Feedback interface {
	ServerError(models.ErrorPayload)
}

// FeedbackFunc adapts a function to Feedback.
type FeedbackFunc func(models.ErrorPayload)

func (f FeedbackFunc) ServerError(p models.ErrorPayload) { f(p) }

// Machine holds one user's session state and applies server messages to it.
type Machine struct {
	mu       sync.Mutex
	state    models.AppState
	feedback Feedback
}

func NewMachine(userName string, fb Feedback) *Machine {
	return &Machine{
		state:    models.NewAppState(userName),
		feedback: fb,
	}
}

func (m *Machine) State() models.AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Handle applies msg. ERROR payloads are handed to the feedback sink; an
// illegal transition leaves the state unchanged and is returned.
func (m *Machine) Handle(msg models.ServerMessage) error {
	if p, ok := msg.Payload.(models.ErrorPayload); ok {
		if m.feedback != nil {
			m.feedback.ServerError(p)
		} else {
			log.Warn().Str("code", p.Code).Msgf("[session] server error: %s", p.Message)
		}
	}
	if u, ok := msg.Payload.(models.UnknownPayload); ok {
		log.Debug().Str("type", string(u.Tag)).Msg("[session] ignoring unknown message")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := Next(m.state, msg)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Reset returns the session to the landing view, keeping the user name.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = models.NewAppState(m.state.UserName)
}
