package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"secretsanta/models"
	"secretsanta/session"
)

// JoinOptions says which room to enter and as whom.
type JoinOptions struct {
	Room   string
	Name   string
	Avatar string
	Create bool

	// Feedback receives ERROR messages from the server.
	Feedback session.Feedback
	// OnState is called with the new state after every applied message.
	OnState func(models.AppState)
}

// Conn is a participant's connection to the room server.
type Conn struct {
	ws      *websocket.Conn
	machine *session.Machine
	onState func(models.AppState)
	writeMu sync.Mutex
	closed  atomic.Bool
}

func wsURL(baseURL string, opts JoinOptions) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	action := models.ActionJoin
	if opts.Create {
		action = models.ActionCreate
	}
	q := url.Values{}
	q.Set("room", opts.Room)
	q.Set("name", opts.Name)
	q.Set("avatar", opts.Avatar)
	q.Set("action", string(action))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func Dial(ctx context.Context, baseURL string, opts JoinOptions) (*Conn, error) {
	if opts.Room == "" || opts.Name == "" {
		return nil, errors.New("room and name are required")
	}
	target, err := wsURL(baseURL, opts)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Conn{
		ws:      ws,
		machine: session.NewMachine(opts.Name, opts.Feedback),
		onState: opts.OnState,
	}, nil
}

func (c *Conn) State() models.AppState {
	return c.machine.State()
}

// Run reads server messages into the session until the connection closes or
// ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()
	defer c.machine.Reset()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		msg, err := models.DecodeServerMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("[client] skipping malformed message")
			continue
		}
		if !msg.Type.Known() {
			log.Debug().Str("type", string(msg.Type)).Msg("[client] unknown message type")
		}
		if err := c.machine.Handle(msg); err != nil {
			log.Warn().Err(err).Msg("[client] message not applicable")
			continue
		}
		if c.onState != nil {
			c.onState(c.machine.State())
		}
	}
}

// StartGame asks the server to run the draw. Only the host may do this.
func (c *Conn) StartGame() error {
	return c.send(models.ClientMessage{Type: models.ClientStartGame})
}

func (c *Conn) send(msg models.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Conn) Close() error {
	c.closed.Store(true)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
