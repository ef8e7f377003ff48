package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secretsanta/config"
	"secretsanta/handlers"
	"secretsanta/hub"
	"secretsanta/models"
	"secretsanta/results"
)

func newBackend(t *testing.T) string {
	t.Helper()
	store, err := results.Open("", 8)
	require.NoError(t, err)
	h := hub.NewHub(store)
	go h.Run()
	srv := httptest.NewServer(handlers.NewServer(h, config.Load()).Router())
	t.Cleanup(func() {
		srv.Close()
		h.Stop()
		_ = store.Close()
	})
	return srv.URL
}

type participant struct {
	conn   *Conn
	states chan models.AppState
	errs   chan models.ErrorPayload
	done   chan error
}

func connect(t *testing.T, ctx context.Context, base, room, name string, create bool) *participant {
	t.Helper()
	p := &participant{
		states: make(chan models.AppState, 32),
		errs:   make(chan models.ErrorPayload, 8),
		done:   make(chan error, 1),
	}
	conn, err := Dial(ctx, base, JoinOptions{
		Room:     room,
		Name:     name,
		Create:   create,
		Feedback: FeedbackChan(p.errs),
		OnState:  func(s models.AppState) { p.states <- s },
	})
	require.NoError(t, err)
	p.conn = conn
	go func() { p.done <- conn.Run(ctx) }()
	return p
}

// FeedbackChan forwards server errors into ch.
type FeedbackChan chan models.ErrorPayload

func (f FeedbackChan) ServerError(p models.ErrorPayload) { f <- p }

func (p *participant) waitFor(t *testing.T, cond func(models.AppState) bool) models.AppState {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-p.states:
			if cond(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state")
		}
	}
}

func TestClientReachesResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := newBackend(t)

	alice := connect(t, ctx, base, "xmas", "Alice", true)
	s := alice.waitFor(t, func(s models.AppState) bool { return s.CurrentView == models.ViewLobby })
	assert.Equal(t, "xmas", s.RoomCode)

	bob := connect(t, ctx, base, "xmas", "Bob", false)
	bob.waitFor(t, func(s models.AppState) bool { return len(s.Participants) == 2 })
	s = alice.waitFor(t, func(s models.AppState) bool { return len(s.Participants) == 2 })
	assert.True(t, s.Participants[0].IsHost)
	assert.Equal(t, "Bob", s.Participants[1].Name)

	require.NoError(t, bob.conn.StartGame())
	select {
	case e := <-bob.errs:
		assert.Equal(t, hub.CodeNotHost, e.Code)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a not-host error")
	}
	assert.Equal(t, models.ViewLobby, bob.conn.State().CurrentView)
	assert.False(t, bob.conn.State().MyTarget.IsAssigned())

	require.NoError(t, alice.conn.StartGame())
	s = alice.waitFor(t, func(s models.AppState) bool { return s.CurrentView == models.ViewResults })
	assert.Equal(t, "Bob", s.MyTarget.String())
	s = bob.waitFor(t, func(s models.AppState) bool { return s.CurrentView == models.ViewResults })
	assert.Equal(t, "Alice", s.MyTarget.String())

	require.NoError(t, bob.conn.Close())
	select {
	case err := <-bob.done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after close")
	}
	assert.Equal(t, models.ViewLanding, bob.conn.State().CurrentView)
}

func TestClientSurfacesJoinError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := newBackend(t)

	p := connect(t, ctx, base, "ghost", "Alice", false)
	select {
	case e := <-p.errs:
		assert.Equal(t, hub.CodeRoomNotFound, e.Code)
		assert.Equal(t, "room does not exist", e.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a room-not-found error")
	}
	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after server closed")
	}
}

func TestClientSurfacesOddErrorPayloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ERROR"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ERROR","payload":500}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := connect(t, ctx, srv.URL, "xmas", "Alice", false)
	var got []models.ErrorPayload
	for len(got) < 2 {
		select {
		case e := <-p.errs:
			got = append(got, e)
		case <-time.After(3 * time.Second):
			t.Fatalf("surfaced %d of 2 errors", len(got))
		}
	}
	assert.Equal(t, []models.ErrorPayload{{}, {Message: "500"}}, got)
	assert.Equal(t, models.ViewLanding, p.conn.State().CurrentView)

	cancel()
	select {
	case <-p.done:
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	base := newBackend(t)
	p := connect(t, ctx, base, "xmas", "Alice", true)
	p.waitFor(t, func(s models.AppState) bool { return s.CurrentView == models.ViewLobby })

	cancel()
	select {
	case err := <-p.done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestWsURL(t *testing.T) {
	u, err := wsURL("https://santa.example.com/base/", JoinOptions{Room: "r1", Name: "Al ice", Create: true})
	require.NoError(t, err)
	assert.Equal(t, "wss://santa.example.com/base/ws?action=create&avatar=&name=Al+ice&room=r1", u)

	_, err = wsURL("ftp://x", JoinOptions{Room: "r", Name: "n"})
	assert.Error(t, err)

	_, err = Dial(context.Background(), "http://localhost", JoinOptions{Room: "", Name: "n"})
	assert.Error(t, err)
}
