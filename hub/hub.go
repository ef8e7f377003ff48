package hub

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"secretsanta/draw"
	"secretsanta/models"
	"secretsanta/results"
)

// Error codes carried in ERROR payloads.
const (
	CodeRoomExists     = "room_exists"
	CodeRoomNotFound   = "room_not_found"
	CodeNameTaken      = "name_taken"
	CodeDrawStarted    = "draw_started"
	CodeNotHost        = "not_host"
	CodeTooFew         = "not_enough_participants"
	CodeStorage        = "storage"
	CodeUnknownMessage = "unknown_message"
	CodeNotInRoom      = "not_in_room"
)

type Inbound struct {
	Client *models.Client
	Msg    models.ClientMessage
}

// Hub owns every room. Room state is only touched from the Run goroutine;
// mu guards the Rooms map for readers outside of it.
type Hub struct {
	Rooms      map[string]*models.Room
	Register   chan *models.Client
	Unregister chan *models.Client
	Inbound    chan Inbound
	mu         sync.RWMutex

	store *results.Store
	rng   *rand.Rand
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func NewHub(store *results.Store) *Hub {
	return &Hub{
		Rooms:      make(map[string]*models.Room),
		Register:   make(chan *models.Client),
		Unregister: make(chan *models.Client),
		Inbound:    make(chan Inbound, 64),
		store:      store,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case in := <-h.Inbound:
			h.handleMessage(in.Client, in.Msg)
		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
	<-h.done
}

// Join hands a client to the hub. It reports false once the hub has stopped.
func (h *Hub) Join(c *models.Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Leave(c *models.Client) {
	select {
	case h.Unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Dispatch(c *models.Client, msg models.ClientMessage) {
	select {
	case h.Inbound <- Inbound{Client: c, Msg: msg}:
	case <-h.quit:
	}
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms)
}

func (h *Hub) registerClient(client *models.Client) {
	h.mu.RLock()
	room, exists := h.Rooms[client.RoomCode]
	h.mu.RUnlock()

	switch client.Action {
	case models.ActionCreate:
		if exists || h.hasSavedDraw(client.RoomCode) {
			h.reject(client, CodeRoomExists, "room already exists")
			return
		}
		room = &models.Room{Code: client.RoomCode}
		h.putRoom(room)
	default:
		if !exists {
			room = h.restoreRoom(client)
			if room == nil {
				h.reject(client, CodeRoomNotFound, "room does not exist")
				return
			}
		}
		if room.Member(client.Name) != nil {
			h.reject(client, CodeNameTaken, "name already taken in this room")
			return
		}
		if room.Started && room.Assignments[client.Name] == "" {
			h.reject(client, CodeDrawStarted, "draw already happened")
			return
		}
	}

	room.Members = append(room.Members, client)
	if room.Host == nil {
		room.Host = client
	}
	log.Info().Str("room", room.Code).Str("user", client.Name).Int("size", len(room.Members)).Msg("[hub] client joined")

	if !h.send(room, client, models.NewServerMessage(models.JoinPayload{
		RoomCode: room.Code,
		Name:     client.Name,
		IsHost:   room.Host == client,
	})) {
		return
	}
	h.BroadcastUserList(room)
	if room.Started {
		if target := room.Assignments[client.Name]; target != "" {
			h.send(room, client, models.NewServerMessage(models.MatchResultPayload{Target: target}))
		}
	}
}

func (h *Hub) hasSavedDraw(code string) bool {
	_, found, err := h.store.LoadDraw(code)
	if err != nil {
		log.Error().Err(err).Str("room", code).Msg("[hub] load draw")
	}
	return found
}

// restoreRoom brings back an emptied room whose draw was saved, as long as the
// joining name took part in it.
func (h *Hub) restoreRoom(client *models.Client) *models.Room {
	pairs, found, err := h.store.LoadDraw(client.RoomCode)
	if err != nil {
		log.Error().Err(err).Str("room", client.RoomCode).Msg("[hub] load draw")
		return nil
	}
	if !found || pairs[client.Name] == "" {
		return nil
	}
	room := &models.Room{Code: client.RoomCode, Started: true, Assignments: pairs}
	h.putRoom(room)
	log.Info().Str("room", room.Code).Msg("[hub] restored room from saved draw")
	return room
}

func (h *Hub) putRoom(room *models.Room) {
	h.mu.Lock()
	h.Rooms[room.Code] = room
	h.mu.Unlock()
}

func (h *Hub) deleteRoom(code string) {
	h.mu.Lock()
	delete(h.Rooms, code)
	h.mu.Unlock()
	log.Info().Str("room", code).Msg("[hub] room deleted (empty)")
}

func (h *Hub) reject(client *models.Client, code, message string) {
	log.Warn().Str("room", client.RoomCode).Str("user", client.Name).Str("code", code).Msg("[hub] join rejected")
	select {
	case client.Send <- models.ErrorMessage(code, message):
	default:
	}
	close(client.Send)
}

func (h *Hub) unregisterClient(client *models.Client) {
	h.mu.RLock()
	room, exists := h.Rooms[client.RoomCode]
	h.mu.RUnlock()
	if !exists {
		return
	}
	h.removeMember(room, client)
}

func (h *Hub) removeMember(room *models.Room, client *models.Client) {
	idx := -1
	for i, c := range room.Members {
		if c == client {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)
	close(client.Send)
	log.Info().Str("room", room.Code).Str("user", client.Name).Int("size", len(room.Members)).Msg("[hub] client left")

	if len(room.Members) == 0 {
		h.deleteRoom(room.Code)
		return
	}
	if room.Host == client {
		room.Host = room.Members[0]
		log.Info().Str("room", room.Code).Str("host", room.Host.Name).Msg("[hub] host reassigned")
	}
	h.BroadcastUserList(room)
}

// BroadcastUserList sends the roster, in join order, to every member.
func (h *Hub) BroadcastUserList(room *models.Room) {
	msg := models.NewServerMessage(models.ParticipantsPayload{Participants: room.Participants()})
	for _, c := range append([]*models.Client(nil), room.Members...) {
		h.send(room, c, msg)
	}
}

// send queues msg for c. A client whose buffer is full is dropped from the room.
func (h *Hub) send(room *models.Room, c *models.Client, msg models.ServerMessage) bool {
	if room.Member(c.Name) != c {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		log.Warn().Str("room", room.Code).Str("user", c.Name).Msg("[hub] send buffer full; dropping client")
		h.removeMember(room, c)
		return false
	}
}

func (h *Hub) handleMessage(client *models.Client, msg models.ClientMessage) {
	h.mu.RLock()
	room, exists := h.Rooms[client.RoomCode]
	h.mu.RUnlock()
	if !exists || room.Member(client.Name) != client {
		log.Debug().Str("user", client.Name).Str("type", msg.Type).Msg("[hub] message from client outside a room")
		return
	}

	switch msg.Type {
	case models.ClientStartGame:
		h.startDraw(room, client)
	default:
		h.send(room, client, models.ErrorMessage(CodeUnknownMessage, "unknown message type "+msg.Type))
	}
}

func (h *Hub) startDraw(room *models.Room, client *models.Client) {
	if client != room.Host {
		h.send(room, client, models.ErrorMessage(CodeNotHost, "only the host can start the draw"))
		return
	}
	if room.Started {
		h.send(room, client, models.ErrorMessage(CodeDrawStarted, "draw already happened"))
		return
	}

	names := make([]string, 0, len(room.Members))
	for _, c := range room.Members {
		names = append(names, c.Name)
	}
	pairs, err := draw.Assign(names, h.rng)
	if err != nil {
		h.send(room, client, models.ErrorMessage(CodeTooFew, err.Error()))
		return
	}
	if err := h.store.SaveDraw(room.Code, pairs); err != nil {
		log.Error().Err(err).Str("room", room.Code).Msg("[hub] save draw")
		h.send(room, client, models.ErrorMessage(CodeStorage, "could not save the draw"))
		return
	}

	room.Started = true
	room.Assignments = pairs
	log.Info().Str("room", room.Code).Int("participants", len(pairs)).Msg("[hub] draw complete")

	// Each giver only ever learns their own receiver.
	for _, c := range append([]*models.Client(nil), room.Members...) {
		h.send(room, c, models.NewServerMessage(models.MatchResultPayload{Target: pairs[c.Name]}))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, room := range h.Rooms {
		for _, c := range room.Members {
			close(c.Send)
		}
		room.Members = nil
		delete(h.Rooms, code)
	}
}
