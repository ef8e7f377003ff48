package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"secretsanta/config"
	"secretsanta/hub"
	"secretsanta/models"
)

// Server wires the HTTP routes to the room hub.
type Server struct {
	hub      *hub.Hub
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewServer(h *hub.Hub, cfg *config.Config) *Server {
	return &Server{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.ServeHealth)
	r.Get("/ws", s.ServeWs)
	r.Get("/generate-room", ServeGenerateRoom)
	return r
}

func (s *Server) ServeHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"ok":    true,
		"rooms": s.hub.RoomCount(),
	}); err != nil {
		log.Warn().Err(err).Msg("[http] encode health")
	}
}

func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomCode := q.Get("room")
	rawName := q.Get("name")

	if roomCode == "" || rawName == "" {
		http.Error(w, "Missing room or name", http.StatusBadRequest)
		return
	}
	userName := SanitizeName(rawName)
	if userName == "" {
		http.Error(w, "Invalid name", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("[ws] upgrade websocket")
		return
	}

	client := &models.Client{
		ID:       uuid.NewString(),
		Name:     userName,
		Avatar:   SanitizeAvatar(q.Get("avatar")),
		RoomCode: roomCode,
		Action:   models.ParseAction(q.Get("action")),
		Send:     make(chan models.ServerMessage, s.cfg.ClientSendBuffer),
	}

	if !s.hub.Join(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go s.writePump(client, conn)
	go s.readPump(client, conn)
}

func (s *Server) readPump(client *models.Client, conn *websocket.Conn) {
	defer func() {
		s.hub.Leave(client)
		conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user", client.Name).Msg("[ws] read")
			}
			break
		}
		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Str("user", client.Name).Msg("[ws] malformed client message")
			continue
		}
		s.hub.Dispatch(client, msg)
	}
}

func (s *Server) writePump(client *models.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := conn.WriteJSON(message)
			if err != nil {
				log.Debug().Err(err).Str("user", client.Name).Msg("[ws] write json")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func ServeGenerateRoom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.RoomCodeResponse{
		Code: generateRoomCode(),
	}); err != nil {
		log.Warn().Err(err).Msg("[http] encode room code")
	}
}

func generateRoomCode() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}
