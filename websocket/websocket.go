// Package websocket carries hub subscriptions over gorilla WebSocket
// connections. Heartbeats are ping control frames, so clients can tell them
// apart from data frames without parsing anything.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/cameroncuttingedge/scorepad/events"
	"github.com/cameroncuttingedge/scorepad/hub"
	"github.com/cameroncuttingedge/scorepad/store"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow connections from any origin
}

// connSink adapts one websocket connection to the hub's Sink. The mutex
// serializes writes between Publish and the heartbeat goroutine.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *connSink) WriteEvent(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *connSink) WriteHeartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *connSink) Close() error {
	return s.conn.Close()
}

// Server exposes the subscribe endpoint for game state streams.
type Server struct {
	hub   *hub.Hub
	store store.Store
}

func NewServer(h *hub.Hub, st store.Store) *Server {
	return &Server{hub: h, store: st}
}

// GameWebSocketHandler upgrades the request and registers the connection as
// a subscriber of the game. It then blocks reading until the client goes
// away; inbound frames are ignored, the stream is push-only.
func (s *Server) GameWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	gameID, ok := vars["gameID"]
	if !ok {
		http.Error(w, "Game ID is required", http.StatusBadRequest)
		return
	}

	g, err := s.store.FindByID(r.Context(), gameID)
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Failed to load game for subscription")
		http.Error(w, "Failed to load game", http.StatusInternalServerError)
		return
	}
	if g == nil {
		http.Error(w, "Game not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("WebSocket upgrade error")
		return
	}

	sub, err := s.hub.Subscribe(gameID, &connSink{conn: conn}, events.Connected(g))
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Handshake write failed")
		return
	}
	defer sub.Close()

	log.Info().Str("gameID", gameID).Msg("WebSocket connection established and registered")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Info().Err(err).Str("gameID", gameID).Msg("WebSocket closed")
			break
		}
	}
}
