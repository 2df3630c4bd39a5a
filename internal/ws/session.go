package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 1024                // Inbound frames are small command objects.

	sendBufferSize = 256
)

// Session is one websocket connection's seat in the hub. Its lifecycle is
// connected -> (subscribed <-> unsubscribed) -> disconnected; the hub's run
// loop tracks which state it is in.
type Session struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewSession wraps an upgraded connection. The caller must Register it with
// the hub and then call Start.
func NewSession(hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// readPump parses inbound command frames and forwards them to the hub run
// loop. Exiting the loop, for any reason, unregisters the session.
func (s *Session) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: session %s read error: %v", s.ID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("ws: session %s sent malformed frame: %v", s.ID, err)
			continue
		}

		cmd := command{session: s, action: msg.Action}
		if msg.IntersectionID != nil {
			cmd.intersectionID = *msg.IntersectionID
			cmd.hasIntersection = *msg.IntersectionID != ""
		}

		select {
		case s.hub.commands <- cmd:
		case <-s.hub.done:
			return
		}
	}
}

// writePump drains the session's send channel onto the wire and keeps the
// connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped the session.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws: session %s write error: %v", s.ID, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
