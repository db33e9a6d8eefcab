package api

import (
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Session is one connected client. The hub owns the sessions map and the
// send channel lifecycle; the two pumps below are the only goroutines that
// touch the websocket connection.
type Session struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  *log.Logger
}

// enqueue hands a frame to the write pump without blocking. It returns false
// when the session's buffer is full, in which case the hub closes it rather
// than stall the broadcast loop.
func (s *Session) enqueue(msg []byte) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// readPump decodes inbound frames and forwards them to the hub loop. It owns
// reads on the connection and unregisters the session on any read error.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(s.hub.maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debugf("session %s read: %v", s.ID, err)
			}
			return
		}
		env, err := decodeEnvelope(msg)
		if err != nil {
			s.log.Debugf("session %s sent an undecodable frame: %v", s.ID, err)
			continue
		}
		s.hub.inbound <- inboundEvent{sess: s, env: env}
	}
}

// writePump owns writes on the connection. The hub closes the send channel
// to shut the session down.
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
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
