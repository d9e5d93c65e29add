package session

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// Session is one client's persistent connection. Topic, UserID and Email
// are unset until a successful join; ReadPump refuses every event but
// "join" until then.
type Session struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	Registry *Registry
	Handler  *Handler

	Topic  string
	UserID uuid.UUID
	Email  string

	lastActiveNano int64
}

func newSession(conn *websocket.Conn, registry *Registry, handler *Handler) *Session {
	s := &Session{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Registry: registry,
		Handler:  handler,
	}
	s.touch()
	return s
}

func (s *Session) joined() bool { return s.Topic != "" }

func (s *Session) touch() { atomic.StoreInt64(&s.lastActiveNano, time.Now().UnixNano()) }

func (s *Session) lastActive() time.Time { return time.Unix(0, atomic.LoadInt64(&s.lastActiveNano)) }

// reply best-effort delivers a marshaled reply to the client. A full send
// buffer means the connection is already being torn down; the reply is
// dropped rather than blocking the read loop.
func (s *Session) reply(msg []byte) {
	select {
	case s.Send <- msg:
	default:
		log.Printf("session %s reply buffer full, dropping", s.ID)
	}
}

// ReadPump reads frames from the connection and dispatches each to the
// handler in order, giving per-session FIFO reply ordering. It exits, and
// tears the connection down, on any read error or close frame.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		if s.joined() {
			s.Registry.unregister <- s
		} else {
			close(s.Send)
		}
		s.Conn.Close()
	}()

	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		s.touch()
		return nil
	})

	for {
		_, message, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("session %s read error: %v", s.ID, err)
			}
			break
		}
		s.touch()
		s.Handler.dispatch(ctx, s, message)
	}
}

// WritePump serializes all writes to the connection: queued replies and
// broadcasts, plus periodic pings, so ReadPump never has to touch the
// connection for writing.
func (s *Session) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := s.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(s.Send)
			for i := 0; i < n; i++ {
				w.Write(<-s.Send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
