package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is an observer connection bound to one actor.
type Subscriber struct {
	conn           Conn
	mu             sync.Mutex
	lastCommandSeq atomic.Uint64
}

func newSubscriber(conn Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// WriteMessage serialises writes to the underlying connection.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return websocket.ErrCloseSent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *Subscriber) writeText(data []byte) error {
	return s.WriteMessage(websocket.TextMessage, data)
}

func (s *Subscriber) close() {
	if s == nil || s.conn == nil {
		return
	}
	s.conn.Close()
}

// LastCommandSeq is the highest command sequence acknowledged to the client.
func (s *Subscriber) LastCommandSeq() uint64 {
	if s == nil {
		return 0
	}
	return s.lastCommandSeq.Load()
}

func (s *Subscriber) StoreLastCommandSeq(seq uint64) {
	if s == nil {
		return
	}
	s.lastCommandSeq.Store(seq)
}
