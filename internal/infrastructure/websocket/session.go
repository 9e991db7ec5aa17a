package websocket

import (
	"sync"
	"time"

	"ticketing-realtime/internal/domain"
	"ticketing-realtime/pkg/logger"

	"github.com/gorilla/websocket"
)

// SessionOptions tunes the per-connection writer.
type SessionOptions struct {
	BufferSize   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// WebSocketSession wraps a gorilla connection with a buffered outbound queue drained by a
// single writer goroutine, so messages to one connection keep their send order and
// Send never blocks the caller.
type WebSocketSession struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	opts   SessionOptions
	mutex  sync.Mutex
	closed bool
	log    logger.Logger
}

var _ domain.Session = (*WebSocketSession)(nil)

func NewWebSocketSession(conn *websocket.Conn, opts SessionOptions, log logger.Logger) *WebSocketSession {
	s := &WebSocketSession{
		conn: conn,
		send: make(chan []byte, opts.BufferSize),
		done: make(chan struct{}),
		opts: opts,
		log:  log,
	}
	go s.writeLoop()
	return s
}

// Send queues data for the writer. It fails instead of blocking when the queue is full
// or the session is closed.
func (s *WebSocketSession) Send(data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}

	select {
	case s.send <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

// Close stops accepting messages. Already queued messages are flushed before the
// close frame is written and the socket is closed.
func (s *WebSocketSession) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.closed {
		s.closed = true
		close(s.send)
	}
	return nil
}

// Done is closed once the underlying socket has been closed.
func (s *WebSocketSession) Done() <-chan struct{} {
	return s.done
}

func (s *WebSocketSession) writeLoop() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		close(s.done)
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(s.opts.WriteTimeout))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("Write failed", "error", err)
				s.markClosed()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("Ping failed", "error", err)
				s.markClosed()
				return
			}
		}
	}
}

// markClosed makes later sends fail fast after the writer gave up.
func (s *WebSocketSession) markClosed() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
}
