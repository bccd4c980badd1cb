package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session defaults, applied when a SessionConfig field is zero.
const (
	DefaultSendBuffer     = 256
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxMessageSize = 8192
)

// SessionState is the lifecycle phase of a Session.
type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig tunes one websocket session.
type SessionConfig struct {
	SendBuffer     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}

// Joiner admits a session to live traffic. *Hub implements it.
type Joiner interface {
	Join(ctx context.Context, sub Subscriber) (int, error)
	Leave(sub Subscriber)
}

// Session is one websocket subscriber. Outbound frames are queued by Send
// and written by a dedicated goroutine; inbound frames are read only to
// keep the connection alive.
type Session struct {
	id     string
	conn   *websocket.Conn
	cfg    SessionConfig
	logger Logger

	send      chan []byte
	snapshot  chan [][]byte
	closed    chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
	sent      atomic.Int64
	since     time.Time
}

// NewSession wraps an upgraded connection.
func NewSession(conn *websocket.Conn, cfg SessionConfig, logger Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		cfg:      cfg,
		logger:   orNoop(logger),
		send:     make(chan []byte, cfg.SendBuffer),
		snapshot: make(chan [][]byte, 1),
		closed:   make(chan struct{}),
		since:    time.Now(),
	}
}

// ID returns the session's random identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle phase.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Send queues msg for the writer goroutine without blocking.
func (s *Session) Send(msg []byte) error {
	select {
	case <-s.closed:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// SendSnapshot queues the bootstrap frames. The writer goroutine writes
// all of them before the first live message.
func (s *Session) SendSnapshot(frames [][]byte) error {
	select {
	case <-s.closed:
		return ErrSubscriberClosed
	default:
	}

	select {
	case s.snapshot <- frames:
		return nil
	default:
		return ErrSnapshotQueued
	}
}

// Close stops the session and closes the underlying connection. It is
// idempotent and safe to call from any goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(SessionClosed))
		close(s.closed)

		//nolint:errcheck // best-effort close frame
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(s.cfg.WriteTimeout))
		err = s.conn.Close()

		s.logger.Debug("websocket session closed",
			"subscriber", s.id, "frames_sent", s.sent.Load(), "duration", time.Since(s.since).Round(time.Millisecond))
	})
	return err
}

// Serve joins the session to joiner and pumps frames until the peer goes
// away, a write fails, ctx is cancelled or Close is called. It always
// leaves joiner and closes the connection before returning.
func (s *Session) Serve(ctx context.Context, joiner Joiner) error {
	go s.writePump()

	defer func() {
		joiner.Leave(s)
		_ = s.Close() //nolint:errcheck // connection already finished
	}()

	sent, err := joiner.Join(ctx, s)
	if err != nil {
		return err
	}
	// A close during Join must not be overwritten.
	s.state.CompareAndSwap(int32(SessionConnecting), int32(SessionActive))
	s.logger.Debug("websocket session active", "subscriber", s.id, "snapshot", sent)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() }) //nolint:errcheck // unblocks readPump
	defer stop()

	s.readPump()
	return nil
}

// readPump discards inbound frames. Any frame or pong extends the read
// deadline; a missing pong ends the session.
func (s *Session) readPump() {
	wait := s.cfg.PingInterval + s.cfg.PongTimeout

	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	//nolint:errcheck // a failed deadline surfaces as a read error
	s.conn.SetReadDeadline(time.Now().Add(wait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.State() != SessionClosed {
				s.logger.Warn("websocket read error", "subscriber", s.id, "error", err)
			}
			return
		}
		//nolint:errcheck // see above
		s.conn.SetReadDeadline(time.Now().Add(wait))
		s.logger.Debug("ignoring inbound websocket frame", "subscriber", s.id, "bytes", len(msg))
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case frames := <-s.snapshot:
			if !s.write(frames...) {
				return
			}
		case msg := <-s.send:
			// A snapshot is queued before the session can receive live
			// messages, so it is already visible here.
			select {
			case frames := <-s.snapshot:
				if !s.write(frames...) {
					return
				}
			default:
			}
			if !s.write(msg) {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.Close() //nolint:errcheck // already failing
				return
			}
		}
	}
}

// write sends each message as a text frame. On failure it closes the
// session and returns false.
func (s *Session) write(msgs ...[]byte) bool {
	for _, msg := range msgs {
		//nolint:errcheck // write error caught below
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("websocket write failed", "subscriber", s.id, "error", err)
			_ = s.Close() //nolint:errcheck // already failing
			return false
		}
		s.sent.Add(1)
	}
	return true
}
