package comms

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const inboxSize = 16

type inbound struct {
	msg Message
	err error
}

// Session is a message connection to one peer.
//
// A single goroutine owns the read side and queues decoded messages, so a
// Receive that times out never leaves half a frame behind. Writes are
// serialized.
type Session struct {
	id   string
	conn FrameConn
	log  *zap.Logger

	inbox chan inbound
	// readErr is set before inbox is closed.
	readErr error

	wmu       sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession starts reading from conn. A nil logger discards logs.
func NewSession(conn FrameConn, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		id:    id,
		conn:  conn,
		log:   log.With(zap.String("session", id)),
		inbox: make(chan inbound, inboxSize),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the address of the peer.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) readLoop() {
	defer close(s.inbox)
	for {
		payload, err := s.conn.ReadFrame()
		var in inbound
		switch {
		case errors.Is(err, ErrMalformedMessage):
			in.err = err
		case err != nil:
			s.log.Debug("read side closed", zap.Error(err))
			s.readErr = disconnected(err)
			return
		default:
			s.log.Debug("frame received", zap.Int("bytes", len(payload)))
			in.msg, in.err = Decode(payload)
		}

		select {
		case s.inbox <- in:
		case <-s.done:
			s.readErr = fmt.Errorf("%w: session closed", ErrDisconnected)
			return
		}
	}
}

// Receive waits for the next message. A timeout of zero waits forever.
//
// It returns ErrTimeout when nothing arrived in time; the session stays
// usable. Once the peer is gone, every call returns ErrDisconnected.
// Frames that cannot be decoded surface as ErrMalformedMessage.
func (s *Session) Receive(timeout time.Duration) (Message, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case in, ok := <-s.inbox:
		if !ok {
			return nil, s.readErr
		}
		return in.msg, in.err
	case <-expired:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Send writes one message.
func (s *Session) Send(m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	select {
	case <-s.done:
		return fmt.Errorf("%w: session closed", ErrSend)
	default:
	}
	if err := s.conn.WriteFrame(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	s.log.Debug("frame sent", zap.Int("bytes", len(payload)))
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() (err error) {
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return
}
