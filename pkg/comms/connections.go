package comms

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// FrameConn moves whole frames over one connection.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	RemoteAddr() net.Addr
	Close() error
}

// streamConn frames a byte stream such as a TCP connection.
type streamConn struct {
	conn    net.Conn
	maxSize int
}

// NewStreamConn wraps a stream connection.
func NewStreamConn(conn net.Conn, maxFrameSize int) FrameConn {
	return &streamConn{conn: conn, maxSize: maxFrameSize}
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.conn, c.maxSize)
}

func (c *streamConn) WriteFrame(payload []byte) error {
	return WriteFrame(c.conn, payload, c.maxSize)
}

func (c *streamConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}

// socketConn carries one frame per binary websocket message. The length
// prefix is kept so both transports share a single frame format.
type socketConn struct {
	socket  *websocket.Conn
	maxSize int
}

// NewSocketConn wraps a websocket connection.
func NewSocketConn(socket *websocket.Conn, maxFrameSize int) FrameConn {
	if maxFrameSize > 0 {
		socket.SetReadLimit(int64(maxFrameSize + headerSize))
	}
	return &socketConn{socket: socket, maxSize: maxFrameSize}
}

func (c *socketConn) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := c.socket.ReadMessage()
		if isCleanClose(err) {
			return nil, fmt.Errorf("%w: peer closed the socket", ErrDisconnected)
		}
		if err != nil {
			return nil, disconnected(err)
		}
		if kind != websocket.BinaryMessage {
			// Text messages are not frames.
			continue
		}
		return unframe(data, c.maxSize)
	}
}

func (c *socketConn) WriteFrame(payload []byte) error {
	if c.maxSize > 0 && len(payload) > c.maxSize {
		return ErrFrameTooLarge
	}
	return c.socket.WriteMessage(websocket.BinaryMessage, frame(payload))
}

func (c *socketConn) RemoteAddr() net.Addr {
	return c.socket.RemoteAddr()
}

// Close sends a close message before dropping the connection, so the
// peer sees a clean shutdown.
func (c *socketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.socket.Close()
}

// isCleanClose reports whether err comes from the peer closing a
// websocket normally.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
