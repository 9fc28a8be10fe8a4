package comms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options tune listeners and dialers.
type Options struct {
	MaxFrameSize int
	Log          *zap.Logger

	// CheckOrigin filters websocket upgrades. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return o
}

// Listener accepts peer sessions.
type Listener interface {
	// Accept waits for the next peer or for ctx to be done.
	Accept(ctx context.Context) (*Session, error)
	Addr() net.Addr
	Close() error
}

// AcceptResult is the outcome of a background accept.
type AcceptResult struct {
	Session *Session
	Err     error
}

// AcceptAsync accepts one peer in the background. The channel yields
// exactly one result and is then closed.
func AcceptAsync(ctx context.Context, l Listener) <-chan AcceptResult {
	ch := make(chan AcceptResult, 1)
	go func() {
		defer close(ch)
		s, err := l.Accept(ctx)
		ch <- AcceptResult{Session: s, Err: err}
	}()
	return ch
}

type tcpListener struct {
	ln   *net.TCPListener
	opts Options
}

// Listen listens for TCP peers on addr.
func Listen(addr string, opts Options) (Listener, error) {
	opts = opts.withDefaults()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	opts.Log.Info(fmt.Sprintf("listening for peers on %s", ln.Addr()))
	return &tcpListener{ln: ln.(*net.TCPListener), opts: opts}, nil
}

func (l *tcpListener) Accept(ctx context.Context) (*Session, error) {
	// Unblock Accept when ctx ends by expiring the listener deadline.
	stop := context.AfterFunc(ctx, func() {
		l.ln.SetDeadline(time.Now())
	})
	conn, err := l.ln.Accept()
	if !stop() {
		l.ln.SetDeadline(time.Time{})
		if err == nil {
			conn.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: listener closed", ErrConnection)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s := NewSession(NewStreamConn(conn, l.opts.MaxFrameSize), l.opts.Log)
	l.opts.Log.Info(fmt.Sprintf("accepted peer %s", conn.RemoteAddr()), zap.String("session", s.ID()))
	return s, nil
}

func (l *tcpListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *tcpListener) Close() error {
	return l.ln.Close()
}

// Dial connects to a TCP peer.
func Dial(ctx context.Context, addr string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s := NewSession(NewStreamConn(conn, opts.MaxFrameSize), opts.Log)
	opts.Log.Info(fmt.Sprintf("connected to peer %s", addr), zap.String("session", s.ID()))
	return s, nil
}

// socketListener serves websocket upgrades on one path and hands the
// upgraded connections to Accept.
type socketListener struct {
	ln       net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	sockets  chan *websocket.Conn
	done     chan struct{}
	once     sync.Once
	opts     Options
}

// ListenSocket listens for websocket peers on addr, upgrading requests
// made to path.
func ListenSocket(addr, path string, opts Options) (Listener, error) {
	opts = opts.withDefaults()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if path == "" {
		path = "/"
	}

	l := &socketListener{
		ln:       ln,
		upgrader: websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		sockets:  make(chan *websocket.Conn),
		done:     make(chan struct{}),
		opts:     opts,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, l.connectionHandler)
	l.server = &http.Server{Handler: mux}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Log.Error("websocket server stopped", zap.Error(err))
		}
	}()
	opts.Log.Info(fmt.Sprintf("listening for websocket peers on ws://%s%s", ln.Addr(), path))
	return l, nil
}

// connectionHandler upgrades an HTTP request and waits for Accept to take
// the socket.
func (l *socketListener) connectionHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.opts.Log.Warn("upgrading connection failed", zap.Error(err))
		return
	}
	select {
	case l.sockets <- socket:
	case <-l.done:
		socket.Close()
	case <-r.Context().Done():
		socket.Close()
	}
}

func (l *socketListener) Accept(ctx context.Context) (*Session, error) {
	select {
	case socket := <-l.sockets:
		s := NewSession(NewSocketConn(socket, l.opts.MaxFrameSize), l.opts.Log)
		l.opts.Log.Info(fmt.Sprintf("accepted websocket peer %s", socket.RemoteAddr()), zap.String("session", s.ID()))
		return s, nil
	case <-l.done:
		return nil, fmt.Errorf("%w: listener closed", ErrConnection)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *socketListener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *socketListener) Close() (err error) {
	l.once.Do(func() {
		close(l.done)
		err = l.server.Close()
	})
	return
}

// DialSocket connects to a websocket peer, e.g. "ws://host:port/play".
func DialSocket(ctx context.Context, url string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s := NewSession(NewSocketConn(socket, opts.MaxFrameSize), opts.Log)
	opts.Log.Info(fmt.Sprintf("connected to websocket peer %s", url), zap.String("session", s.ID()))
	return s, nil
}
