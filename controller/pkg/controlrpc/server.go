package controlrpc

import (
	"context"
	"net"
	"net/rpc"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"go.aporeto.io/netinterceptor/controller/pkg/stack"
	"go.aporeto.io/netinterceptor/utils/cache"
	"go.uber.org/zap"
)

// Server accepts controller connections on a unix socket. Every connection
// gets its own command handler. At most one connection holds an attached
// session, and losing that connection detaches the controller.
type Server struct {
	engine   Engine
	path     string
	secret   string
	pool     stack.BufferPool
	sessions *cache.Cache
	handle   *msgpackHandle
	peer     func(net.Conn) (uint32, error)
}

// NewServer creates a control channel server for the engine. Reads are
// served from buffers of readBufferSize bytes.
func NewServer(engine Engine, path string, secret string, readBufferSize int) *Server {

	s := &Server{
		engine: engine,
		path:   path,
		secret: secret,
		pool:   stack.NewBufferPool(readBufferSize),
		handle: newMsgpackHandle(),
		peer:   peerProcessID,
	}

	s.sessions = cache.NewCacheWithRemovalNotifier("ControlSessions", func(c cache.DataStore, id interface{}, item interface{}) {
		session := item.(*Session)
		if s.engine.Detach() {
			zap.L().Info("Controller detached",
				zap.String("session", session.ID),
				zap.Uint32("pid", session.PID),
			)
		}
	})

	return s
}

// Sessions returns the attached sessions.
func (s *Server) Sessions() []*Session {

	list := []*Session{}
	for _, k := range s.sessions.KeyList() {
		if v, err := s.sessions.Get(k); err == nil {
			list = append(list, v.(*Session))
		}
	}

	return list
}

// Run listens on the socket path and serves connections until the context
// is cancelled.
func (s *Server) Run(ctx context.Context) error {

	if len(s.path) == 0 {
		return errors.New("no socket path")
	}

	// removing old path in case it exists already - error if we can't remove it
	if _, err := os.Stat(s.path); err == nil {

		zap.L().Debug("Socket path already exists: removing", zap.String("path", s.path))

		if rerr := os.Remove(s.path); rerr != nil {
			return errors.Wrapf(rerr, "unable to delete existing socket path %s", s.path)
		}
	}

	listen, err := net.Listen("unix", s.path)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", s.path)
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		listen.Close() // nolint: errcheck
		return errors.Wrapf(err, "unable to restrict socket %s", s.path)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := listen.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				zap.L().Error("unable to accept connection", zap.Error(err))
				continue
			}

			go s.serve(ctx, conn)
		}
	}()

	<-ctx.Done()

	if merr := listen.Close(); merr != nil {
		zap.L().Warn("Connection already closed", zap.Error(merr))
	}
	wg.Wait()

	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		if err := os.Remove(s.path); err != nil {
			zap.L().Warn("failed to remove old path", zap.Error(err))
		}
	}

	return nil
}

// serve runs the command handler of one connection.
func (s *Server) serve(ctx context.Context, conn net.Conn) {

	pid, err := s.peer(conn)
	if err != nil {
		zap.L().Debug("Unable to identify controller peer", zap.Error(err))
	}

	wc := &watchedConn{Conn: conn, lost: make(chan struct{})}
	h := newInterceptor(ctx, s, pid, wc.lost)

	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, h); err != nil {
		zap.L().Error("Unable to register command handler", zap.Error(err))
		conn.Close() // nolint: errcheck
		return
	}

	go func() {
		select {
		case <-ctx.Done():
			conn.Close() // nolint: errcheck
		case <-wc.lost:
		}
	}()

	srv.ServeCodec(codec.MsgpackSpecRpc.ServerCodec(wc, s.handle.handler()))

	h.endSession()
}

// watchedConn closes lost when reading from the connection fails, so that
// blocked commands can give up before the codec shuts down.
type watchedConn struct {
	net.Conn
	once sync.Once
	lost chan struct{}
}

func (w *watchedConn) Read(b []byte) (int, error) {

	n, err := w.Conn.Read(b)
	if err != nil {
		w.once.Do(func() { close(w.lost) })
	}

	return n, err
}
