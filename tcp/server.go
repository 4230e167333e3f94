//go:build linux

package tcp

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/avgx/pion/netpoll"
	"github.com/avgx/pion/scheduler"
)

// Handler is the per-connection callback a Server invokes for each
// newly accepted connection and again on every keep-alive or
// pipelined follow-on (spec §4.2's handle_connection).
type Handler func(*Connection)

// Server is pion's TCP acceptor and connection-lifecycle manager
// (spec §4.2), grounded on s00inx-goserver/server/engine/epoll.go's
// accept loop generalized to an arbitrary Handler and onto the shared
// Scheduler's poller instead of a private one.
type Server struct {
	sched   *scheduler.Scheduler
	handle  Handler
	log     *zap.SugaredLogger
	onClose func()

	listenFD int
	laddr    net.Addr

	mu    sync.Mutex
	conns map[int]*Connection
}

// NewServer constructs a Server sharing sched's I/O reactor.
func NewServer(sched *scheduler.Scheduler, handle Handler, log *zap.SugaredLogger) *Server {
	return &Server{
		sched:  sched,
		handle: handle,
		log:    log,
		conns:  make(map[int]*Connection),
	}
}

// Start binds and listens on address, registers the listener with the
// Scheduler, and marks the server as an active user until Stop's
// accept loop has fully drained (spec §4.2: "registers with the
// Scheduler as an active user, begins accept").
func (s *Server) Start(network, address string, reusePort bool) error {
	fd, laddr, err := netpoll.OpenListener(network, address, reusePort)
	if err != nil {
		return err
	}
	s.listenFD = fd
	s.laddr = laddr

	s.sched.AddActiveUser()
	s.sched.Register(fd, s.onAcceptable)
	if err := s.sched.IOHandle().AddRead(fd); err != nil {
		s.sched.Unregister(fd)
		s.sched.RemoveActiveUser()
		return err
	}
	s.sched.Startup()
	return nil
}

// Addr returns the bound listening address.
func (s *Server) Addr() net.Addr { return s.laddr }

func (s *Server) onAcceptable(fd int, _ uint32) error {
	for {
		nfd, remote, err := netpoll.Accept4(s.listenFD)
		if err != nil {
			break
		}
		conn := newConnection(nfd, remote)
		conn.SetFinishHandler(s.finish)

		s.mu.Lock()
		s.conns[nfd] = conn
		s.mu.Unlock()

		// The active request cycle runs with the socket in blocking
		// mode on a pool worker; handle runs synchronously here
		// because we are already on a pool worker (dispatched by the
		// Scheduler for the listening fd's readable event).
		_ = netpoll.SetBlocking(nfd, true)
		s.handle(conn)
	}
	_ = s.sched.IOHandle().ModRead(s.listenFD)
	return nil
}

// finish applies the lifecycle transition recorded on conn (spec §4.2).
func (s *Server) finish(conn *Connection) {
	switch conn.lifecycle {
	case Close:
		s.removeConn(conn)
	case KeepAlive:
		conn.clearBookmark()
		_ = netpoll.SetBlocking(conn.fd, false)
		s.sched.Register(conn.fd, s.onReadable(conn))
		if err := s.sched.IOHandle().AddRead(conn.fd); err != nil {
			// Already in the epoll set from an earlier keep-alive
			// wait: re-arm the one-shot registration instead.
			if err := s.sched.IOHandle().ModRead(conn.fd); err != nil {
				s.removeConn(conn)
			}
		}
	case Pipelined:
		// Bytes of the next request are already in conn.Buffer();
		// re-invoke the handler without waiting on the poller.
		s.handle(conn)
	}
}

// onReadable re-arms an idle keep-alive connection: once readable, it
// switches the socket back to blocking and restarts the request cycle
// on the pool worker that the Scheduler dispatched to.
func (s *Server) onReadable(conn *Connection) netpoll.Callback {
	return func(fd int, _ uint32) error {
		s.sched.Unregister(fd)
		_ = netpoll.SetBlocking(fd, true)
		s.handle(conn)
		return nil
	}
}

func (s *Server) removeConn(conn *Connection) {
	s.sched.Unregister(conn.fd)
	_ = s.sched.IOHandle().Delete(conn.fd)
	s.mu.Lock()
	delete(s.conns, conn.fd)
	s.mu.Unlock()
	_ = conn.Close()
}

// ConnectionCount returns the number of live connections (spec §8
// scenario 2).
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stop closes the acceptor so no further connections are accepted,
// then releases the server's active-user hold. Per spec §4.2's hard
// policy, it does not forcibly close live connections; those close
// themselves (lifecycle Close) or exit via the Scheduler's shutdown
// cancellation of pending reads.
func (s *Server) Stop() error {
	s.sched.Unregister(s.listenFD)
	_ = s.sched.IOHandle().Delete(s.listenFD)
	err := closeFD(s.listenFD)
	s.sched.RemoveActiveUser()
	return err
}
