//go:build linux

// Package tcp implements pion's connection lifecycle (spec §4.2),
// grounded on s00inx-goserver/server/engine's session-arena shape but
// rewritten around a real per-connection handle instead of a session
// keyed by bare fd, and on shangxiaomi-shpnetpoll's epoll idiom for
// the idle/keep-alive rearm path.
package tcp

import (
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

// Lifecycle is the disposition applied to a connection once its
// current message completes (spec §3, §4.2).
type Lifecycle int

const (
	// Close shuts down and removes the connection.
	Close Lifecycle = iota
	// KeepAlive returns the connection to an idle, epoll-driven wait
	// for its next request.
	KeepAlive
	// Pipelined immediately re-invokes the handler because bytes of a
	// follow-on request are already buffered.
	Pipelined
)

// MinReadBufferCap is the minimum read-buffer capacity pion guarantees
// per spec §3 ("read_buffer (fixed capacity >= 8KB)").
const MinReadBufferCap = 8 << 10

// Connection owns one accepted socket, its read buffer, and its
// lifecycle tag. It is reference-counted implicitly by whoever holds
// the pointer; the owning Server also tracks it in its live set for
// ConnectionCount() and is the last reference to release on Close
// (spec §3's "destroyed when the last reference drops AND the socket
// is closed").
type Connection struct {
	fd     int
	remote net.Addr

	buf *bytebufferpool.ByteBuffer

	bookmarkStart, bookmarkEnd int
	hasBookmark                bool

	lifecycle     Lifecycle
	finishHandler func(*Connection)

	writeMu sync.Mutex
	closed  atomic.Bool
}

var bufferPool bytebufferpool.Pool

func newConnection(fd int, remote net.Addr) *Connection {
	b := bufferPool.Get()
	if cap(b.B) < MinReadBufferCap {
		b.B = make([]byte, 0, MinReadBufferCap)
	}
	return &Connection{fd: fd, remote: remote, buf: b, lifecycle: Close}
}

// NewConnection wraps an already-accepted or otherwise connected fd as
// a Connection. Server.Start uses newConnection internally for its own
// accept loop; this exported form lets other packages (custom
// listeners, tests) hand pion an fd from outside that loop.
func NewConnection(fd int, remote net.Addr) *Connection {
	return newConnection(fd, remote)
}

// FD returns the underlying file descriptor, for poller registration.
func (c *Connection) FD() int { return c.fd }

// RemoteAddr is the address the connection was accepted from.
func (c *Connection) RemoteAddr() net.Addr { return c.remote }

// Buffer exposes the connection's pooled read buffer, shared across
// the lifetime of the connection per spec §5's ownership rule: it is
// owned by whichever task currently drives the parser.
func (c *Connection) Buffer() *bytebufferpool.ByteBuffer { return c.buf }

// ReadSome performs a single read into p, translating a zero-byte,
// no-error result into io.EOF as io.Reader implementations do.
func (c *Connection) ReadSome(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Read fills p completely, issuing repeated ReadSome calls, or
// returns an error (including io.EOF) if it cannot.
func (c *Connection) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := c.ReadSome(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			continue
		}
	}
	return total, nil
}

// WriteSome writes bufs in order under the connection's write lock.
// Each buffer is sent with its own write call; there is no single
// writev system call.
func (c *Connection) WriteSome(bufs ...[]byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writev(c.fd, bufs)
}

// writev sends all of bufs, looping over short/partial writes the way
// a blocking vectored write would, since our per-request sends happen
// on a pool worker with the socket in blocking mode.
func writev(fd int, bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		for len(b) > 0 {
			n, err := unix.Write(fd, b)
			if err != nil {
				if err == unix.EAGAIN || err == unix.EINTR {
					continue
				}
				return total, os.NewSyscallError("write", err)
			}
			total += n
			b = b[n:]
		}
	}
	return total, nil
}

// SaveReadPosition records a bookmark (start, end) within Buffer()
// marking unconsumed bytes of a pipelined follow-on message.
func (c *Connection) SaveReadPosition(start, end int) {
	c.bookmarkStart, c.bookmarkEnd = start, end
	c.hasBookmark = true
}

// LoadReadPosition returns the saved bookmark, if any.
func (c *Connection) LoadReadPosition() (start, end int, ok bool) {
	return c.bookmarkStart, c.bookmarkEnd, c.hasBookmark
}

// clearBookmark drops any saved bookmark, e.g. once it has been
// consumed by the next parse cycle.
func (c *Connection) clearBookmark() { c.hasBookmark = false }

// SetLifecycle records the disposition to apply when Finish is called.
func (c *Connection) SetLifecycle(l Lifecycle) { c.lifecycle = l }

// KeepAlive reports whether the connection's lifecycle is KeepAlive.
func (c *Connection) KeepAlive() bool { return c.lifecycle == KeepAlive }

// Pipelined reports whether the connection's lifecycle is Pipelined.
func (c *Connection) Pipelined() bool { return c.lifecycle == Pipelined }

// SetFinishHandler installs the closure invoked when the current
// message is complete and Finish is called.
func (c *Connection) SetFinishHandler(f func(*Connection)) { c.finishHandler = f }

// Finish invokes the connection's finish handler, which applies the
// lifecycle transition recorded via SetLifecycle (spec §4.2).
func (c *Connection) Finish() {
	if c.finishHandler != nil {
		c.finishHandler(c)
	}
}

// Close shuts down the write side, closes the socket, and releases
// the read buffer back to its pool. Safe to call more than once.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = unix.Shutdown(c.fd, unix.SHUT_WR)
	err := unix.Close(c.fd)
	if c.buf != nil {
		bufferPool.Put(c.buf)
		c.buf = nil
	}
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
