//go:build linux

// Package netpoll wraps Linux epoll as the shared asynchronous I/O
// reactor behind the Scheduler (spec §4.1), in the idiom of
// shangxiaomi-shpnetpoll/internal/netpoll/epoll.go but built on
// golang.org/x/sys/unix instead of the bare syscall package, and with
// s00inx-goserver's EPOLLONESHOT per-connection rearming folded in.
package netpoll

import (
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// ReadEvents is the event mask used to arm a descriptor for
	// one-shot readability notifications.
	ReadEvents = unix.EPOLLPRI | unix.EPOLLIN | unix.EPOLLONESHOT
	// WriteEvents arms a descriptor for one-shot writability.
	WriteEvents = unix.EPOLLOUT | unix.EPOLLONESHOT
)

// Poller owns one epoll instance and the eventfd used to wake it for
// posted tasks, mirroring pion's single shared I/O reactor.
type Poller struct {
	fd      int
	wakeFD  int
	wakeBuf [8]byte
	woken   int32
	tasks   taskQueue
	closed  atomic.Bool
}

// Open creates a new epoll instance with its wake descriptor armed.
func Open() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &Poller{fd: fd, wakeFD: wakeFD}
	if err := unix.EpollCtl(fd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Fd:     int32(wakeFD),
		Events: unix.EPOLLIN,
	}); err != nil {
		_ = unix.Close(wakeFD)
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return p, nil
}

// Close releases both descriptors. Safe to call more than once; calls
// after the first are no-ops.
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err1 := unix.Close(p.wakeFD)
	err2 := unix.Close(p.fd)
	if err1 != nil {
		return os.NewSyscallError("close", err1)
	}
	if err2 != nil {
		return os.NewSyscallError("close", err2)
	}
	return nil
}

// AddRead registers fd for one-shot readable notification.
func (p *Poller) AddRead(fd int) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: ReadEvents}))
}

// ModRead re-arms fd for one-shot readable notification after an
// EPOLLONESHOT delivery (keep-alive rearm, spec §4.2).
func (p *Poller) ModRead(fd int) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: ReadEvents}))
}

// ModWrite re-arms fd for one-shot writable notification.
func (p *Poller) ModWrite(fd int) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: WriteEvents}))
}

// Delete removes fd from the poller (called on connection close).
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

var wakeVal = func() [8]byte {
	var b [8]byte
	*(*uint64)(unsafe.Pointer(&b[0])) = 1
	return b
}()

// Post enqueues task and wakes the poller if it is currently blocked
// in Polling. This is the Scheduler's post(task) primitive (spec §4.1).
func (p *Poller) Post(t Task) error {
	p.tasks.enqueue(t)
	if atomic.CompareAndSwapInt32(&p.woken, 0, 1) {
		_, err := unix.Write(p.wakeFD, wakeVal[:])
		if err != nil && err != unix.EAGAIN {
			return os.NewSyscallError("write", err)
		}
	}
	return nil
}

// Callback is invoked once per ready descriptor with its event mask.
type Callback func(fd int, events uint32) error

// ErrStop, returned by a Callback or posted Task, tells Polling to
// return cleanly (used by Scheduler.shutdown).
var ErrStop = stopError{}

type stopError struct{}

func (stopError) Error() string { return "netpoll: stop requested" }

// Polling blocks the calling goroutine, invoking cb for every ready
// descriptor and draining posted tasks after each wakeup, until cb or
// a task returns ErrStop or a non-nil error.
func (p *Poller) Polling(cb Callback) error {
	events := make([]unix.EpollEvent, 128)
	for {
		n, err := unix.EpollWait(p.fd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return os.NewSyscallError("epoll_wait", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wakeFD {
				_, _ = unix.Read(p.wakeFD, p.wakeBuf[:])
				atomic.StoreInt32(&p.woken, 0)
				for _, t := range p.tasks.drain() {
					if err := t(); err != nil {
						return err
					}
				}
				continue
			}
			if err := cb(fd, events[i].Events); err != nil {
				return err
			}
		}

		if n == len(events) {
			events = make([]unix.EpollEvent, len(events)*2)
		}
	}
}
