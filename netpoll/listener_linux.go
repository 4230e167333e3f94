//go:build linux

package netpoll

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// sockaddrFor converts a resolved TCP address into the unix.Sockaddr
// and address-family pion needs to create the listening socket,
// grounded on shangxiaomi-shpnetpoll/internal/reuseport/tcp.go.
func sockaddrFor(addr *net.TCPAddr) (unix.Sockaddr, int) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	if addr.IP != nil {
		copy(sa.Addr[:], addr.IP.To16())
	}
	return sa, unix.AF_INET6
}

// OpenListener creates a non-blocking listening socket for addr,
// optionally with SO_REUSEPORT set so multiple server instances can
// share one port (shangxiaomi-shpnetpoll/internal/reuseport/tcp.go).
func OpenListener(network, address string, reusePort bool) (fd int, laddr net.Addr, err error) {
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return -1, nil, err
	}
	sockaddr, family := sockaddrFor(tcpAddr)

	fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, os.NewSyscallError("socket", err)
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
		}
	}()

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return -1, nil, os.NewSyscallError("setsockopt", err)
	}
	if reusePort {
		if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return -1, nil, os.NewSyscallError("setsockopt", err)
		}
	}
	if err = unix.Bind(fd, sockaddr); err != nil {
		return -1, nil, os.NewSyscallError("bind", err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return -1, nil, os.NewSyscallError("listen", err)
	}
	// Report the address the kernel actually bound (e.g. the port
	// chosen for ":0"), not the one requested.
	if sa, gerr := unix.Getsockname(fd); gerr == nil {
		if bound := sockaddrToAddr(sa); bound != nil {
			return fd, bound, nil
		}
	}
	return fd, tcpAddr, nil
}

// Accept4 wraps accept4 with SOCK_NONBLOCK|SOCK_CLOEXEC set on the
// returned descriptor, returning (fd, peer address).
func Accept4(listenFD int) (int, net.Addr, error) {
	nfd, sa, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return nfd, sockaddrToAddr(sa), nil
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte{}, v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte{}, v.Addr[:]...), Port: v.Port}
	default:
		return nil
	}
}

// SetBlocking toggles O_NONBLOCK. pion reads/writes a connection's
// active request synchronously on a pool worker (blocking mode) and
// only switches to non-blocking while the connection is idle and
// waiting on the poller for its next keep-alive request.
func SetBlocking(fd int, blocking bool) error {
	return unix.SetNonblock(fd, !blocking)
}
