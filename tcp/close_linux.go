//go:build linux

package tcp

import (
	"os"

	"golang.org/x/sys/unix"
)

func closeFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
