package pty

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openPtmx opens a master/slave pair through /dev/ptmx directly.
// The master is opened non-blocking so it is served by the runtime poller.
func openPtmx() (master, slave *os.File, err error) {
	fd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open /dev/ptmx: %w", err)
	}

	// Unlock the slave
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("failed to unlock PTY: %w", err)
	}

	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("failed to get slave name: %w", err)
	}
	name := fmt.Sprintf("/dev/pts/%d", n)

	master = os.NewFile(uintptr(fd), "/dev/ptmx")
	slave, err = os.OpenFile(name, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		master.Close()
		return nil, nil, fmt.Errorf("failed to open slave PTY: %w", err)
	}
	return master, slave, nil
}
