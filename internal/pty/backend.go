package pty

import (
	"errors"
	"syscall"
)

// backend is the platform half of a Session: a POSIX master descriptor
// plus child pid, or a pseudo console with its pipe pair and process handle.
type backend interface {
	// Read blocks until terminal output is available.
	Read(p []byte) (int, error)

	// Write makes a single write attempt. It returns errWouldBlock (or
	// EAGAIN/EINTR) when no progress could be made right now.
	Write(p []byte) (int, error)

	// Resize applies a new window size.
	Resize(size WindowSize) error

	// Signal delivers sig to the child.
	Signal(sig syscall.Signal) error

	// SetFlowControl toggles software flow control on the terminal.
	SetFlowControl(paused bool) error

	// Wait blocks until the child terminates and reaps it.
	Wait() (ExitStatus, error)

	// Hangup tells a still running child that its terminal went away.
	Hangup()

	// Close releases the master side. It is called at most once.
	Close() error
}

var errWouldBlock = errors.New("write would block")

func isTemporary(err error) bool {
	return errors.Is(err, errWouldBlock) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINTR)
}
