//go:build linux || darwin

package pty

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"

	ptylib "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// posixBackend drives a master descriptor and a forked child.
type posixBackend struct {
	master *os.File
	proc   *os.Process
	exited atomic.Bool
}

func (b *posixBackend) Read(p []byte) (int, error) {
	return b.master.Read(p)
}

// Write issues one non-blocking write(2). It does not park on the poller,
// so a full terminal buffer surfaces as EAGAIN.
func (b *posixBackend) Write(p []byte) (int, error) {
	rc, err := b.master.SyscallConn()
	if err != nil {
		return 0, err
	}
	var n int
	var werr error
	if err := rc.Write(func(fd uintptr) bool {
		n, werr = unix.Write(int(fd), p)
		return true
	}); err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, werr
}

func (b *posixBackend) Resize(size WindowSize) error {
	err := ptylib.Setsize(b.master, &ptylib.Winsize{Rows: size.Rows, Cols: size.Cols})
	if err == nil {
		return nil
	}
	msg := "ioctl(2) failed: "
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name := unix.ErrnoName(errno); name != "" {
			msg = "ioctl(2) failed, " + name + ": "
		}
	}
	return newError("resize", IoFailed, msg, err)
}

func (b *posixBackend) Signal(sig syscall.Signal) error {
	if err := b.proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return closedError("signal")
		}
		return newError("signal", IoFailed, "kill failed: ", err)
	}
	return nil
}

func (b *posixBackend) SetFlowControl(paused bool) error {
	err := control(b.master, func(fd int) error {
		t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
		if err != nil {
			return &Error{Kind: IoFailed, Msg: "tcgetattr failed: ", Err: err}
		}
		if paused {
			t.Iflag |= unix.IXON | unix.IXOFF
		} else {
			t.Iflag &^= unix.IXON | unix.IXOFF
		}
		if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
			return &Error{Kind: IoFailed, Msg: "tcsetattr failed: ", Err: err}
		}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return e
		}
		return &Error{Kind: IoFailed, Msg: "tcgetattr failed: ", Err: err}
	}
	return nil
}

func (b *posixBackend) Wait() (ExitStatus, error) {
	state, err := b.proc.Wait()
	b.exited.Store(true)
	if err != nil {
		return ExitStatus{}, err
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Code: state.ExitCode()}, nil
	}
	if ws.Signaled() {
		return ExitStatus{Signal: ws.Signal()}, nil
	}
	return ExitStatus{Code: ws.ExitStatus()}, nil
}

func (b *posixBackend) Hangup() {
	if b.exited.Load() {
		return
	}
	b.proc.Signal(syscall.SIGHUP)
}

func (b *posixBackend) Close() error {
	return b.master.Close()
}
