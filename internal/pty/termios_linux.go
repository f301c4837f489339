package pty

import "golang.org/x/sys/unix"

const (
	iutf8           = unix.IUTF8
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

func setPlatformChars(t *unix.Termios) {}

func setSpeed(t *unix.Termios) {
	t.Cflag &^= unix.CBAUD
	t.Cflag |= unix.B38400
	t.Ispeed = unix.B38400
	t.Ospeed = unix.B38400
}
