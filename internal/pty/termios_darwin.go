package pty

import "golang.org/x/sys/unix"

const (
	iutf8           = 0x4000
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
)

func setPlatformChars(t *unix.Termios) {
	t.Cc[unix.VDSUSP] = ctrlY
	t.Cc[unix.VSTATUS] = ctrlT
}

func setSpeed(t *unix.Termios) {
	t.Ispeed = unix.B38400
	t.Ospeed = unix.B38400
}
