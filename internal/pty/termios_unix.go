//go:build linux || darwin

package pty

import (
	"os"

	"golang.org/x/sys/unix"
)

// Control characters installed on every new terminal.
const (
	ctrlD     = 4
	ctrlC     = 3
	ctrlBksl  = 0x1c
	ctrlZ     = 26
	ctrlQ     = 17
	ctrlS     = 19
	ctrlV     = 22
	ctrlO     = 15
	ctrlR     = 18
	ctrlW     = 23
	ctrlU     = 21
	ctrlY     = 25
	ctrlT     = 20
	delChar   = 0x7f
	disabledC = 0xff
)

// TerminalConfig is the attribute set applied to a new terminal.
type TerminalConfig struct {
	Termios unix.Termios
	Size    WindowSize
}

// BuildTerminalConfig returns the baseline terminal attributes for a
// cols x rows terminal.
func BuildTerminalConfig(cols, rows int, utf8 bool) (*TerminalConfig, error) {
	size, err := newWindowSize("configure", cols, rows)
	if err != nil {
		return nil, err
	}

	cfg := &TerminalConfig{Size: size}
	t := &cfg.Termios

	t.Iflag = unix.ICRNL | unix.IXON | unix.IXANY | unix.IMAXBEL | unix.BRKINT
	if utf8 {
		t.Iflag |= iutf8
	}
	t.Oflag = unix.OPOST | unix.ONLCR
	t.Cflag = unix.CREAD | unix.CS8 | unix.HUPCL
	t.Lflag = unix.ICANON | unix.ISIG | unix.IEXTEN | unix.ECHO | unix.ECHOE |
		unix.ECHOK | unix.ECHOKE | unix.ECHOCTL

	t.Cc[unix.VEOF] = ctrlD
	t.Cc[unix.VEOL] = disabledC
	t.Cc[unix.VEOL2] = disabledC
	t.Cc[unix.VERASE] = delChar
	t.Cc[unix.VWERASE] = ctrlW
	t.Cc[unix.VKILL] = ctrlU
	t.Cc[unix.VREPRINT] = ctrlR
	t.Cc[unix.VINTR] = ctrlC
	t.Cc[unix.VQUIT] = ctrlBksl
	t.Cc[unix.VSUSP] = ctrlZ
	t.Cc[unix.VSTART] = ctrlQ
	t.Cc[unix.VSTOP] = ctrlS
	t.Cc[unix.VLNEXT] = ctrlV
	t.Cc[unix.VDISCARD] = ctrlO
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	setPlatformChars(t)
	setSpeed(t)

	return cfg, nil
}

// applyTerminalConfig installs cfg on the terminal behind f.
func applyTerminalConfig(f *os.File, cfg *TerminalConfig) error {
	return control(f, func(fd int) error {
		if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &cfg.Termios); err != nil {
			return err
		}
		return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, cfg.Size.winsize())
	})
}

// control runs fn with the raw descriptor of f without switching f to
// blocking mode, which f.Fd() would do.
func control(f *os.File, fn func(fd int) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) {
		opErr = fn(int(fd))
	}); err != nil {
		return err
	}
	return opErr
}

func (w WindowSize) winsize() *unix.Winsize {
	return &unix.Winsize{Col: w.Cols, Row: w.Rows}
}
