//go:build linux || darwin

package pty

import (
	"errors"
	"os"

	ptylib "github.com/creack/pty"
)

// openTerminal allocates a master/slave pair and configures the slave.
// On error nothing is left open.
func openTerminal(cfg *TerminalConfig) (master, slave *os.File, err error) {
	master, slave, err = ptylib.Open()
	if errors.Is(err, ptylib.ErrUnsupported) {
		log.Debug("pty.Open unsupported, falling back to /dev/ptmx")
		master, slave, err = openPtmx()
	}
	if err != nil {
		return nil, nil, &Error{Op: "openpty", Kind: AllocationFailed, Msg: "openpty() failed: ", Err: err}
	}

	if err := applyTerminalConfig(slave, cfg); err != nil {
		slave.Close()
		master.Close()
		return nil, nil, &Error{Op: "openpty", Kind: AllocationFailed, Msg: "tcsetattr failed: ", Err: err}
	}
	return master, slave, nil
}
