//go:build windows

package pty

import (
	"os"
	"sync"
	"unsafe"
)

var (
	procFreeConsole           = kernel32.NewProc("FreeConsole")
	procAttachConsole         = kernel32.NewProc("AttachConsole")
	procGetConsoleProcessList = kernel32.NewProc("GetConsoleProcessList")
	procGetConsoleWindow      = kernel32.NewProc("GetConsoleWindow")

	// The console attachment is process wide.
	consoleMu sync.Mutex
)

const attachParentProcess = ^uintptr(0)

// ConsoleProcessList returns the pids of every process attached to the
// console that pid belongs to, excluding the caller. The calling process
// briefly detaches from its own console and reattaches to its parent's.
func ConsoleProcessList(pid int) ([]int, error) {
	if pid <= 0 {
		return nil, invalidArgument("console list", "invalid pid %d", pid)
	}
	if err := procGetConsoleProcessList.Find(); err != nil {
		return nil, newError("console list", ResourceUnavailable, "GetConsoleProcessList unavailable: ", err)
	}

	consoleMu.Lock()
	defer consoleMu.Unlock()

	hadConsole, _, _ := procGetConsoleWindow.Call()
	procFreeConsole.Call()
	defer func() {
		procFreeConsole.Call()
		if hadConsole != 0 {
			procAttachConsole.Call(attachParentProcess)
		}
	}()

	if r, _, err := procAttachConsole.Call(uintptr(uint32(pid))); r == 0 {
		return nil, newError("console list", IoFailed, "AttachConsole failed: ", err)
	}

	list := make([]uint32, 64)
	for {
		r, _, err := procGetConsoleProcessList.Call(uintptr(unsafe.Pointer(&list[0])), uintptr(len(list)))
		n := int(r)
		if n == 0 {
			return nil, newError("console list", IoFailed, "GetConsoleProcessList failed: ", err)
		}
		if n > len(list) {
			list = make([]uint32, n)
			continue
		}
		list = list[:n]
		break
	}

	self := uint32(os.Getpid())
	pids := make([]int, 0, len(list))
	for _, p := range list {
		if p != self {
			pids = append(pids, int(p))
		}
	}
	return pids, nil
}
