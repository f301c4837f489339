//go:build windows

package pty

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procCreatePseudoConsole = kernel32.NewProc("CreatePseudoConsole")
	procResizePseudoConsole = kernel32.NewProc("ResizePseudoConsole")
	procClosePseudoConsole  = kernel32.NewProc("ClosePseudoConsole")

	nextPipe atomic.Uint64
)

const (
	pseudoConsoleInheritCursor = 0x1

	pipeAccessInbound         = 0x00000001
	pipeAccessOutbound        = 0x00000002
	fileFlagFirstPipeInstance = 0x00080000

	// PIPE_TYPE_BYTE | PIPE_READMODE_BYTE | PIPE_WAIT
	pipeModeByteWait = 0x0

	pipeDefaultTimeout = 30000
)

// ConsoleRequest describes a pseudo console to allocate before any
// process is attached.
type ConsoleRequest struct {
	// File names the program that will be attached. Used for diagnostics.
	File string

	Cols int
	Rows int

	// Debug logs the pipe names and console handle at info level.
	Debug bool

	// PipeName is the base name of the pipe pair. Empty generates one.
	PipeName string

	// InheritCursor makes the console start at the parent's cursor position.
	InheritCursor bool

	DrainTimeout time.Duration
}

// ConsoleHandle is the result of SpawnConsole.
type ConsoleHandle struct {
	ID          uint64
	InPipeName  string
	OutPipeName string
	Session     *Session
}

// conptyBackend drives a pseudo console through its named pipe pair.
type conptyBackend struct {
	hpc       windows.Handle
	serverIn  windows.Handle
	serverOut windows.Handle
	inName    string
	outName   string

	mu         sync.Mutex
	in         *os.File
	out        *os.File
	writeReady atomic.Bool

	process windows.Handle
	exited  atomic.Bool
}

func coord(size WindowSize) uintptr {
	return uintptr(uint32(size.Rows)<<16 | uint32(size.Cols))
}

// SpawnConsole creates the pipe pair and the pseudo console and registers
// a Session in the Spawning state. Attach a process with Connect.
func SpawnConsole(req ConsoleRequest, c Consumer) (*ConsoleHandle, error) {
	size, err := newWindowSize("spawn", req.Cols, req.Rows)
	if err != nil {
		return nil, err
	}
	if err := procCreatePseudoConsole.Find(); err != nil {
		return nil, &Error{Op: "spawn", Kind: AllocationFailed, Reason: PseudoConsoleUnavailable,
			Msg: "CreatePseudoConsole not available: ", Err: err}
	}

	name := req.PipeName
	if name == "" {
		name = fmt.Sprintf("conpty-%d-%d", os.Getpid(), nextPipe.Add(1))
	}
	inName := `\\.\pipe\` + name + "-in"
	outName := `\\.\pipe\` + name + "-out"

	serverIn, err := createServerPipe(inName, pipeAccessInbound)
	if err != nil {
		return nil, &Error{Op: "spawn", Kind: AllocationFailed, Reason: PseudoConsoleUnavailable,
			Msg: "CreateNamedPipe failed: ", Err: err}
	}
	serverOut, err := createServerPipe(outName, pipeAccessOutbound)
	if err != nil {
		windows.CloseHandle(serverIn)
		return nil, &Error{Op: "spawn", Kind: AllocationFailed, Reason: PseudoConsoleUnavailable,
			Msg: "CreateNamedPipe failed: ", Err: err}
	}

	var flags uint32
	if req.InheritCursor {
		flags = pseudoConsoleInheritCursor
	}
	var hpc windows.Handle
	ret, _, _ := procCreatePseudoConsole.Call(
		coord(size),
		uintptr(serverIn),
		uintptr(serverOut),
		uintptr(flags),
		uintptr(unsafe.Pointer(&hpc)),
	)
	if ret != 0 {
		windows.CloseHandle(serverIn)
		windows.CloseHandle(serverOut)
		return nil, &Error{Op: "spawn", Kind: AllocationFailed, Reason: PseudoConsoleUnavailable,
			Msg: "CreatePseudoConsole failed: ", Err: fmt.Errorf("HRESULT 0x%08x", uint32(ret))}
	}

	b := &conptyBackend{
		hpc:       hpc,
		serverIn:  serverIn,
		serverOut: serverOut,
		inName:    inName,
		outName:   outName,
	}
	drain := req.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	s := newSession(b, c, sessionOptions{size: size, drainTimeout: drain})
	if req.Debug {
		s.log.WithField("in", inName).WithField("out", outName).WithField("file", req.File).
			Info("pseudo console created")
	}
	return &ConsoleHandle{ID: s.ID(), InPipeName: inName, OutPipeName: outName, Session: s}, nil
}

// Spawn allocates a pseudo console and attaches req.File to it.
func Spawn(req SpawnRequest, c Consumer) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	h, err := SpawnConsole(ConsoleRequest{
		File:         req.File,
		Cols:         req.Cols,
		Rows:         req.Rows,
		DrainTimeout: req.DrainTimeout,
	}, c)
	if err != nil {
		return nil, err
	}
	if _, err := Connect(h.ID, req.File, req.Args, req.Dir, req.Env); err != nil {
		h.Session.Close()
		return nil, err
	}
	return h.Session, nil
}

func createServerPipe(name string, access uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return windows.InvalidHandle, err
	}
	sa := &windows.SecurityAttributes{}
	sa.Length = uint32(unsafe.Sizeof(*sa))
	return windows.CreateNamedPipe(p, access|fileFlagFirstPipeInstance, pipeModeByteWait,
		1, 0, 0, pipeDefaultTimeout, sa)
}

func openClientPipe(name string, access uint32) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(p, access, 0, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(h), name), nil
}

func connectServerPipe(h windows.Handle) error {
	err := windows.ConnectNamedPipe(h, nil)
	if err == nil || errors.Is(err, windows.ERROR_PIPE_CONNECTED) {
		return nil
	}
	return err
}

// connectPipes opens our ends of both pipes and waits for the server side
// to accept them. Writes are accepted from here on.
func (b *conptyBackend) connectPipes() error {
	in, err := openClientPipe(b.inName, windows.GENERIC_WRITE)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.inName, err)
	}
	if err := connectServerPipe(b.serverIn); err != nil {
		in.Close()
		return fmt.Errorf("connect %s: %w", b.inName, err)
	}
	out, err := openClientPipe(b.outName, windows.GENERIC_READ)
	if err != nil {
		in.Close()
		return fmt.Errorf("open %s: %w", b.outName, err)
	}
	if err := connectServerPipe(b.serverOut); err != nil {
		in.Close()
		out.Close()
		return fmt.Errorf("connect %s: %w", b.outName, err)
	}

	b.mu.Lock()
	b.in, b.out = in, out
	b.mu.Unlock()
	b.writeReady.Store(true)
	return nil
}

func (b *conptyBackend) Read(p []byte) (int, error) {
	b.mu.Lock()
	out := b.out
	b.mu.Unlock()
	if out == nil {
		return 0, os.ErrClosed
	}
	return out.Read(p)
}

func (b *conptyBackend) Write(p []byte) (int, error) {
	if !b.writeReady.Load() {
		return 0, errWouldBlock
	}
	b.mu.Lock()
	in := b.in
	b.mu.Unlock()
	if in == nil {
		return 0, os.ErrClosed
	}
	return in.Write(p)
}

func (b *conptyBackend) Resize(size WindowSize) error {
	ret, _, _ := procResizePseudoConsole.Call(uintptr(b.hpc), coord(size))
	if ret != 0 {
		return newError("resize", IoFailed, "ResizePseudoConsole failed: ", fmt.Errorf("HRESULT 0x%08x", uint32(ret)))
	}
	return nil
}

func (b *conptyBackend) Signal(sig syscall.Signal) error {
	if sig != syscall.SIGKILL && sig != syscall.SIGTERM {
		return invalidArgument("signal", "signal %d is not supported on Windows", int(sig))
	}
	if b.process == 0 || b.exited.Load() {
		return closedError("signal")
	}
	if err := windows.TerminateProcess(b.process, 1); err != nil {
		return newError("signal", IoFailed, "TerminateProcess failed: ", err)
	}
	return nil
}

func (b *conptyBackend) SetFlowControl(paused bool) error {
	return &Error{Kind: InvalidArgument, Msg: "flow control is not supported by pseudo consoles"}
}

// Wait blocks on the process handle and releases it.
func (b *conptyBackend) Wait() (ExitStatus, error) {
	defer b.exited.Store(true)

	if _, err := windows.WaitForSingleObject(b.process, windows.INFINITE); err != nil {
		return ExitStatus{}, err
	}
	var code uint32
	err := windows.GetExitCodeProcess(b.process, &code)
	windows.CloseHandle(b.process)
	if err != nil {
		return ExitStatus{}, err
	}
	return ExitStatus{Code: int(code)}, nil
}

func (b *conptyBackend) Hangup() {}

// Close shuts the pseudo console down first so a pending read on the
// output pipe returns.
func (b *conptyBackend) Close() error {
	b.writeReady.Store(false)
	procClosePseudoConsole.Call(uintptr(b.hpc))

	b.mu.Lock()
	in, out := b.in, b.out
	b.in, b.out = nil, nil
	b.mu.Unlock()

	var firstErr error
	for _, f := range []*os.File{in, out} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	windows.CloseHandle(b.serverIn)
	windows.CloseHandle(b.serverOut)
	return firstErr
}
