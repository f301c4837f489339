//go:build windows

package pty

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Connect starts file inside the pseudo console registered under id and
// returns the child pid. A nil env inherits the current environment.
func Connect(id uint64, file string, args []string, dir string, env map[string]string) (int, error) {
	s, ok := Lookup(id)
	if !ok {
		return 0, newError("connect", ResourceUnavailable, "invalid pty handle", nil)
	}
	b, ok := s.backend.(*conptyBackend)
	if !ok || s.State() != StateSpawning {
		return 0, newError("connect", ResourceUnavailable, "pty handle is not waiting for a process", nil)
	}
	if file == "" {
		return 0, invalidArgument("connect", "file must not be empty")
	}

	path, err := resolveExecutable(file, os.Getenv("PATH"))
	if err != nil {
		return 0, err
	}

	if env == nil {
		env = Environ()
	}
	block, err := EnvBlockUTF16(env)
	if err != nil {
		return 0, err
	}
	cmdline, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(append([]string{path}, args...)))
	if err != nil {
		return 0, invalidArgument("connect", "invalid command line: %v", err)
	}
	var cwd *uint16
	if dir != "" {
		if cwd, err = windows.UTF16PtrFromString(dir); err != nil {
			return 0, invalidArgument("connect", "invalid directory: %v", err)
		}
	}

	if err := b.connectPipes(); err != nil {
		return 0, newError("connect", IoFailed, "failed to connect pipes: ", err)
	}

	attrs, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return 0, spawnError(SpawnAPIFailed, "InitializeProcThreadAttributeList failed: ", err)
	}
	defer attrs.Delete()
	if err := attrs.Update(windows.PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE, unsafe.Pointer(b.hpc), unsafe.Sizeof(b.hpc)); err != nil {
		return 0, spawnError(SpawnAPIFailed, "UpdateProcThreadAttribute failed: ", err)
	}

	si := &windows.StartupInfoEx{ProcThreadAttributeList: attrs.List()}
	si.Cb = uint32(unsafe.Sizeof(*si))
	si.Flags = windows.STARTF_USESTDHANDLES

	var pi windows.ProcessInformation
	err = windows.CreateProcess(nil, cmdline, nil, nil, false,
		windows.EXTENDED_STARTUPINFO_PRESENT|windows.CREATE_UNICODE_ENVIRONMENT,
		&block[0], cwd, &si.StartupInfo, &pi)
	if err != nil {
		return 0, spawnError(SpawnAPIFailed, "Cannot create process: ", err)
	}
	windows.CloseHandle(pi.Thread)

	b.process = pi.Process
	pid := int(pi.ProcessId)
	if err := s.start(pid); err != nil {
		windows.TerminateProcess(pi.Process, 1)
		windows.CloseHandle(pi.Process)
		return 0, err
	}
	s.log.WithField("pid", pid).WithField("file", path).Debug("connected")
	return pid, nil
}
