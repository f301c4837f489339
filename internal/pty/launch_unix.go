//go:build linux || darwin

package pty

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Spawn starts req.File on a new terminal. On error every descriptor
// acquired along the way has been released and no Session exists.
func Spawn(req SpawnRequest, c Consumer) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	cfg, err := BuildTerminalConfig(req.Cols, req.Rows, req.UTF8)
	if err != nil {
		return nil, err
	}

	env := req.Env
	if env == nil {
		env = Environ()
	}
	envv, err := EnvBlock(env)
	if err != nil {
		return nil, err
	}

	// Resolve the program before any descriptor is opened.
	path := req.File
	if req.HelperPath == "" {
		if path, err = lookPath(req.File, env); err != nil {
			errno := Errno(err)
			if errno == 0 {
				errno = syscall.ENOENT
			}
			return nil, spawnError(ExecFailed, "exec() failed: ", errno)
		}
	}

	master, slave, err := openTerminal(cfg)
	if err != nil {
		return nil, err
	}
	ttyName := slave.Name()

	var proc *os.Process
	if req.HelperPath != "" {
		proc, err = startHelper(&req, envv, slave)
	} else {
		proc, err = startDirect(&req, path, envv, slave)
	}
	slave.Close()
	if err != nil {
		master.Close()
		return nil, err
	}

	s := newSession(&posixBackend{master: master, proc: proc}, c, sessionOptions{
		ttyName:      ttyName,
		size:         cfg.Size,
		drainTimeout: req.drainTimeout(),
	})
	if err := s.start(proc.Pid); err != nil {
		s.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"session": s.ID(),
		"pid":     proc.Pid,
		"tty":     ttyName,
	}).Debug("spawned")
	return s, nil
}

// startDirect forks path with the slave as its controlling terminal.
func startDirect(req *SpawnRequest, path string, env []string, slave *os.File) (*os.Process, error) {
	if req.Dir != "" {
		st, err := os.Stat(req.Dir)
		if err != nil {
			return nil, spawnError(ChdirFailed, "chdir() failed: ", errnoOr(err))
		}
		if !st.IsDir() {
			return nil, spawnError(ChdirFailed, "chdir() failed: ", syscall.ENOTDIR)
		}
	}

	sys := &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0}
	if req.Credential != nil {
		sys.Credential = credential(req.Credential)
	}
	attr := &os.ProcAttr{
		Dir:   req.Dir,
		Env:   env,
		Files: []*os.File{slave, slave, slave},
		Sys:   sys,
	}
	argv := append([]string{req.File}, req.Args...)

	proc, err := os.StartProcess(path, argv, attr)
	if err != nil {
		errno := errnoOr(err)
		if req.Credential != nil && errors.Is(errno, syscall.EPERM) {
			return nil, spawnError(SetuidFailed, "setuid() failed: ", errno)
		}
		return nil, spawnError(ExecFailed, "exec() failed: ", errno)
	}
	return proc, nil
}

// startHelper forks the helper, which changes directory and credentials
// before exec'ing req.File. Failures come back over the control pipe.
func startHelper(req *SpawnRequest, env []string, slave *os.File) (*os.Process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, spawnError(SpawnAPIFailed, "pipe() failed: ", err)
	}
	defer r.Close()

	files := make([]*os.File, HelperControlFD+1)
	files[0], files[1], files[2] = slave, slave, slave
	files[HelperControlFD] = w

	uid, gid := req.uidGid()
	argv := HelperArgs(req.HelperPath, req.Dir, uid, gid, req.CloseFDs, req.File, req.Args)
	attr := &os.ProcAttr{
		Env:   env,
		Files: files,
		Sys:   &syscall.SysProcAttr{Setsid: true, Setctty: true, Ctty: 0},
	}

	// The runtime resets signal handling in the child; the mask of this
	// thread must not be changed around the fork or the child inherits it.
	proc, err := os.StartProcess(req.HelperPath, argv, attr)
	w.Close()
	if err != nil {
		return nil, spawnError(SpawnAPIFailed, "posix_spawn failed: ", errnoOr(err))
	}

	if req.HelperTimeout > 0 {
		r.SetReadDeadline(time.Now().Add(req.HelperTimeout))
	}
	stage, errno, failed, err := readHelperReport(r)
	if err != nil {
		reap(proc)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, spawnError(SpawnAPIFailed, "helper did not report: ", err)
		}
		return nil, spawnError(SpawnAPIFailed, "reading helper report failed: ", err)
	}
	if failed {
		reap(proc)
		return nil, spawnError(stage.reason(), stage.message(), errno)
	}
	return proc, nil
}

// lookPath resolves file against the PATH the child will run with.
func lookPath(file string, env map[string]string) (string, error) {
	pathList, ok := env["PATH"]
	if !ok || strings.Contains(file, "/") {
		return exec.LookPath(file)
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() && st.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", &exec.Error{Name: file, Err: syscall.ENOENT}
}

func reap(proc *os.Process) {
	proc.Kill()
	proc.Wait()
}

func credential(c *Credential) *syscall.Credential {
	uid, gid := c.UID, c.GID
	if uid < 0 {
		uid = os.Getuid()
	}
	if gid < 0 {
		gid = os.Getgid()
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid), NoSetGroups: true}
}

// errnoOr returns the errno inside err, or err itself when there is none.
func errnoOr(err error) error {
	if errno := Errno(err); errno != 0 {
		return errno
	}
	return err
}
