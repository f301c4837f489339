package pty

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"syscall"
)

// HelperControlFD is the descriptor number at which the helper finds the
// write end of the control pipe.
const HelperControlFD = 42

// Stage identifies the step at which the helper failed.
type Stage int32

const (
	StageExec   Stage = 1
	StageChdir  Stage = 2
	StageSetuid Stage = 3
	StageSetgid Stage = 4
)

// helperReportSize is two C ints.
const helperReportSize = 8

func (s Stage) reason() Reason {
	switch s {
	case StageChdir:
		return ChdirFailed
	case StageSetuid:
		return SetuidFailed
	case StageSetgid:
		return SetgidFailed
	default:
		return ExecFailed
	}
}

func (s Stage) message() string {
	switch s {
	case StageChdir:
		return "chdir() failed: "
	case StageSetuid:
		return "setuid() failed: "
	case StageSetgid:
		return "setgid() failed: "
	default:
		return "exec() failed: "
	}
}

// HelperArgs builds the helper argv:
// [helper, cwd, uid, gid, closeFDs, file, args...].
func HelperArgs(helper, dir string, uid, gid int, closeFDs bool, file string, args []string) []string {
	flag := "0"
	if closeFDs {
		flag = "1"
	}
	argv := make([]string, 0, 6+len(args))
	argv = append(argv, helper, dir, strconv.Itoa(uid), strconv.Itoa(gid), flag, file)
	return append(argv, args...)
}

// WriteHelperReport writes a (stage, errno) failure report in the helper's
// wire format: two native-endian int32 values.
func WriteHelperReport(w io.Writer, stage Stage, errno syscall.Errno) error {
	var buf [helperReportSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], uint32(stage))
	binary.NativeEndian.PutUint32(buf[4:8], uint32(int32(errno)))
	_, err := w.Write(buf[:])
	return err
}

// readHelperReport reads the control pipe until EOF. A clean EOF with no
// bytes means the helper exec'd successfully (failed == false).
func readHelperReport(r io.Reader) (stage Stage, errno syscall.Errno, failed bool, err error) {
	var buf [helperReportSize]byte
	n, err := io.ReadFull(r, buf[:])
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return 0, 0, false, nil
	case err != nil:
		return 0, 0, false, err
	}
	stage = Stage(int32(binary.NativeEndian.Uint32(buf[0:4])))
	errno = syscall.Errno(int32(binary.NativeEndian.Uint32(buf[4:8])))
	return stage, errno, true, nil
}
