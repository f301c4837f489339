package pty

import (
	"bytes"
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestHelperArgs(t *testing.T) {
	got := HelperArgs("/usr/libexec/helper", "/tmp", 1000, -1, true, "sh", []string{"-c", "true"})
	want := []string{"/usr/libexec/helper", "/tmp", "1000", "-1", "1", "sh", "-c", "true"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}

	noClose := HelperArgs("h", "", -1, -1, false, "ls", nil)
	if noClose[4] != "0" || len(noClose) != 6 {
		t.Errorf("Expected close flag 0 and no extra args, got %v", noClose)
	}
}

func TestHelperReportSuccessOnEOF(t *testing.T) {
	_, _, failed, err := readHelperReport(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if failed {
		t.Error("Expected clean EOF to mean success")
	}
}

func TestHelperReportTruncated(t *testing.T) {
	_, _, _, err := readHelperReport(bytes.NewReader([]byte{1, 0, 0}))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestHelperReportRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("written reports are read back unchanged", prop.ForAll(
		func(stage int, errno int) bool {
			var buf bytes.Buffer
			if err := WriteHelperReport(&buf, Stage(stage), syscall.Errno(errno)); err != nil {
				return false
			}
			gotStage, gotErrno, failed, err := readHelperReport(&buf)
			return err == nil && failed && gotStage == Stage(stage) && gotErrno == syscall.Errno(errno)
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 133),
	))

	properties.TestingRun(t)
}

func TestStageMapping(t *testing.T) {
	tests := []struct {
		stage  Stage
		reason Reason
		msg    string
	}{
		{StageExec, ExecFailed, "exec() failed: "},
		{StageChdir, ChdirFailed, "chdir() failed: "},
		{StageSetuid, SetuidFailed, "setuid() failed: "},
		{StageSetgid, SetgidFailed, "setgid() failed: "},
		{Stage(99), ExecFailed, "exec() failed: "},
	}

	for _, tt := range tests {
		if got := tt.stage.reason(); got != tt.reason {
			t.Errorf("stage %d: expected reason %s, got %s", tt.stage, tt.reason, got)
		}
		if got := tt.stage.message(); got != tt.msg {
			t.Errorf("stage %d: expected message %q, got %q", tt.stage, tt.msg, got)
		}
	}
}
