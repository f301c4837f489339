package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ptyhost/ptyhost/internal/pty"
)

var runFlags struct {
	dir    string
	helper string
	env    []string
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- program [args...]]",
	Short: "Run a program on a new terminal attached to this one",
	Long: `Run starts a program on a new pseudo-terminal, puts the current
terminal in raw mode and forwards input, output and window size changes.
Without a program the configured shell is started. The exit status of
ptyhost is the program's, or 128 plus the signal number.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.dir, "dir", "", "working directory")
	f.StringVar(&runFlags.helper, "helper", "", "pre-exec helper program")
	f.StringArrayVarP(&runFlags.env, "env", "e", nil, "extra KEY=VALUE environment entries")
	rootCmd.AddCommand(runCmd)
}

// exitCode converts an exit status into a shell-style status.
func exitCode(st pty.ExitStatus) int {
	if st.Signaled() {
		return 128 + int(st.Signal)
	}
	if st.Code < 0 {
		return 1
	}
	return st.Code
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	file := cfg.DefaultShell
	if len(args) > 0 {
		file, args = args[0], args[1:]
	}

	env := pty.Environ()
	for _, kv := range runFlags.env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --env entry %q, want KEY=VALUE", kv)
		}
		env[k] = v
	}
	helper := cfg.HelperPath
	if runFlags.helper != "" {
		helper = runFlags.helper
	}

	stdin := int(os.Stdin.Fd())
	interactive := term.IsTerminal(stdin)
	cols, rows := cfg.Cols, cfg.Rows
	if interactive {
		if w, h, err := term.GetSize(stdin); err == nil && w > 0 && h > 0 {
			cols, rows = w, h
		}
	}

	out := os.Stdout
	exitCh := make(chan pty.ExitStatus, 1)
	consumer := pty.ConsumerFunc(func(ev pty.Event) {
		switch ev.Kind {
		case pty.EventData:
			out.Write(ev.Data)
		case pty.EventExit:
			exitCh <- ev.Exit
		}
	})

	sess, err := pty.Spawn(pty.SpawnRequest{
		File:         file,
		Args:         args,
		Env:          env,
		Dir:          runFlags.dir,
		Cols:         cols,
		Rows:         rows,
		UTF8:         true,
		HelperPath:   helper,
		DrainTimeout: cfg.DrainTimeout,
	}, consumer)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"pid": sess.Pid(), "tty": sess.TTYName()})
	log.Debug("program started")

	if interactive {
		state, err := term.MakeRaw(stdin)
		if err != nil {
			sess.Close()
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		defer term.Restore(stdin, state)

		resize := make(chan os.Signal, 1)
		notifyResize(resize)
		defer signal.Stop(resize)
		go func() {
			for range resize {
				if w, h, err := term.GetSize(stdin); err == nil {
					if err := sess.Resize(w, h); err != nil {
						log.WithError(err).Debug("resize failed")
					}
				}
			}
		}()
	}

	go forwardInput(sess, os.Stdin, log)

	st := <-exitCh
	<-sess.Done()
	log.WithField("status", st.String()).Debug("program exited")
	if code := exitCode(st); code != 0 {
		return exitError(code)
	}
	return nil
}

// forwardInput copies r into the session until either side ends.
func forwardInput(sess *pty.Session, r io.Reader, log *logrus.Entry) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := sess.Write(buf[:n]); werr != nil && !errors.Is(werr, io.ErrShortWrite) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("input ended")
			}
			return
		}
	}
}
