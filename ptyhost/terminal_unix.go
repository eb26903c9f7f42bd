//go:build !windows

package ptyhost

import (
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

type unixTerminal struct {
	master *os.File
	cmd    *exec.Cmd
	exited chan struct{}
	once   sync.Once
}

// StartTerminal launches cmd on a new pseudo-terminal.
func StartTerminal(c Command) (Terminal, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: c.Rows, Cols: c.Cols})
	if err != nil {
		return nil, err
	}

	t := &unixTerminal{
		master: master,
		cmd:    cmd,
		exited: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(t.exited)
	}()
	return t, nil
}

func (t *unixTerminal) Read(p []byte) (int, error) {
	return t.master.Read(p)
}

func (t *unixTerminal) Write(p []byte) (int, error) {
	return t.master.Write(p)
}

func (t *unixTerminal) Resize(rows, cols uint16) error {
	return pty.Setsize(t.master, &pty.Winsize{Rows: rows, Cols: cols})
}

func (t *unixTerminal) Terminate() error {
	var err error
	t.once.Do(func() {
		select {
		case <-t.exited:
		default:
			if kerr := t.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = kerr
			}
		}
		if cerr := t.master.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
