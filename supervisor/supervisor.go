// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package supervisor manages a detached server process through a PID
// marker file. It starts the server as a child of init, probes its
// liveness through the process table and stops it with SIGTERM.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	ps "github.com/mitchellh/go-ps"

	"github.com/aleister1102/flareprox/log"
)

// State describes the supervised process as seen through the marker file
// and the process table.
type State int

const (
	// NotRunning means there is no marker file.
	NotRunning State = iota
	// Running means the marker file points at a live process.
	Running
	// Stale means the marker file points at a process that is gone.
	Stale
)

func (s State) String() string {
	return [3]string{"not running", "running", "stale"}[s]
}

type Supervisor struct {
	pidFile string
	log     log.Logger
}

func New(pidFile string, log log.Logger) *Supervisor {
	return &Supervisor{
		pidFile: pidFile,
		log:     log,
	}
}

// Status reports the server state and, when a marker file exists, the
// PID it holds. Liveness is probed through the process table rather
// than by signaling, signal delivery semantics differ across platforms.
func (s *Supervisor) Status() (State, int, error) {
	pid, err := s.ReadPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NotRunning, 0, nil
		}
		return NotRunning, 0, err
	}

	alive, err := processAlive(pid)
	if err != nil {
		return NotRunning, pid, err
	}
	if !alive {
		return Stale, pid, nil
	}
	return Running, pid, nil
}

// StartDetached re-executes the current binary with the given arguments
// as a detached child and records its PID in the marker file.
// It refuses to start when the marker points at a live process.
func (s *Supervisor) StartDetached(args []string, stdout, stderr *os.File) (int, error) {
	state, pid, err := s.Status()
	if err != nil {
		return 0, err
	}
	if state == Running {
		return pid, fmt.Errorf("server already running with PID %d", pid)
	}
	if state == Stale {
		s.log.Debugf("removing stale PID file for process %d", pid)
		if err := s.RemovePID(); err != nil {
			return 0, err
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(exe, args...) //nolint:gosec // re-exec of self
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = detachedSysProcAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start detached server: %w", err)
	}

	pid = cmd.Process.Pid
	if err := s.WritePID(pid); err != nil {
		cmd.Process.Kill() //nolint:errcheck // no marker, kill the orphan
		return 0, err
	}
	// The child is detached, reaping is left to init.
	cmd.Process.Release() //nolint:errcheck // detached

	return pid, nil
}

// Stop terminates the supervised process with SIGTERM and removes the
// marker file. A missing marker means the server is not running and is
// not an error. The marker is removed even when signaling fails, a
// dead target must not wedge subsequent starts.
func (s *Supervisor) Stop() (int, error) {
	pid, err := s.ReadPID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	alive, err := processAlive(pid)
	if err == nil && !alive {
		s.log.Debugf("process %d already gone, removing stale PID file", pid)
		return pid, s.RemovePID()
	}

	serr := signalTerm(pid)
	if rerr := s.RemovePID(); serr == nil {
		serr = rerr
	}
	return pid, serr
}

func processAlive(pid int) (bool, error) {
	p, err := ps.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("probe process %d: %w", pid, err)
	}
	return p != nil, nil
}

func signalTerm(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}
