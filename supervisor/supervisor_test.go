// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aleister1102/flareprox/log"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	return New(filepath.Join(t.TempDir(), DefaultPIDFile), log.NopLogger)
}

func TestStatusNoMarker(t *testing.T) {
	s := newTestSupervisor(t)

	state, pid, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if state != NotRunning || pid != 0 {
		t.Errorf("got %s pid=%d, want %s pid=0", state, pid, NotRunning)
	}
}

func TestStatusRunning(t *testing.T) {
	s := newTestSupervisor(t)
	if err := s.WritePID(os.Getpid()); err != nil {
		t.Fatal(err)
	}

	state, pid, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if state != Running {
		t.Errorf("got %s, want %s", state, Running)
	}
	if pid != os.Getpid() {
		t.Errorf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestStatusStale(t *testing.T) {
	s := newTestSupervisor(t)
	// Way beyond the kernel's PID range, guaranteed gone.
	if err := s.WritePID(1 << 30); err != nil {
		t.Fatal(err)
	}

	state, _, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if state != Stale {
		t.Errorf("got %s, want %s", state, Stale)
	}
}

func TestStopNoMarker(t *testing.T) {
	s := newTestSupervisor(t)

	pid, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop() without marker = %v, want nil", err)
	}
	if pid != 0 {
		t.Errorf("got pid %d, want 0", pid)
	}
}

func TestStopStaleMarker(t *testing.T) {
	s := newTestSupervisor(t)
	if err := s.WritePID(1 << 30); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	state, _, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if state != NotRunning {
		t.Errorf("got %s after Stop, want marker removed", state)
	}
}

func TestStopRunningProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGTERM delivery is not supported on windows")
	}

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	s := newTestSupervisor(t)
	if err := s.WritePID(cmd.Process.Pid); err != nil {
		t.Fatal(err)
	}

	pid, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if pid != cmd.Process.Pid {
		t.Errorf("got pid %d, want %d", pid, cmd.Process.Pid)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait() //nolint:errcheck // killed by signal
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Stop")
	}

	state, _, err := s.Status()
	if err != nil {
		t.Fatal(err)
	}
	if state != NotRunning {
		t.Errorf("got %s after Stop, want marker removed", state)
	}
}

func TestPIDFileCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPIDFile)
	if err := os.WriteFile(path, []byte("not a pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path, log.NopLogger)
	if _, err := s.ReadPID(); err == nil {
		t.Fatal("expected parse error")
	}
}
