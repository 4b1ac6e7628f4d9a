// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPIDFile is the marker file recording the detached server's PID.
// It is resolved relative to the working directory the commands run in.
const DefaultPIDFile = "flareprox_server.pid"

// ReadPID reads the PID from the marker file. A missing file is
// reported as os.ErrNotExist.
func (s *Supervisor) ReadPID() (int, error) {
	b, err := os.ReadFile(s.pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse PID file %s: %w", s.pidFile, err)
	}
	return pid, nil
}

func (s *Supervisor) WritePID(pid int) error {
	return os.WriteFile(s.pidFile, []byte(strconv.Itoa(pid)+"\n"), 0o644) //nolint:gosec // world readable marker
}

// RemovePID deletes the marker file, tolerating it already being gone.
func (s *Supervisor) RemovePID() error {
	if err := os.Remove(s.pidFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
