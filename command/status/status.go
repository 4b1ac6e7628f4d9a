// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package status

import (
	"github.com/spf13/cobra"

	"github.com/aleister1102/flareprox/log"
	"github.com/aleister1102/flareprox/log/stdlog"
	"github.com/aleister1102/flareprox/supervisor"
)

type command struct {
	pidFile   string
	logConfig *log.Config
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	sv := supervisor.New(c.pidFile, stdlog.New(c.logConfig))

	state, pid, err := sv.Status()
	if err != nil {
		return err
	}

	switch state {
	case supervisor.Running:
		cmd.Printf("server is running with PID %d\n", pid)
	case supervisor.Stale:
		cmd.Printf("server is not running, stale PID file points at %d\n", pid)
	case supervisor.NotRunning:
		cmd.Println("server is not running")
	}
	return nil
}

func Command() *cobra.Command {
	c := command{
		pidFile:   supervisor.DefaultPIDFile,
		logConfig: log.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the background proxy server is running",
		RunE:  c.runE,
	}

	cmd.Flags().StringVar(&c.pidFile, "pid-file", c.pidFile, "<path>"+
		"File recording the PID of the background server process. ")

	return cmd
}
