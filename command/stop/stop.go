// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package stop

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

	pid, err := sv.Stop()
	if err != nil {
		return err
	}
	if pid == 0 {
		cmd.Println("server is not running")
		return nil
	}

	cmd.Printf("stopped server with PID %d\n", pid)
	return nil
}

func Command() *cobra.Command {
	c := command{
		pidFile:   supervisor.DefaultPIDFile,
		logConfig: log.DefaultConfig(),
	}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background proxy server",
		RunE:  c.runE,
	}

	cmd.Flags().StringVar(&c.pidFile, "pid-file", c.pidFile, "<path>"+
		"File recording the PID of the background server process. ")

	return cmd
}
