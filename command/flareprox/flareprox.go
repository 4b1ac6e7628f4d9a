// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package flareprox assembles the flareprox command tree.
package flareprox

import (
	"github.com/spf13/cobra"

	"github.com/aleister1102/flareprox/bind"
	"github.com/aleister1102/flareprox/command/endpoints"
	"github.com/aleister1102/flareprox/command/run"
	"github.com/aleister1102/flareprox/command/status"
	"github.com/aleister1102/flareprox/command/stop"
	"github.com/aleister1102/flareprox/command/test"
	"github.com/aleister1102/flareprox/command/version"
	"github.com/aleister1102/flareprox/utils/cobrautil"
)

const (
	EnvPrefix          = "FLAREPROX"
	ConfigFileFlagName = "config-file"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flareprox",
		Short: "Local reverse proxy multiplexing traffic across remote forwarding endpoints",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cobrautil.BindAll(cmd, EnvPrefix, ConfigFileFlagName)
		},
	}
	bind.ConfigFile(cmd.PersistentFlags(), new(string))

	cmd.AddCommand(
		run.Command(),
		stop.Command(),
		status.Command(),
		endpoints.Command(),
		test.Command(),
		version.Command(),
	)

	return cmd
}
