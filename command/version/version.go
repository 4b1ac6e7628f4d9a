// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package version

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/aleister1102/flareprox/internal/version"
)

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("Version:\t%s\n", version.Version)
			cmd.Printf("Build time:\t%s\n", version.Time)
			cmd.Printf("Git commit:\t%s\n", version.Commit)
			cmd.Printf("Go Arch:\t%s\n", runtime.GOARCH)
			cmd.Printf("Go OS:\t\t%s\n", runtime.GOOS)
			cmd.Printf("Go Version:\t%s\n", runtime.Version())
		},
	}
}
