// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package endpoints

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aleister1102/flareprox"
	"github.com/aleister1102/flareprox/bind"
)

type command struct {
	endpointsFile string
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	endpoints, err := flareprox.ReadEndpointsFile(c.endpointsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cmd.Printf("no endpoints file at %s\n", c.endpointsFile)
			return nil
		}
		return err
	}
	if len(endpoints) == 0 {
		cmd.Println("no endpoints")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL\tCREATED")
	for _, e := range endpoints {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, e.URL, e.CreatedAt)
	}
	return w.Flush()
}

func Command() *cobra.Command {
	c := command{
		endpointsFile: flareprox.DefaultEndpointsFile,
	}

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the remote forwarding endpoints",
		RunE:  c.runE,
	}

	bind.EndpointsFile(cmd.Flags(), &c.endpointsFile)

	return cmd
}
