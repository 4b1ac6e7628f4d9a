// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aleister1102/flareprox"
	"github.com/aleister1102/flareprox/bind"
)

type command struct {
	endpointsFile string
	target        string
	timeout       time.Duration
}

func (c *command) runE(cmd *cobra.Command, _ []string) error {
	endpoints, err := flareprox.ReadEndpointsFile(c.endpointsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no endpoints file at %s, provision endpoints first", c.endpointsFile)
		}
		return err
	}
	if len(endpoints) == 0 {
		cmd.Println("no endpoints to test")
		return nil
	}

	client := &http.Client{
		Transport: flareprox.NewHTTPTransport(flareprox.DefaultHTTPTransportConfig()),
		Timeout:   c.timeout,
	}

	var failed int
	for _, e := range endpoints {
		status, d, err := probe(client, e, c.target)
		if err != nil {
			cmd.Printf("FAIL %s: %s\n", e.URL, err)
			failed++
			continue
		}
		cmd.Printf("OK   %s: %d in %s\n", e.URL, status, d.Round(time.Millisecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d endpoint(s) failed", failed, len(endpoints))
	}
	return nil
}

func probe(client *http.Client, e flareprox.Endpoint, target string) (status int, d time.Duration, err error) {
	start := time.Now()

	resp, err := client.Get(e.URL + "?url=" + url.QueryEscape(target))
	if err != nil {
		return 0, 0, err
	}
	resp.Body.Close()

	return resp.StatusCode, time.Since(start), nil
}

func Command() *cobra.Command {
	c := command{
		endpointsFile: flareprox.DefaultEndpointsFile,
		target:        "https://httpbin.org/ip",
		timeout:       30 * time.Second,
	}

	cmd := &cobra.Command{
		Use:   "test [--url <target>]",
		Short: "Send a test request through each endpoint",
		RunE:  c.runE,
	}

	fs := cmd.Flags()
	bind.EndpointsFile(fs, &c.endpointsFile)
	fs.StringVar(&c.target, "url", c.target, "<url>"+
		"Target URL fetched through each endpoint. ")
	fs.DurationVar(&c.timeout, "timeout", c.timeout, "Per request timeout. ")

	return cmd
}
