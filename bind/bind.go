// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package bind maps configuration structs to command line flags.
package bind

import (
	"os"

	"github.com/mmatczuk/anyflag"
	"github.com/spf13/pflag"

	"github.com/aleister1102/flareprox"
	"github.com/aleister1102/flareprox/header"
	"github.com/aleister1102/flareprox/log"
)

func ConfigFile(fs *pflag.FlagSet, configFile *string) {
	fs.StringVarP(configFile,
		"config-file", "c", *configFile, "<path>"+
			"Configuration file to load options from. "+
			"The supported formats are: JSON, YAML, TOML, HCL, and Java properties. "+
			"The file format is determined by the file extension, if not specified the default format is YAML. "+
			"The following precedence order of configuration sources is used: command flags, environment variables, config file, default values. ")
}

func EndpointsFile(fs *pflag.FlagSet, endpointsFile *string) {
	fs.StringVar(endpointsFile,
		"endpoints-file", *endpointsFile, "<path>"+
			"JSON file listing the remote forwarding endpoints to relay traffic through. ")
}

func HTTPServerConfig(fs *pflag.FlagSet, cfg *flareprox.HTTPServerConfig, prefix string) {
	namePrefix := prefix
	if namePrefix != "" {
		namePrefix += "-"
	}

	fs.StringVar(&cfg.Addr,
		namePrefix+"address", cfg.Addr, "<host:port>"+
			"The server address to listen on. "+
			"If the host is empty, the server will listen on all available interfaces. ")

	fs.Int64Var(&cfg.ReadLimit,
		namePrefix+"read-limit", cfg.ReadLimit, "<bytes per second>"+
			"Global read rate limit for the server, zero means unlimited. ")

	fs.Int64Var(&cfg.WriteLimit,
		namePrefix+"write-limit", cfg.WriteLimit, "<bytes per second>"+
			"Global write rate limit for the server, zero means unlimited. ")
}

func RequestHeaders(fs *pflag.FlagSet, headers *[]header.Header) {
	fs.VarP(anyflag.NewSliceValue[header.Header](*headers, headers, header.ParseHeader),
		"header", "H", "<header>"+
			"Add or remove headers on forwarded requests. "+
			"Use the format \"name: value\" to add a header, "+
			"\"name;\" to set the header to empty value, "+
			"\"-name\" to remove the header, "+
			"\"-name*\" to remove headers by prefix. "+
			"The flag can be specified multiple times. ")
}

func HTTPProxyConfig(fs *pflag.FlagSet, cfg *flareprox.HTTPProxyConfig) {
	policies := []flareprox.Policy{
		flareprox.RandomPolicy,
		flareprox.RoundRobinPolicy,
	}
	fs.Var(anyflag.NewValue[flareprox.Policy](cfg.Policy, &cfg.Policy, anyflag.EnumParser[flareprox.Policy](policies...)),
		"selection-policy", "<random|round-robin>"+
			"How the endpoint pool picks an endpoint for each forwarded request. "+
			"Round-robin cycles the pool in order, random picks independently per request. ")

	fs.DurationVar(&cfg.UpstreamTimeout,
		"timeout", cfg.UpstreamTimeout,
		"The maximum duration of a single forwarded request, from dialing the endpoint to reading its full response. ")

	fs.DurationVar(&cfg.ConnectTimeout,
		"connect-timeout", cfg.ConnectTimeout,
		"The maximum amount of time a CONNECT tunnel dial will wait before failing. ")

	fs.DurationVar(&cfg.TunnelIdleTimeout,
		"tunnel-idle-timeout", cfg.TunnelIdleTimeout,
		"Close a CONNECT tunnel after no activity in either direction for this long. ")
}

func HTTPTransportConfig(fs *pflag.FlagSet, cfg *flareprox.HTTPTransportConfig) {
	fs.DurationVar(&cfg.DialTimeout,
		"http-dial-timeout", cfg.DialTimeout,
		"The maximum amount of time a dial to a forwarding endpoint will wait for a connect to complete. ")

	fs.DurationVar(&cfg.ResponseHeaderTimeout,
		"http-response-header-timeout", cfg.ResponseHeaderTimeout,
		"The amount of time to wait for an endpoint's response headers after fully writing the request. "+
			"Zero means no limit. ")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.Var(anyflag.NewValue[*os.File](cfg.File, &cfg.File, openLogFile),
		"log-file", "<path>"+
			"Path to the log file, if empty, logs to stdout. ")

	fs.Var(anyflag.NewValue[log.Level](cfg.Level, &cfg.Level, log.ParseLevel),
		"log-level", "<error|info|debug>"+
			"Log level. ")
}

func openLogFile(val string) (*os.File, error) {
	return os.OpenFile(val, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // log file
}
