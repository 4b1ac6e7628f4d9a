// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package run

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/goleak"

	"github.com/aleister1102/flareprox"
	"github.com/aleister1102/flareprox/bind"
	"github.com/aleister1102/flareprox/header"
	"github.com/aleister1102/flareprox/httplog"
	"github.com/aleister1102/flareprox/internal/version"
	"github.com/aleister1102/flareprox/log"
	"github.com/aleister1102/flareprox/log/stdlog"
	"github.com/aleister1102/flareprox/runctx"
	"github.com/aleister1102/flareprox/supervisor"
)

type command struct {
	promReg             *prometheus.Registry
	httpTransportConfig *flareprox.HTTPTransportConfig
	httpProxyConfig     *flareprox.HTTPProxyConfig
	serverConfig        *flareprox.HTTPServerConfig
	apiServerConfig     *flareprox.HTTPServerConfig
	logConfig           *log.Config
	requestHeaders      []header.Header
	endpointsFile       string
	pidFile             string
	daemon              bool

	goleak bool
}

func (c *command) runE(cmd *cobra.Command, args []string) (cmdErr error) {
	if c.daemon {
		return c.startDaemon(cmd)
	}

	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	onError, err := c.registerErrorsMetric()
	if err != nil {
		return fmt.Errorf("register errors metric: %w", err)
	}
	logger := stdlog.New(c.logConfig, stdlog.WithOnError(onError))

	defer func() {
		if cmdErr != nil {
			logger.Errorf("fatal error exiting: %s", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	logger.Infof("FlareProxLocal %s (%s)", version.Version, version.Commit)
	logger.Debugf("resource limits: GOMAXPROCS=%d GOMEMLIMIT=%s", runtime.GOMAXPROCS(0), os.Getenv("GOMEMLIMIT"))

	endpoints, err := flareprox.ReadEndpointsFile(c.endpointsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no endpoints file at %s, provision endpoints first", c.endpointsFile)
		}
		return err
	}
	pool, err := flareprox.NewEndpointPool(endpoints, c.httpProxyConfig.Policy)
	if err != nil {
		return err
	}
	if pool.Size() == 0 {
		logger.Errorf("endpoints file %s lists no endpoints, all forwards will fail", c.endpointsFile)
	} else {
		logger.Infof("serving with %d endpoint(s), %s selection", pool.Size(), c.httpProxyConfig.Policy)
	}

	if err := c.registerRuntimeMetrics(); err != nil {
		return fmt.Errorf("register runtime metrics: %w", err)
	}

	accessLog := httplog.NewLogger(logWriter(c.logConfig))

	c.httpProxyConfig.RequestHeaders = header.Headers(c.requestHeaders)

	g := runctx.NewGroup()

	rt := flareprox.NewHTTPTransport(c.httpTransportConfig)
	p, err := flareprox.NewHTTPProxy(c.httpProxyConfig, pool, rt, accessLog.LogFunc(), logger.Named("proxy"))
	if err != nil {
		return err
	}

	s, err := flareprox.NewHTTPServer(c.serverConfig, p.Handler(), logger.Named("server"))
	if err != nil {
		return err
	}
	defer s.Close()
	g.Add(s.Run)

	if c.apiServerConfig.Addr != "" {
		h := flareprox.NewAPIHandler(c.promReg, s, pool, describeFlags(cmd.Flags()))
		a, err := flareprox.NewHTTPServer(c.apiServerConfig, h, logger.Named("api"))
		if err != nil {
			return err
		}
		defer a.Close()
		g.Add(a.Run)
	}

	if c.goleak {
		defer func() {
			if err := goleak.Find(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "goleak: %s", err)
				os.Exit(1)
			}
		}()
	}

	return g.Run()
}

// startDaemon re-executes the current binary in the background with the
// same arguments minus the daemon flag, and records its PID.
func (c *command) startDaemon(cmd *cobra.Command) error {
	logger := stdlog.New(c.logConfig)

	args := daemonArgs(os.Args[1:])
	sv := supervisor.New(c.pidFile, logger)

	pid, err := sv.StartDetached(args, nil, nil)
	if err != nil {
		return err
	}

	cmd.Printf("server started with PID %d\n", pid)
	return nil
}

// daemonArgs strips the daemon flag from the argument list so the child
// runs in the foreground.
func daemonArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--daemon" || strings.HasPrefix(a, "--daemon=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// logWriter returns the destination for access log lines, the log file
// when one is configured, stdout otherwise.
func logWriter(cfg *log.Config) *os.File {
	if cfg.File != nil {
		return cfg.File
	}
	return os.Stdout
}

func describeFlags(fs *pflag.FlagSet) string {
	var sb strings.Builder
	fs.Visit(func(f *pflag.Flag) {
		fmt.Fprintf(&sb, "%s=%s\n", f.Name, f.Value)
	})
	if sb.Len() == 0 {
		return "default configuration\n"
	}
	return sb.String()
}

func (c *command) registerErrorsMetric() (func(name string), error) {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.httpProxyConfig.PromNamespace,
		Name:      "errors_total",
		Help:      "Number of errors",
	}, []string{"name"})

	if err := c.promReg.Register(m); err != nil {
		return nil, err
	}

	return func(name string) {
		m.WithLabelValues(name).Inc()
	}, nil
}

func (c *command) registerRuntimeMetrics() error {
	if err := c.promReg.Register(collectors.NewProcessCollector(
		collectors.ProcessCollectorOpts{Namespace: c.httpProxyConfig.PromNamespace})); err != nil {
		return err
	}
	if err := c.promReg.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return c.promReg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.httpProxyConfig.PromNamespace,
		Name:      "version",
		Help:      "Version information, value is always 1",
		ConstLabels: prometheus.Labels{
			"version": version.Version,
			"commit":  version.Commit,
			"time":    version.Time,
		},
	}, func() float64 {
		return 1
	}))
}

const promNs = "flareprox"

func Command() *cobra.Command {
	c := makeCommand()

	cmd := &cobra.Command{
		Use:     "run [--address <host:port>] [--selection-policy <random|round-robin>] [--daemon]",
		Short:   "Start the local proxy server",
		Long:    long,
		Example: example,
		RunE:    c.runE,
	}

	fs := cmd.Flags()
	bind.HTTPServerConfig(fs, c.serverConfig, "")
	bind.HTTPServerConfig(fs, c.apiServerConfig, "api")
	bind.HTTPProxyConfig(fs, c.httpProxyConfig)
	bind.HTTPTransportConfig(fs, c.httpTransportConfig)
	bind.RequestHeaders(fs, &c.requestHeaders)
	bind.EndpointsFile(fs, &c.endpointsFile)
	bind.LogConfig(fs, c.logConfig)

	fs.BoolVar(&c.daemon, "daemon", false, "Run the server as a background process. ")
	fs.StringVar(&c.pidFile, "pid-file", c.pidFile, "<path>"+
		"File recording the PID of the background server process. ")

	fs.BoolVar(&c.goleak, "goleak", false, "enable goleak")
	fs.Lookup("goleak").Hidden = true

	return cmd
}

func makeCommand() command {
	c := command{
		promReg:             prometheus.NewRegistry(),
		httpTransportConfig: flareprox.DefaultHTTPTransportConfig(),
		httpProxyConfig:     flareprox.DefaultHTTPProxyConfig(),
		serverConfig:        flareprox.DefaultHTTPServerConfig(),
		apiServerConfig:     flareprox.DefaultHTTPServerConfig(),
		logConfig:           log.DefaultConfig(),
		endpointsFile:       flareprox.DefaultEndpointsFile,
		pidFile:             supervisor.DefaultPIDFile,
	}
	c.httpProxyConfig.PromRegistry = c.promReg
	c.httpProxyConfig.PromNamespace = promNs
	c.apiServerConfig.Addr = "localhost:10000"

	return c
}

const long = `Start the local proxy server.
The server relays plain HTTP(S) requests through the remote forwarding endpoints
listed in the endpoints file, so the target sees an endpoint's address instead of yours.
CONNECT requests are tunneled directly to the target.
`

const example = `  # Serve on the default address with random endpoint selection
  flareprox run

  # Round-robin across endpoints on a custom port
  flareprox run --address localhost:9000 --selection-policy round-robin

  # Run in the background
  flareprox run --daemon
`
