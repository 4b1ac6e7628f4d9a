// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aleister1102/flareprox/log"
	"github.com/aleister1102/flareprox/ratelimit"
)

type HTTPServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// ReadLimit and WriteLimit bound the listener's aggregate bandwidth
	// in bytes per second, zero means unlimited.
	ReadLimit  int64
	WriteLimit int64
}

func DefaultHTTPServerConfig() *HTTPServerConfig {
	return &HTTPServerConfig{
		Addr:              "localhost:8000",
		ReadHeaderTimeout: 1 * time.Minute,
		IdleTimeout:       1 * time.Hour,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (c *HTTPServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is empty")
	}
	return nil
}

type HTTPServer struct {
	config   HTTPServerConfig
	log      log.Logger
	srv      *http.Server
	listener net.Listener
}

// NewHTTPServer binds the listener eagerly so that an unusable address
// fails at construction rather than at Run.
func NewHTTPServer(cfg *HTTPServerConfig, h http.Handler, log log.Logger) (*HTTPServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hs := &HTTPServer{
		config: *cfg,
		log:    log,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}

	l, err := net.Listen("tcp", hs.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", hs.config.Addr, err)
	}
	if cfg.ReadLimit > 0 || cfg.WriteLimit > 0 {
		l = ratelimit.NewListener(l, cfg.ReadLimit, cfg.WriteLimit)
	}
	hs.listener = l

	return hs, nil
}

func (hs *HTTPServer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()
		hs.log.Debugf("shutting down server at %s", hs.Addr())

		sctx, cancel := context.WithTimeout(context.Background(), hs.config.ShutdownTimeout)
		defer cancel()
		if err := hs.srv.Shutdown(sctx); err != nil {
			hs.log.Errorf("shutdown %s: %s", hs.Addr(), err)
			hs.srv.Close()
		}
	}()

	hs.log.Infof("server listen address=%s", hs.Addr())

	err := hs.srv.Serve(hs.listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	wg.Wait()
	return err
}

// Addr returns the address the server is listening on.
func (hs *HTTPServer) Addr() string {
	return hs.listener.Addr().String()
}

func (hs *HTTPServer) Close() error {
	return hs.srv.Close()
}
