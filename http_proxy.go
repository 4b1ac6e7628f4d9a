// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aleister1102/flareprox/header"
	"github.com/aleister1102/flareprox/internal/version"
	"github.com/aleister1102/flareprox/log"
	"github.com/aleister1102/flareprox/middleware"
)

// TargetURLHeader is the fallback header carrying the forwarding target.
const TargetURLHeader = "X-Target-Url"

// serverName identifies this server in response headers.
func serverName() string {
	return "FlareProxLocal/" + version.Version
}

type HTTPProxyConfig struct {
	Name string

	// Policy selects how the endpoint pool picks an endpoint per request.
	Policy Policy

	// UpstreamTimeout bounds a single forwarded request, from dialing
	// the endpoint to receiving its response headers and body.
	UpstreamTimeout time.Duration

	// ConnectTimeout bounds the direct dial for CONNECT tunnels.
	ConnectTimeout time.Duration

	// TunnelIdleTimeout ends a tunnel session after no activity on
	// either socket for this long. Expiry is a clean termination.
	TunnelIdleTimeout time.Duration

	// RequestHeaders are user specified modifications applied to
	// forwarded requests after the hop-by-hop headers are stripped.
	RequestHeaders header.Headers

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

func DefaultHTTPProxyConfig() *HTTPProxyConfig {
	return &HTTPProxyConfig{
		Name:              "flareprox",
		Policy:            RandomPolicy,
		UpstreamTimeout:   30 * time.Second,
		ConnectTimeout:    10 * time.Second,
		TunnelIdleTimeout: 30 * time.Second,
	}
}

func (c *HTTPProxyConfig) Validate() error {
	if !c.Policy.isValid() {
		return fmt.Errorf("unsupported selection policy: %s", c.Policy)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.TunnelIdleTimeout <= 0 {
		return fmt.Errorf("tunnel idle timeout must be positive")
	}
	return nil
}

// HTTPProxy relays inbound requests through a pool of remote forwarding
// endpoints, and CONNECT requests through a direct tunnel.
type HTTPProxy struct {
	config    HTTPProxyConfig
	pool      *EndpointPool
	transport http.RoundTripper
	accessLog middleware.Logger
	metrics   *middleware.Prometheus
	log       log.Logger
}

// NewHTTPProxy creates a new proxy serving requests from the given pool.
// If rt is nil, a default transport is used. If accessLog is nil, access
// logging is disabled.
func NewHTTPProxy(cfg *HTTPProxyConfig, pool *EndpointPool, rt http.RoundTripper, accessLog middleware.Logger, logger log.Logger) (*HTTPProxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rt == nil {
		rt = NewHTTPTransport(DefaultHTTPTransportConfig())
	}
	if accessLog == nil {
		accessLog = func(middleware.LogEntry) {}
	}

	return &HTTPProxy{
		config:    *cfg,
		pool:      pool,
		transport: rt,
		accessLog: accessLog,
		metrics:   middleware.NewPrometheus(cfg.PromRegistry, cfg.PromNamespace),
		log:       logger,
	}, nil
}

// Handler returns the proxy's HTTP handler wrapped with metrics collection.
func (hp *HTTPProxy) Handler() http.Handler {
	return hp.metrics.Wrap(http.HandlerFunc(hp.serveHTTP))
}

func (hp *HTTPProxy) serveHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Server", serverName())

	if r.Method == http.MethodConnect {
		hp.serveTunnel(w, r, start)
		return
	}
	hp.serveForward(w, r, start)
}

// serveForward picks an endpoint, issues the outbound call and relays
// the response.
func (hp *HTTPProxy) serveForward(w http.ResponseWriter, r *http.Request, start time.Time) {
	target := targetFromRequest(r)
	if target == "" {
		n := writeJSONError(w, http.StatusBadRequest, "no target URL specified", "")
		hp.logAccess(r, start, http.StatusBadRequest, n)
		return
	}

	endpoint, ok := hp.pool.Select()
	if !ok {
		n := writeJSONError(w, http.StatusServiceUnavailable, "no endpoint available", "")
		hp.logAccess(r, start, http.StatusServiceUnavailable, n)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hp.config.UpstreamTimeout)
	defer cancel()

	out, err := hp.outboundRequest(ctx, r, endpoint, target)
	if err != nil {
		hp.log.Errorf("build outbound request for %s: %s", endpoint.URL, err)
		n := writeJSONError(w, http.StatusBadGateway, "proxy request failed", err.Error())
		hp.logAccess(r, start, http.StatusBadGateway, n)
		return
	}

	resp, err := hp.transport.RoundTrip(out)
	if err != nil {
		hp.log.Errorf("forward to %s: %s", endpoint.URL, err)
		n := writeJSONError(w, http.StatusBadGateway, "proxy request failed", err.Error())
		hp.logAccess(r, start, http.StatusBadGateway, n)
		return
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		hp.log.Errorf("read response from %s: %s", endpoint.URL, err)
		n := writeJSONError(w, http.StatusBadGateway, "proxy request failed", err.Error())
		hp.logAccess(r, start, http.StatusBadGateway, n)
		return
	}

	n, err := hp.writeResponse(w, resp, body)
	if err != nil {
		hp.log.Errorf("relay response from %s: %s", endpoint.URL, err)
	}
	hp.logAccess(r, start, resp.StatusCode, n)
}

// targetFromRequest extracts the forwarding target, in priority order:
// ?url= query parameter, /http(s)://-prefixed path, X-Target-Url header.
// Inbound query parameters other than url are carried over to the
// target so they reach the forwarding endpoint as part of it.
func targetFromRequest(r *http.Request) string {
	q := r.URL.Query()

	target := q.Get("url")
	if target == "" {
		if p := r.URL.Path; strings.HasPrefix(p, "/http://") || strings.HasPrefix(p, "/https://") {
			target = strings.TrimPrefix(p, "/")
		}
	}
	if target == "" {
		target = r.Header.Get(TargetURLHeader)
	}
	if target == "" {
		return ""
	}

	q.Del("url")
	if extra := q.Encode(); extra != "" {
		if strings.Contains(target, "?") {
			target += "&" + extra
		} else {
			target += "?" + extra
		}
	}

	return target
}

// hopByHopRequestHeaders are transport-hop-specific and never forwarded.
var hopByHopRequestHeaders = []string{
	"Host",
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Upgrade",
}

func (hp *HTTPProxy) outboundRequest(ctx context.Context, r *http.Request, endpoint Endpoint, target string) (*http.Request, error) {
	u := endpoint.URL + "?url=" + url.QueryEscape(target)

	var body io.Reader = r.Body
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		body = http.NoBody
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, err
	}
	if body != http.NoBody {
		out.ContentLength = r.ContentLength
	}

	for k, vv := range r.Header {
		if isHopByHopHeader(k) {
			continue
		}
		out.Header[k] = vv
	}
	hp.config.RequestHeaders.Apply(out.Header)

	return out, nil
}

func isHopByHopHeader(name string) bool {
	for _, h := range hopByHopRequestHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// strippedResponseHeaders are dropped from the endpoint's response, the
// body is fully buffered before re-emission so content-length is
// recomputed and any transfer or content encoding no longer applies.
var strippedResponseHeaders = []string{
	"Transfer-Encoding",
	"Content-Encoding",
	"Content-Length",
}

func isStrippedResponseHeader(name string) bool {
	for _, h := range strippedResponseHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func (hp *HTTPProxy) writeResponse(w http.ResponseWriter, resp *http.Response, body []byte) (int64, error) {
	h := w.Header()
	for k, vv := range resp.Header {
		if isStrippedResponseHeader(k) {
			continue
		}
		h[k] = vv
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))

	w.WriteHeader(resp.StatusCode)
	n, err := w.Write(body)
	return int64(n), err
}

func (hp *HTTPProxy) logAccess(r *http.Request, start time.Time, status int, written int64) {
	hp.accessLog(middleware.LogEntry{
		Request:  r,
		Status:   status,
		Written:  written,
		Duration: time.Since(start),
	})
}
