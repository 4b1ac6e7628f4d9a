// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/aleister1102/flareprox/log"
)

func newTestProxy(t *testing.T, endpoints ...Endpoint) *HTTPProxy {
	t.Helper()

	pool, err := NewEndpointPool(endpoints, RoundRobinPolicy)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultHTTPProxyConfig()
	cfg.Policy = RoundRobinPolicy
	hp, err := NewHTTPProxy(cfg, pool, nil, nil, log.NopLogger)
	if err != nil {
		t.Fatal(err)
	}
	return hp
}

// echoEndpoint mimics a forwarding endpoint: it records the request it
// received and responds with the target it was asked to fetch.
func echoEndpoint(t *testing.T, received *http.Request) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*received = *r.Clone(r.Context())
		body, _ := io.ReadAll(r.Body)

		resp := map[string]string{
			"target": r.URL.Query().Get("url"),
			"method": r.Method,
			"body":   string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestProxyForwardsToEndpoint(t *testing.T) {
	var received http.Request
	es := echoEndpoint(t, &received)
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/?url=" + url.QueryEscape("https://example.com/get?foo=1"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Target string `json:"target"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Target != "https://example.com/get?foo=1" {
		t.Errorf("endpoint saw target %q, want query parameters preserved", body.Target)
	}
	if body.Method != http.MethodGet {
		t.Errorf("endpoint saw method %q, want GET", body.Method)
	}
}

func TestProxyTargetExtractionPriority(t *testing.T) {
	var received http.Request
	es := echoEndpoint(t, &received)
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	tests := []struct {
		name   string
		path   string
		header string
		want   string
	}{
		{
			name: "query parameter",
			path: "/?url=" + url.QueryEscape("https://query.example.com/"),
			want: "https://query.example.com/",
		},
		{
			name: "path prefix",
			path: "/https://path.example.com/sub",
			want: "https://path.example.com/sub",
		},
		{
			name:   "header fallback",
			path:   "/",
			header: "https://header.example.com/",
			want:   "https://header.example.com/",
		},
		{
			name:   "query wins over header",
			path:   "/?url=" + url.QueryEscape("https://query.example.com/"),
			header: "https://header.example.com/",
			want:   "https://query.example.com/",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ps.URL+tc.path, http.NoBody)
			if err != nil {
				t.Fatal(err)
			}
			if tc.header != "" {
				req.Header.Set(TargetURLHeader, tc.header)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			var body struct {
				Target string `json:"target"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Target != tc.want {
				t.Errorf("endpoint saw target %q, want %q", body.Target, tc.want)
			}
		})
	}
}

func TestProxyStripsHopByHopHeaders(t *testing.T) {
	var received http.Request
	es := echoEndpoint(t, &received)
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	req, err := http.NewRequest(http.MethodGet, ps.URL+"/?url="+url.QueryEscape("https://example.com/"), http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Proxy-Connection", "keep-alive")
	req.Header.Set("X-Custom", "kept")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := received.Header.Get("Proxy-Connection"); got != "" {
		t.Errorf("Proxy-Connection forwarded as %q, want stripped", got)
	}
	if got := received.Header.Get("X-Custom"); got != "kept" {
		t.Errorf("X-Custom forwarded as %q, want kept", got)
	}
}

func TestProxyForwardsBody(t *testing.T) {
	var received http.Request
	es := echoEndpoint(t, &received)
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Post(ps.URL+"/?url="+url.QueryEscape("https://example.com/post"), "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Body != "hello" {
		t.Errorf("endpoint received body %q, want %q", body.Body, "hello")
	}
}

func TestProxyRecomputesContentLength(t *testing.T) {
	const payload = "response body"

	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response, no Content-Length on the wire.
		w.Header().Set("X-Upstream", "yes")
		io.WriteString(w, payload[:4])
		w.(http.Flusher).Flush()
		io.WriteString(w, payload[4:])
	}))
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/?url=" + url.QueryEscape("https://example.com/"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Length"); got != strconv.Itoa(len(payload)) {
		t.Errorf("Content-Length = %q, want %d", got, len(payload))
	}
	if got := resp.Header.Get("X-Upstream"); got != "yes" {
		t.Errorf("X-Upstream = %q, want passed through", got)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != payload {
		t.Errorf("body = %q, want %q", b, payload)
	}
}

func TestProxyPreservesUpstreamStatus(t *testing.T) {
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: es.URL})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/?url=" + url.QueryEscape("https://example.com/"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want upstream 404 preserved", resp.StatusCode)
	}
}

func TestProxyNoTargetURL(t *testing.T) {
	hp := newTestProxy(t, Endpoint{Name: "e", URL: "https://e.example.com"})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" {
		t.Error("expected structured error body")
	}
}

func TestProxyEmptyPool(t *testing.T) {
	var hits int
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer es.Close()

	hp := newTestProxy(t)
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/?url=" + url.QueryEscape(es.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", resp.StatusCode)
	}
	if hits != 0 {
		t.Errorf("no outbound request may be made with an empty pool, got %d", hits)
	}
}

func TestProxyEndpointUnreachable(t *testing.T) {
	// Reserve a port and close it so the dial fails fast.
	es := httptest.NewServer(http.NotFoundHandler())
	dead := es.URL
	es.Close()

	hp := newTestProxy(t, Endpoint{Name: "e", URL: dead})
	ps := httptest.NewServer(hp.Handler())
	defer ps.Close()

	resp, err := http.Get(ps.URL + "/?url=" + url.QueryEscape("https://example.com/"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("got status %d, want 502", resp.StatusCode)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || body.Message == "" {
		t.Errorf("expected error and message fields, got %+v", body)
	}
}

func TestTargetFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{
			name: "query with extra params merged into target",
			url:  "http://localhost/?url=" + url.QueryEscape("https://example.com/get") + "&foo=1",
			want: "https://example.com/get?foo=1",
		},
		{
			name: "extra params appended to target query",
			url:  "http://localhost/?url=" + url.QueryEscape("https://example.com/get?a=b") + "&foo=1",
			want: "https://example.com/get?a=b&foo=1",
		},
		{
			name: "path form",
			url:  "http://localhost/http://example.com/x",
			want: "http://example.com/x",
		},
		{
			name: "no target",
			url:  "http://localhost/favicon.ico",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, http.NoBody)
			if tc.header != "" {
				r.Header.Set(TargetURLHeader, tc.header)
			}
			if got := targetFromRequest(r); got != tc.want {
				t.Errorf("targetFromRequest() = %q, want %q", got, tc.want)
			}
		})
	}
}
