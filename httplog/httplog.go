// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package httplog writes access log lines for completed requests and
// tunnel sessions in the Apache combined log format.
package httplog

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aleister1102/flareprox/middleware"
)

// Logger writes one access log line per log entry. It is safe for
// concurrent use.
type Logger struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{
		w:   w,
		now: time.Now,
	}
}

// LogFunc returns the entry consumer to be attached to the proxy.
func (l *Logger) LogFunc() middleware.Logger {
	return func(e middleware.LogEntry) {
		var b bytes.Buffer
		writeCombinedLine(&b, e, l.now())

		l.mu.Lock()
		defer l.mu.Unlock()
		l.w.Write(b.Bytes()) //nolint:errcheck // access log is best effort
	}
}

const timestampLayout = "02/Jan/2006:15:04:05 -0700"

// writeCombinedLine writes an Apache combined log format line:
//
//	remote - - [timestamp] "request line" status bytes "referer" "user-agent"
func writeCombinedLine(b *bytes.Buffer, e middleware.LogEntry, t time.Time) {
	remote := "-"
	if e.Request.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(e.Request.RemoteAddr); err == nil {
			remote = host
		} else {
			remote = e.Request.RemoteAddr
		}
	}

	fmt.Fprintf(b, "%s - - [%s] %q %d %d %q %q\n",
		remote,
		t.Format(timestampLayout),
		requestLine(e),
		e.Status,
		e.Written,
		headerOrDash(e, "Referer"),
		headerOrDash(e, "User-Agent"),
	)
}

func requestLine(e middleware.LogEntry) string {
	uri := e.Request.RequestURI
	if uri == "" {
		uri = e.Request.URL.RequestURI()
	}
	return e.Request.Method + " " + uri + " " + e.Request.Proto
}

func headerOrDash(e middleware.LogEntry, name string) string {
	if v := e.Request.Header.Get(name); v != "" {
		return v
	}
	return "-"
}
