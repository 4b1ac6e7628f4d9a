// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"
	"time"
)

// LogEntry describes one completed request or tunnel session.
type LogEntry struct {
	Request  *http.Request
	Status   int
	Written  int64
	Duration time.Duration
}

// Logger consumes log entries, one per completed request.
type Logger func(e LogEntry)

// Wrap returns a handler that emits a log entry after each request.
// It is meant for handlers that do not hijack the connection,
// the proxy emits tunnel entries itself.
func (l Logger) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		d := NewDelegator(w)
		h.ServeHTTP(d, r)
		l(LogEntry{
			Request:  r,
			Status:   d.Status(),
			Written:  d.Written(),
			Duration: time.Since(start),
		})
	})
}
