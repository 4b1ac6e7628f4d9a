// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// Delegator wraps a http.ResponseWriter and records the response status
// and the number of body bytes written. Hijacking the connection, as the
// CONNECT handler does, counts as status 200 with no written bytes.
type Delegator struct {
	http.ResponseWriter

	status      int
	written     int64
	wroteHeader bool
}

func NewDelegator(w http.ResponseWriter) *Delegator {
	return &Delegator{ResponseWriter: w}
}

func (d *Delegator) WriteHeader(status int) {
	if !d.wroteHeader {
		d.status = status
		d.wroteHeader = true
	}
	d.ResponseWriter.WriteHeader(status)
}

func (d *Delegator) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.WriteHeader(http.StatusOK)
	}
	n, err := d.ResponseWriter.Write(b)
	d.written += int64(n)
	return n, err
}

func (d *Delegator) Status() int {
	if !d.wroteHeader {
		return http.StatusOK
	}
	return d.status
}

func (d *Delegator) Written() int64 {
	return d.written
}

func (d *Delegator) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := d.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", d.ResponseWriter)
	}
	if !d.wroteHeader {
		d.status = http.StatusOK
		d.wroteHeader = true
	}
	return hj.Hijack()
}

func (d *Delegator) Flush() {
	if f, ok := d.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
