// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// serveTunnel handles CONNECT requests by dialing the target directly
// and splicing bytes between the client and the target. Tunnels bypass
// the endpoint pool.
func (hp *HTTPProxy) serveTunnel(w http.ResponseWriter, r *http.Request, start time.Time) {
	target := r.RequestURI
	if target == "" {
		target = r.Host
	}

	host, port, err := net.SplitHostPort(target)
	if err == nil {
		_, err = strconv.Atoi(port)
	}
	if err != nil {
		hp.log.Debugf("malformed CONNECT target %q: %s", target, err)
		writeJSONError(w, http.StatusBadRequest, "invalid CONNECT target", target)
		hp.logAccess(r, start, http.StatusBadRequest, 0)
		return
	}

	upstream, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), hp.config.ConnectTimeout)
	if err != nil {
		hp.log.Errorf("dial CONNECT target %s: %s", target, err)
		writeJSONError(w, http.StatusBadGateway, "tunnel connection failed", err.Error())
		hp.logAccess(r, start, http.StatusBadGateway, 0)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		upstream.Close()
		hp.log.Errorf("response writer %T does not support hijacking", w)
		writeJSONError(w, http.StatusInternalServerError, "tunneling not supported", "")
		hp.logAccess(r, start, http.StatusInternalServerError, 0)
		return
	}

	client, brw, err := hj.Hijack()
	if err != nil {
		upstream.Close()
		hp.log.Errorf("hijack client connection: %s", err)
		hp.logAccess(r, start, http.StatusInternalServerError, 0)
		return
	}

	established := "HTTP/1.1 200 Connection Established\r\nServer: " + serverName() + "\r\n\r\n"
	if _, err := client.Write([]byte(established)); err != nil {
		client.Close()
		upstream.Close()
		hp.logAccess(r, start, http.StatusOK, 0)
		return
	}

	// The client may have sent bytes right after the CONNECT request,
	// they are sitting in the server's read buffer.
	if n := brw.Reader.Buffered(); n > 0 {
		b, err := brw.Reader.Peek(n)
		if err == nil {
			upstream.Write(b) //nolint:errcheck // relay failures surface in the copy loop
		}
	}

	hp.log.Debugf("established CONNECT tunnel to %s", target)
	n := hp.relay(client, upstream)
	hp.log.Debugf("closed CONNECT tunnel to %s, %d bytes relayed", target, n)

	// Normal termination reuses status 200 regardless of which side
	// closed first, idle expiry included.
	hp.logAccess(r, start, http.StatusOK, n)
}

// relay splices bytes between the client and the upstream connection
// until either side closes, errors, or the session stays idle for the
// configured interval. It returns the number of bytes relayed from the
// upstream to the client.
func (hp *HTTPProxy) relay(client, upstream net.Conn) int64 {
	defer client.Close()
	defer upstream.Close()

	s := newTunnelSession()
	idle := hp.config.TunnelIdleTimeout

	var (
		bytesOut int64
		wg       sync.WaitGroup
		donec    = make(chan struct{}, 2)
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.copy(upstream, client, idle)
		donec <- struct{}{}
	}()
	go func() {
		defer wg.Done()
		bytesOut, _ = s.copy(client, upstream, idle)
		donec <- struct{}{}
	}()

	// Either side finishing tears down the whole session.
	<-donec
	s.done.Store(true)
	now := time.Now()
	client.SetDeadline(now)   //nolint:errcheck // already tearing down
	upstream.SetDeadline(now) //nolint:errcheck // already tearing down
	wg.Wait()

	return bytesOut
}

var copyBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 32*1024)
		return &b
	},
}

type tunnelSession struct {
	lastActive atomic.Int64
	done       atomic.Bool
}

func newTunnelSession() *tunnelSession {
	s := &tunnelSession{}
	s.touch()
	return s
}

func (s *tunnelSession) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *tunnelSession) idleFor(d time.Duration) bool {
	return time.Since(time.Unix(0, s.lastActive.Load())) >= d
}

// copy forwards bytes from src to dst refreshing the read deadline on
// each iteration. A read timeout with no activity on either direction
// for the idle interval is a clean termination.
func (s *tunnelSession) copy(dst io.Writer, src net.Conn, idle time.Duration) (written int64, err error) {
	bufp := copyBufPool.Get().(*[]byte) //nolint:forcetypeassert // It's *[]byte.
	buf := *bufp
	defer copyBufPool.Put(bufp)

	for {
		src.SetReadDeadline(time.Now().Add(idle)) //nolint:errcheck // deadline refresh

		n, rerr := src.Read(buf)
		if n > 0 {
			s.touch()
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if rerr != nil {
			var ne net.Error
			if errors.As(rerr, &ne) && ne.Timeout() && !s.done.Load() && !s.idleFor(idle) {
				// The other direction is still active.
				continue
			}
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			if errors.As(rerr, &ne) && ne.Timeout() {
				// Idle cutoff, clean close.
				return written, nil
			}
			return written, rerr
		}
	}
}
