// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package ratelimit

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestListenerLimitsReadBandwidth(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	const limit = 16 * 1024
	rl := NewListener(l, limit, 0)

	done := make(chan int64, 1)
	go func() {
		c, err := rl.Accept()
		if err != nil {
			done <- 0
			return
		}
		defer c.Close()
		n, _ := io.Copy(io.Discard, c)
		done <- n
	}()

	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	// Two seconds worth of data at the limit.
	payload := make([]byte, 2*limit)
	start := time.Now()
	if _, err := c.Write(payload); err != nil {
		t.Fatal(err)
	}
	c.Close()

	if n := <-done; n != int64(len(payload)) {
		t.Fatalf("read %d bytes, want %d", n, len(payload))
	}
	// The burst allows the first second through immediately.
	if d := time.Since(start); d < 500*time.Millisecond {
		t.Errorf("transfer took %s, want it throttled", d)
	}
}

func TestListenerUnlimited(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	rl := NewListener(l, 0, 0)

	go func() {
		c, err := rl.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(io.Discard, c) //nolint:errcheck // drain
	}()

	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Write(make([]byte, 1<<20)); err != nil {
		t.Fatal(err)
	}
}
