// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEndpointPoolRoundRobin(t *testing.T) {
	p, err := NewEndpointPool([]Endpoint{
		{Name: "a", URL: "https://a.example.com"},
		{Name: "b", URL: "https://b.example.com"},
		{Name: "c", URL: "https://c.example.com"},
	}, RoundRobinPolicy)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for i := 0; i < 5; i++ {
		e, ok := p.Select()
		if !ok {
			t.Fatalf("Select() returned ok=false on non-empty pool")
		}
		got = append(got, e.Name)
	}

	want := []string{"a", "b", "c", "a", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-robin order mismatch (-want +got):\n%s", diff)
	}
}

func TestEndpointPoolRoundRobinConcurrent(t *testing.T) {
	const n = 100

	p, err := NewEndpointPool([]Endpoint{
		{Name: "a", URL: "https://a.example.com"},
		{Name: "b", URL: "https://b.example.com"},
	}, RoundRobinPolicy)
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]int)
		wg     sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			e, _ := p.Select()
			mu.Lock()
			counts[e.Name]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["a"] != n/2 || counts["b"] != n/2 {
		t.Errorf("uneven distribution: %v", counts)
	}
}

func TestEndpointPoolRandom(t *testing.T) {
	p, err := NewEndpointPool([]Endpoint{
		{Name: "a", URL: "https://a.example.com"},
		{Name: "b", URL: "https://b.example.com"},
	}, RandomPolicy)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e, ok := p.Select()
		if !ok {
			t.Fatalf("Select() returned ok=false on non-empty pool")
		}
		seen[e.Name] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("random selection never picked one of the endpoints: %v", seen)
	}
}

func TestEndpointPoolEmpty(t *testing.T) {
	for _, policy := range []Policy{RandomPolicy, RoundRobinPolicy} {
		p, err := NewEndpointPool(nil, policy)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := p.Select(); ok {
			t.Errorf("policy %s: Select() on empty pool returned ok=true", policy)
		}
	}
}

func TestNewEndpointPoolInvalidPolicy(t *testing.T) {
	if _, err := NewEndpointPool(nil, Policy("least-conn")); err == nil {
		t.Fatal("expected error for unsupported policy")
	}
}

func TestPolicyUnmarshalText(t *testing.T) {
	var p Policy
	if err := p.UnmarshalText([]byte("round-robin")); err != nil {
		t.Fatal(err)
	}
	if p != RoundRobinPolicy {
		t.Errorf("got %s, want %s", p, RoundRobinPolicy)
	}

	if err := p.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for invalid policy text")
	}
}
