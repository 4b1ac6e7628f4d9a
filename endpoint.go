// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// Endpoint is a remote forwarding endpoint. It accepts a request with
// a ?url= query parameter and returns the target resource's response.
type Endpoint struct {
	Name      string `json:"name,omitempty"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Policy selects how the pool picks an endpoint for each request.
type Policy string

const (
	RandomPolicy     Policy = "random"
	RoundRobinPolicy Policy = "round-robin"
)

func (p *Policy) UnmarshalText(text []byte) error {
	switch Policy(text) {
	case RandomPolicy, RoundRobinPolicy:
		*p = Policy(text)
		return nil
	default:
		return fmt.Errorf("invalid selection policy: %s", text)
	}
}

func (p Policy) String() string {
	return string(p)
}

func (p Policy) isValid() bool {
	switch p {
	case RandomPolicy, RoundRobinPolicy:
		return true
	default:
		return false
	}
}

// EndpointPool holds an immutable, ordered set of endpoints and picks
// one per request according to the configured policy. It is safe for
// concurrent use, round-robin selections observe strictly sequential
// cursor values.
type EndpointPool struct {
	endpoints []Endpoint
	policy    Policy
	cursor    atomic.Uint64
}

func NewEndpointPool(endpoints []Endpoint, policy Policy) (*EndpointPool, error) {
	if !policy.isValid() {
		return nil, fmt.Errorf("unsupported selection policy: %s", policy)
	}
	return &EndpointPool{
		endpoints: endpoints,
		policy:    policy,
	}, nil
}

// Select returns the next endpoint, or ok=false if the pool is empty.
// An empty pool is not an error, the caller responds service-unavailable.
func (p *EndpointPool) Select() (Endpoint, bool) {
	if len(p.endpoints) == 0 {
		return Endpoint{}, false
	}

	if p.policy == RoundRobinPolicy {
		i := p.cursor.Add(1) - 1
		return p.endpoints[i%uint64(len(p.endpoints))], true
	}

	return p.endpoints[rand.Intn(len(p.endpoints))], true //nolint:gosec // load distribution, not crypto
}

func (p *EndpointPool) Size() int {
	return len(p.endpoints)
}

// Endpoints returns a copy of the pool's endpoints in order.
func (p *EndpointPool) Endpoints() []Endpoint {
	return append([]Endpoint(nil), p.endpoints...)
}
