// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package flareprox implements a local reverse proxy that multiplexes
// outbound HTTP(S) traffic across a pool of remote forwarding endpoints.
// Each forwarded request is rewritten to an endpoint URL carrying the
// real target as a query parameter, so the target server observes the
// endpoint's address rather than the client's. CONNECT requests are
// tunneled directly to the target.
package flareprox
