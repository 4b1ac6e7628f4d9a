// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package flareprox

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultEndpointsFile is the snapshot written by the provisioning
// layer and read by the server at startup.
const DefaultEndpointsFile = "flareprox_endpoints.json"

// ReadEndpointsFile reads the endpoint snapshot. A missing file is
// reported as os.ErrNotExist so callers can distinguish "not set up"
// from a corrupted file.
func ReadEndpointsFile(path string) ([]Endpoint, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	if err := json.Unmarshal(b, &endpoints); err != nil {
		return nil, fmt.Errorf("parse endpoints file %s: %w", path, err)
	}

	return endpoints, nil
}

func WriteEndpointsFile(path string, endpoints []Endpoint) error {
	b, err := json.MarshalIndent(endpoints, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
