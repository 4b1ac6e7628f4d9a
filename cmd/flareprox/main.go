// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/aleister1102/flareprox/command/flareprox"
)

func main() {
	if err := flareprox.Command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
