// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

//go:build !windows

package supervisor

import "syscall"

// detachedSysProcAttr puts the child in its own session so it survives
// the parent's terminal going away.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
