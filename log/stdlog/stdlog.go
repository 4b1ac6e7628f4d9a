// Copyright 2025 The flareprox Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

// Package stdlog implements the flareprox logger interface using the
// standard log package.
package stdlog

import (
	"io"
	stdlibLog "log"
	"os"

	flog "github.com/aleister1102/flareprox/log"
)

func Default() *Logger {
	l := Logger{
		log:   stdlibLog.Default(),
		level: flog.InfoLevel,
	}
	return l.Named("")
}

func New(cfg *flog.Config, opts ...Option) *Logger {
	var w io.Writer = os.Stdout
	if cfg.File != nil {
		w = cfg.File
	}

	l := &Logger{
		log:   stdlibLog.New(w, "", stdlibLog.Ldate|stdlibLog.Ltime|stdlibLog.Lmicroseconds|stdlibLog.LUTC),
		level: cfg.Level,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l.Named("")
}

// Logger implements the log.Logger interface using the standard log package.
type Logger struct {
	log   *stdlibLog.Logger
	name  string
	level flog.Level

	errorPfx string
	infoPfx  string
	debugPfx string

	onError func(name string)
}

// Named returns a copy of the logger with the given name prepended to
// each log message.
func (sl Logger) Named(name string, opts ...Option) *Logger { //nolint:gocritic // we pass by value to get a copy
	sl.name = name

	if name != "" {
		name = "[" + name + "] "
	}

	sl.errorPfx = name + "[ERROR] "
	sl.infoPfx = name + "[INFO] "
	sl.debugPfx = name + "[DEBUG] "

	for _, opt := range opts {
		opt(&sl)
	}

	return &sl
}

func (sl *Logger) Errorf(format string, args ...any) {
	if sl.level < flog.ErrorLevel {
		return
	}
	if sl.onError != nil {
		sl.onError(sl.name)
	}
	sl.log.Printf(sl.errorPfx+format, args...)
}

func (sl *Logger) Infof(format string, args ...any) {
	if sl.level < flog.InfoLevel {
		return
	}
	sl.log.Printf(sl.infoPfx+format, args...)
}

func (sl *Logger) Debugf(format string, args ...any) {
	if sl.level < flog.DebugLevel {
		return
	}
	sl.log.Printf(sl.debugPfx+format, args...)
}

// Unwrap returns the underlying log.Logger pointer.
func (sl *Logger) Unwrap() *stdlibLog.Logger {
	return sl.log
}
