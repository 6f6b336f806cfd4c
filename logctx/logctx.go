// Copyright (c) 2016 Company 0, LLC.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logctx provides the subsystem-tagged leveled logging used
// throughout this module, generalizing companyzero-zkc's debug package from
// a hardcoded reopened log file to an arbitrary io.Writer sink.
package logctx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// Logger is a leveled, subsystem-tagged sink. The zero value logs to
// os.Stderr with debug output disabled.
type Logger struct {
	mu        sync.Mutex
	w         io.Writer
	subsystem string
	debug     bool
}

// New returns a Logger writing to w, tagged with subsystem (e.g. "session",
// "handshake"). If w is nil, os.Stderr is used.
func New(subsystem string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{w: w, subsystem: subsystem}
}

// EnableDebug turns on Dbg-level output.
func (l *Logger) EnableDebug() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = true
}

func (l *Logger) log(prefix, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.w
	if w == nil {
		w = os.Stderr
	}
	t := time.Now().Format(time.RFC3339)
	fmt.Fprintf(w, "%s [%s]%s%s\n", t, l.subsystem, prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{})     { l.log("[INF] ", format, args...) }
func (l *Logger) Warn(format string, args ...interface{})     { l.log("[WAR] ", format, args...) }
func (l *Logger) Error(format string, args ...interface{})    { l.log("[ERR] ", format, args...) }
func (l *Logger) Critical(format string, args ...interface{}) { l.log("[CRI] ", format, args...) }

// Dbg logs only when debug output has been enabled.
func (l *Logger) Dbg(format string, args ...interface{}) {
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.log("[DBG] ", format, args...)
}

// Dump writes a spew-formatted dump of v at debug level, useful for
// capturing a Hello or AuthCert at the moment a handshake fails.
func (l *Logger) Dump(label string, v interface{}) {
	l.Dbg("%s:\n%s", label, spew.Sdump(v))
}
