// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the leveled Logger interface used throughout this
// module, adapted from gVisor's pkg/log to the narrower needs of the
// signal core (no glog-style header formatting; a plain writer emitter).
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

// Log levels, ordered least to most severe.
const (
	Debug Level = iota
	Info
	Warning
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "D"
	case Info:
		return "I"
	case Warning:
		return "W"
	default:
		return "?"
	}
}

// Logger is the interface used by the signal core to report diagnostic and
// fatal-fault information (spec.md §7).
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warningf(format string, v ...any)
	IsLogging(level Level) bool
}

// Writer is a Logger that emits to an io.Writer with a timestamp and level
// prefix, in the spirit of gVisor's GoogleEmitter but without the
// glog-specific caller/pid header (this module is a library, not a daemon).
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	nowFor func() time.Time
}

// NewWriter returns a Logger that writes to out, filtering below minLevel.
func NewWriter(out io.Writer, minLevel Level) *Writer {
	return &Writer{out: out, level: minLevel, nowFor: time.Now}
}

// IsLogging implements Logger.IsLogging.
func (w *Writer) IsLogging(level Level) bool {
	return level >= w.level
}

func (w *Writer) emit(level Level, format string, v []any) {
	if !w.IsLogging(level) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s %s %s\n", level, w.nowFor().Format("15:04:05.000000"), fmt.Sprintf(format, v...))
}

// Debugf implements Logger.Debugf.
func (w *Writer) Debugf(format string, v ...any) { w.emit(Debug, format, v) }

// Infof implements Logger.Infof.
func (w *Writer) Infof(format string, v ...any) { w.emit(Info, format, v) }

// Warningf implements Logger.Warningf.
func (w *Writer) Warningf(format string, v ...any) { w.emit(Warning, format, v) }

var (
	mu    sync.RWMutex
	inner Logger = NewWriter(os.Stderr, Info)
)

// SetGlobal replaces the process-wide default Logger.
func SetGlobal(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	inner = l
}

// Log returns the process-wide default Logger.
func Log() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return inner
}

// Debugf logs to the global Logger at Debug level.
func Debugf(format string, v ...any) { Log().Debugf(format, v...) }

// Infof logs to the global Logger at Info level.
func Infof(format string, v ...any) { Log().Infof(format, v...) }

// Warningf logs to the global Logger at Warning level.
func Warningf(format string, v ...any) { Log().Warningf(format, v...) }
