// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package logger implements the subsystem-tagged logging used by
// internal/spmkernel, cmd/certtool and cmd/tsaserver, adapted from the
// provisioning appliance's src/logger: a multi-level log.Logger wrapper
// with optional file rotation, generalized here to tag every record
// with the emitting subsystem (such as tsaserver) the
// way the appliance tags its own RPC handlers with a
// "[CreateKeyAndCertRequest]"-style prefix.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const rotateTimestamp = "20060102150405"

// Level is the severity of one log record.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN "
	case LevelInfo:
		return "INFO "
	case LevelDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("%d", int(l))
	}
}

// Logger is a subsystem-tagged logger, optionally backed by a rotating
// file in addition to stderr.
type Logger struct {
	subsystem string
	level     Level

	mu         sync.Mutex
	file       *os.File
	std        *log.Logger
	createTime time.Time
}

// New returns a Logger that writes to stderr only, tagged with
// subsystem.
func New(subsystem string, level Level) *Logger {
	return &Logger{
		subsystem: subsystem,
		level:     level,
		std:       log.New(os.Stderr, "", 0),
	}
}

// NewFile returns a Logger that writes to both stderr and path,
// rotating path to a timestamped sibling file once a week of content
// has accumulated, mirroring the appliance's rotate().
func NewFile(subsystem, path string, level Level) (*Logger, error) {
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		return nil, fmt.Errorf("log directory %s does not exist", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}
	return &Logger{
		subsystem:  subsystem,
		level:      level,
		file:       f,
		std:        log.New(io.MultiWriter(os.Stderr, f), "", 0),
		createTime: time.Now(),
	}, nil
}

// Named returns a child Logger for a sub-component, sharing the same
// sink and level but with subsystem "parent.child".
func (l *Logger) Named(child string) *Logger {
	return &Logger{
		subsystem:  l.subsystem + "." + child,
		level:      l.level,
		file:       l.file,
		std:        l.std,
		createTime: l.createTime,
	}
}

func (l *Logger) log(lvl Level, format string, args ...interface{}) {
	if l == nil || lvl > l.level {
		return
	}
	now := time.Now().UTC().Format(rotateTimestamp)
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("%s %s [%s] %s", now, lvl, l.subsystem, msg)
	if l.file != nil {
		l.maybeRotate()
	}
}

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

// maybeRotate renames the current log file to a timestamped sibling
// once a week has elapsed since createTime, then opens a fresh file at
// the original path and points the writer at it.
func (l *Logger) maybeRotate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.createTime) < 7*24*time.Hour {
		return
	}
	name := l.file.Name()
	rotated := name + "_" + time.Now().UTC().Format(rotateTimestamp)
	if err := os.Rename(name, rotated); err != nil {
		return
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return
	}
	l.file = f
	l.std.SetOutput(io.MultiWriter(os.Stderr, f))
	l.createTime = time.Now()
}

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
