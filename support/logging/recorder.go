// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Level is a log level recorded by a Recorder.
type Level string

// Log levels.
const (
	ErrorLevel Level = "ERROR"
	WarnLevel  Level = "WARN"
	InfoLevel  Level = "INFO"
	DebugLevel Level = "DEBUG"
)

// Entry is a single log line captured by a Recorder.
type Entry struct {
	Level   Level
	Message string
}

func (e Entry) String() string { return fmt.Sprintf("%s: %s", e.Level, e.Message) }

// Recorder is an L that stores every log line in memory.
//
// It is intended for tests that assert on emitted diagnostics. Recorder is
// safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ L = (*Recorder)(nil)

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Contains returns true if any recorded entry at level lvl contains substr.
func (r *Recorder) Contains(lvl Level, substr string) bool {
	for _, e := range r.Entries() {
		if e.Level == lvl && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func (r *Recorder) record(lvl Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: lvl, Message: msg})
}

// Error implements L.
func (r *Recorder) Error(args ...interface{}) { r.record(ErrorLevel, fmt.Sprint(args...)) }

// Warn implements L.
func (r *Recorder) Warn(args ...interface{}) { r.record(WarnLevel, fmt.Sprint(args...)) }

// Info implements L.
func (r *Recorder) Info(args ...interface{}) { r.record(InfoLevel, fmt.Sprint(args...)) }

// Debug implements L.
func (r *Recorder) Debug(args ...interface{}) { r.record(DebugLevel, fmt.Sprint(args...)) }

// Errorf implements L.
func (r *Recorder) Errorf(f string, args ...interface{}) { r.record(ErrorLevel, fmt.Sprintf(f, args...)) }

// Warnf implements L.
func (r *Recorder) Warnf(f string, args ...interface{}) { r.record(WarnLevel, fmt.Sprintf(f, args...)) }

// Infof implements L.
func (r *Recorder) Infof(f string, args ...interface{}) { r.record(InfoLevel, fmt.Sprintf(f, args...)) }

// Debugf implements L.
func (r *Recorder) Debugf(f string, args ...interface{}) { r.record(DebugLevel, fmt.Sprintf(f, args...)) }
