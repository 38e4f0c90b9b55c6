// Copyright 2024 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package logging

import (
	"strings"
	"sync"
)

// RingWriter keeps the most recent lines written to it.
type RingWriter struct {
	mutex   sync.Mutex
	lines   []string
	next    int
	full    bool
	partial string
}

// NewRingWriter creates a RingWriter that keeps up to the given number of lines.
func NewRingWriter(size int) *RingWriter {
	if size < 1 {
		size = 1
	}
	return &RingWriter{
		lines: make([]string, size),
	}
}

// Write adds the given log output. Incomplete lines are kept until
// their newline is written.
func (w *RingWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	data := w.partial + string(p)
	parts := strings.Split(data, "\n")
	w.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		w.lines[w.next] = line
		w.next = (w.next + 1) % len(w.lines)
		if w.next == 0 {
			w.full = true
		}
	}
	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (w *RingWriter) Lines() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.full {
		return append([]string(nil), w.lines[:w.next]...)
	}
	result := make([]string, 0, len(w.lines))
	result = append(result, w.lines[w.next:]...)
	return append(result, w.lines[:w.next]...)
}
