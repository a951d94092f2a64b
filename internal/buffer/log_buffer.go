// Package buffer provides a bounded append-only log for execution output.
package buffer

import (
	"sync"
)

// LogBuffer is a thread-safe append-only list of log entries that
// keeps only the most recent entries up to a specified capacity. When
// the buffer is full, the oldest entries are discarded.
//
// The sync agent uses it to hold execution output lines, so a
// long-lived session cannot grow the participant's log without bound.
type LogBuffer struct {
	entries  []string
	capacity int
	mu       sync.RWMutex
}

// NewLogBuffer creates a new LogBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &LogBuffer{
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Append adds an entry to the end of the log, discarding the oldest
// entry when the log is at capacity.
func (lb *LogBuffer) Append(entry string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.entries) == lb.capacity {
		copy(lb.entries, lb.entries[1:])
		lb.entries[len(lb.entries)-1] = entry
		return
	}
	lb.entries = append(lb.entries, entry)
}

// Entries returns a copy of the log, oldest first.
// The returned slice is safe to use without holding the lock.
func (lb *LogBuffer) Entries() []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if len(lb.entries) == 0 {
		return nil
	}

	result := make([]string, len(lb.entries))
	copy(result, lb.entries)
	return result
}

// Clear removes all entries from the log.
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = lb.entries[:0]
}

// Len returns the current number of entries.
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	return len(lb.entries)
}

// Cap returns the capacity of the log.
func (lb *LogBuffer) Cap() int {
	return lb.capacity
}
