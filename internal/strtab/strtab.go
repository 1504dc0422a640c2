// Package strtab implements the bridge's grow-on-demand string table,
// used to cache the device's SD-card file listing so that the host's
// case-insensitive M23 selection can recover the device's case-exact name.
package strtab

import "strings"

// growChunk is the number of entries the backing slice grows by when it
// runs out of room, mirroring the spec's "initial chunk: 10 entries"
// fixed-size growth policy.
const growChunk = 10

// Table is an ordered sequence of owned strings with amortised O(1)
// append, indexed removal, and linear case-insensitive search. It is not
// thread-safe; callers must serialize access, same as the rest of the
// session state this package backs.
type Table struct {
	entries []string
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make([]string, 0, growChunk)}
}

// Add appends s to the table and returns its index.
func (t *Table) Add(s string) int {
	if len(t.entries) == cap(t.entries) {
		grown := make([]string, len(t.entries), cap(t.entries)+growChunk)
		copy(grown, t.entries)
		t.entries = grown
	}
	t.entries = append(t.entries, s)
	return len(t.entries) - 1
}

// Remove deletes the entry at i, shifting the tail down. It is a no-op if
// i is out of range.
func (t *Table) Remove(i int) {
	if i < 0 || i >= len(t.entries) {
		return
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
}

// Reset empties the table without releasing its backing storage, so a
// fresh file listing can reuse the allocation.
func (t *Table) Reset() {
	t.entries = t.entries[:0]
}

// Len returns the number of entries currently stored.
func (t *Table) Len() int {
	return len(t.entries)
}

// At returns the entry at index i, or "" if i is out of range.
func (t *Table) At(i int) string {
	if i < 0 || i >= len(t.entries) {
		return ""
	}
	return t.entries[i]
}

// All returns the entries in insertion order. The returned slice is owned
// by the caller.
func (t *Table) All() []string {
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

// FindCaseInsensitive returns the index of the first entry matching s
// without regard to case, or -1 if none match. First match wins, so
// insertion order determines the result among duplicates.
func (t *Table) FindCaseInsensitive(s string) int {
	for i, e := range t.entries {
		if strings.EqualFold(e, s) {
			return i
		}
	}
	return -1
}
