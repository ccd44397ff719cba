// Package occurrence counts task-pattern completions in an agent's
// checkpoint-visit sequence using a bounded sliding window. Any completed
// occurrence whose start point is about to leave the window is credited to
// a durable banked count exactly once before eviction, so the bound never
// loses occurrences, it only defers their visibility.
package occurrence

import (
	"strings"
)

// Entry is one checkpoint arrival: the checkpoint name and the arrival
// time in contest milliseconds.
type Entry struct {
	Name byte
	Time int64
}

// Activations resolves exact pattern text to the task's activation time.
type Activations interface {
	ActivationFor(pattern string) (int64, bool)
}

// String builds the visit string of a list of entries.
func String(entries []Entry) string {
	var b strings.Builder
	b.Grow(len(entries))
	for _, e := range entries {
		b.WriteByte(e.Name)
	}
	return b.String()
}

// Times collects the arrival times of a list of entries.
func Times(entries []Entry) []int64 {
	ts := make([]int64, len(entries))
	for i, e := range entries {
		ts[i] = e.Time
	}
	return ts
}

// AppendBounded appends e to window. If the bound of 2*maxLen entries is
// then exceeded, every prefix starting at the oldest entry that matches a
// task pattern activated by that entry's arrival time is banked, and the
// oldest entry alone is evicted. Returns the new window.
func AppendBounded(window []Entry, e Entry, maxLen int, acts Activations, bank func(pattern string)) []Entry {
	window = append(window, e)
	if len(window) <= 2*maxLen {
		return window
	}

	s := String(window)
	first := window[0].Time
	for k := 1; k <= len(s); k++ {
		prefix := s[:k]
		if at, ok := acts.ActivationFor(prefix); ok && first >= at {
			bank(prefix)
		}
	}
	return window[1:]
}

// Count counts occurrences of pattern in s starting at or after from.
// Overlap is allowed: the search resumes one position after each match
// start, not past its end.
func Count(s, pattern string, from int) int {
	n := 0
	for p := from; p <= len(s)-len(pattern); {
		i := strings.Index(s[p:], pattern)
		if i < 0 {
			break
		}
		n++
		p += i + 1
	}
	return n
}
