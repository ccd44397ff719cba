package occurrence

import (
	"strings"

	"github.com/okian/gridrace/internal/domain/model"
)

// TaskDef is a task pattern with its activation time, ordered by time.
type TaskDef struct {
	Pattern string
	Time    int64
}

// AgentReader provides one user's per-agent logs for a scan cycle.
type AgentReader interface {
	// HistoryFrom returns the durable log entries at index cursor and
	// beyond for the given agent (0-based).
	HistoryFrom(agent, cursor int) []Entry

	// LiveArrivals returns the agent's not-yet-flushed waypoint arrivals
	// that rest on a checkpoint, in waypoint order.
	LiveArrivals(agent int) []Entry
}

// Scanner incrementally consumes a user's unbounded durable logs and
// reconstructs the bounded-window banking independently of the inline
// path. Each Scanner holds private cursors; nothing is shared with the
// live request path.
type Scanner struct {
	tasks  []TaskDef
	maxLen int

	names  [model.NumAgents][]byte
	times  [model.NumAgents][]int64
	cursor [model.NumAgents]int
	banked []int
}

// NewScanner creates a scanner for one user.
func NewScanner(tasks []TaskDef, maxLen int) *Scanner {
	return &Scanner{
		tasks:  tasks,
		maxLen: maxLen,
		banked: make([]int, len(tasks)),
	}
}

// Extend advances the scan to now and returns the per-task occurrence
// counts for every task activated by now, indexed like the task list.
func (sc *Scanner) Extend(r AgentReader, now int64) []int {
	counter := make([]int, 0, len(sc.tasks))
	for i, t := range sc.tasks {
		if t.Time > now {
			break
		}
		counter = append(counter, sc.banked[i])
	}

	for a := 0; a < model.NumAgents; a++ {
		fresh := r.HistoryFrom(a, sc.cursor[a])
		for _, e := range fresh {
			sc.names[a] = append(sc.names[a], e.Name)
			sc.times[a] = append(sc.times[a], e.Time)
		}
		sc.cursor[a] += len(fresh)

		// Only arrivals strictly before now take part in this cycle.
		n := 0
		for n < len(sc.times[a]) && sc.times[a][n] < now {
			n++
		}
		ts := append([]int64(nil), sc.times[a][:n]...)
		str := string(sc.names[a][:n])
		offset := len(str) - sc.maxLen
		if offset < 0 {
			offset = 0
		}

		for _, e := range r.LiveArrivals(a) {
			if e.Time >= now || containsTime(ts, e.Time) {
				continue
			}
			ts = append(ts, e.Time)
			str += string(e.Name)
		}

		if len(str) == 0 {
			continue
		}

		for i := range counter {
			t := sc.tasks[i]
			p := 0
			for p < len(ts) && ts[p] < t.Time {
				p++
			}
			for {
				q := indexFrom(str, t.Pattern, p)
				if q < 0 {
					break
				}
				if q < offset {
					// The start position falls off the retained window
					// after this cycle; credit it durably.
					sc.banked[i]++
				}
				counter[i]++
				p = q + 1
			}
		}

		if offset > 0 {
			sc.names[a] = sc.names[a][offset:]
			sc.times[a] = sc.times[a][offset:]
		}
	}

	return counter
}

func containsTime(ts []int64, t int64) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}

// indexFrom returns the index of the first occurrence of pattern in s at
// or after from, or -1.
func indexFrom(s, pattern string, from int) int {
	if from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], pattern)
	if i < 0 {
		return -1
	}
	return from + i
}
