// Package motion is the pure agent motion model: movement cost, the
// waypoint-window state classification, interpolation and the waypoint
// rewrites a move request produces. It never touches shared state.
package motion

import (
	"math"

	"github.com/okian/gridrace/internal/domain/model"
)

// Path is an agent's waypoint record: a fixed three-slot array with an
// explicit count. N==0 means the agent has never moved. With N>=2, W[0] is
// the last departed point, W[1] the current or next arrival and W[2] an
// optional queued arrival. Arrival times are non-decreasing across slots.
type Path struct {
	N int
	W [3]model.Waypoint
}

// State classifies an agent's motion at a given time.
type State int

// The four exclusive motion states.
const (
	StateNever    State = iota // no waypoints; pinned to the fixed start
	StateToFirst               // mid-flight toward W[1]
	StateToSecond              // arrived at W[1], mid-flight toward W[2]
	StateResting               // all arrivals in the past
)

// Cost is the movement cost between two points. The minimum of 1 applies
// even for zero distance.
func Cost(x0, y0, x1, y1 float64) int64 {
	dx := x1 - x0
	dy := y1 - y0
	c := int64(math.Ceil(math.Sqrt(dx*dx+dy*dy) * 100))
	if c < 1 {
		c = 1
	}
	return c
}

// Classify resolves the motion state of p at time now. The cases are total
// and mutually exclusive over (N, now).
func Classify(p Path, now int64) State {
	switch {
	case p.N == 0:
		return StateNever
	case now < p.W[1].T:
		return StateToFirst
	case p.N == 3 && now < p.W[2].T:
		return StateToSecond
	default:
		return StateResting
	}
}

// Interpolate returns the position along the segment a->b at time now.
func Interpolate(a, b model.Waypoint, now int64) (x, y float64) {
	span := float64(b.T - a.T)
	x = (a.X*float64(b.T-now) + b.X*float64(now-a.T)) / span
	y = (a.Y*float64(b.T-now) + b.Y*float64(now-a.T)) / span
	return x, y
}

// Result is the outcome of applying a move request to a path.
type Result struct {
	// Path is the waypoint record after the move. Valid only when Changed.
	Path Path
	// Moves is the waypoint list returned to the caller and broadcast:
	// one point for a no-op, two or three otherwise.
	Moves []model.Waypoint
	// Flush lists arrivals that have now definitely occurred and must be
	// appended to the history log, in order.
	Flush []model.Waypoint
	// Changed reports whether the stored path must be rewritten.
	Changed bool
}

func atTarget(w model.Waypoint, target model.Point) bool {
	return w.X == float64(target.X) && w.Y == float64(target.Y)
}

// Apply computes the effect of a move request on path p at time now.
// start is the agent's fixed starting position, used when p is empty.
func Apply(p Path, start, target model.Point, now int64, queueNext bool) Result {
	switch Classify(p, now) {
	case StateToFirst:
		if queueNext {
			if atTarget(p.W[1], target) {
				// Cancel any queued leg.
				next := Path{N: 2, W: [3]model.Waypoint{p.W[0], p.W[1]}}
				return Result{Path: next, Moves: []model.Waypoint{p.W[0], p.W[1]}, Changed: true}
			}
			w2 := model.Waypoint{
				X: float64(target.X),
				Y: float64(target.Y),
				T: p.W[1].T + Cost(p.W[1].X, p.W[1].Y, float64(target.X), float64(target.Y)),
			}
			next := Path{N: 3, W: [3]model.Waypoint{p.W[0], p.W[1], w2}}
			return Result{Path: next, Moves: []model.Waypoint{p.W[0], p.W[1], w2}, Changed: true}
		}
		x, y := Interpolate(p.W[0], p.W[1], now)
		return immediate(x, y, target, now, nil)

	case StateToSecond:
		// W[1]'s arrival is behind us; it goes to the history log first.
		flush := []model.Waypoint{p.W[1]}
		if queueNext {
			if atTarget(p.W[2], target) {
				next := Path{N: 2, W: [3]model.Waypoint{p.W[1], p.W[2]}}
				return Result{Path: next, Moves: []model.Waypoint{p.W[1], p.W[2]}, Flush: flush, Changed: true}
			}
			w2 := model.Waypoint{
				X: float64(target.X),
				Y: float64(target.Y),
				T: p.W[2].T + Cost(p.W[2].X, p.W[2].Y, float64(target.X), float64(target.Y)),
			}
			next := Path{N: 3, W: [3]model.Waypoint{p.W[1], p.W[2], w2}}
			return Result{Path: next, Moves: []model.Waypoint{p.W[1], p.W[2], w2}, Flush: flush, Changed: true}
		}
		x, y := Interpolate(p.W[1], p.W[2], now)
		return immediate(x, y, target, now, flush)

	case StateResting:
		last := p.W[p.N-1]
		if atTarget(last, target) {
			// Already resting on the target; nothing moves and nothing
			// is flushed.
			return Result{Moves: []model.Waypoint{{X: float64(target.X), Y: float64(target.Y), T: now}}}
		}
		flush := []model.Waypoint{p.W[1]}
		if p.N == 3 {
			flush = append(flush, p.W[2])
		}
		return immediate(last.X, last.Y, target, now, flush)

	default: // StateNever
		if start == target {
			return Result{Moves: []model.Waypoint{{X: float64(target.X), Y: float64(target.Y), T: now}}}
		}
		return immediate(float64(start.X), float64(start.Y), target, now, nil)
	}
}

// immediate issues a move from (x, y) to target starting at now.
func immediate(x, y float64, target model.Point, now int64, flush []model.Waypoint) Result {
	w0 := model.Waypoint{X: x, Y: y, T: now}
	w1 := model.Waypoint{
		X: float64(target.X),
		Y: float64(target.Y),
		T: now + Cost(x, y, float64(target.X), float64(target.Y)),
	}
	next := Path{N: 2, W: [3]model.Waypoint{w0, w1}}
	return Result{Path: next, Moves: []model.Waypoint{w0, w1}, Flush: flush, Changed: true}
}

// Resolve is the read-only counterpart of Apply used by snapshots: it
// returns the waypoint list describing the agent's trajectory at now and
// the arrivals that have occurred but may not be durably flushed yet.
func Resolve(p Path, start model.Point, now int64) (moves, arrived []model.Waypoint) {
	switch Classify(p, now) {
	case StateToFirst:
		return append([]model.Waypoint(nil), p.W[:p.N]...), nil
	case StateToSecond:
		return []model.Waypoint{p.W[1], p.W[2]}, []model.Waypoint{p.W[1]}
	case StateResting:
		if p.N == 3 {
			return []model.Waypoint{p.W[2]}, []model.Waypoint{p.W[1], p.W[2]}
		}
		return []model.Waypoint{p.W[1]}, []model.Waypoint{p.W[1]}
	default:
		return []model.Waypoint{{X: float64(start.X), Y: float64(start.Y), T: now}}, nil
	}
}
