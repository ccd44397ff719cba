// Package schedule holds the immutable contest master data: the checkpoint
// bijection, the task list and the contest clock. It is constructed once at
// startup and read-only afterwards.
package schedule

import (
	"fmt"
	"time"

	"github.com/okian/gridrace/internal/domain/model"
)

// Task is a scored checkpoint-pattern objective.
type Task struct {
	Pattern string `koanf:"pattern"`
	Time    int64  `koanf:"time"`
	Weight  int    `koanf:"weight"`
}

// Schedule is the immutable-after-init contest context.
type Schedule struct {
	startAt       int64
	period        int64
	checkpoints   []model.Point // indexed by name - 'A', always 26 entries
	byPos         map[model.Point]byte
	tasks         []Task
	activation    map[string]int64 // pattern -> activation time
	maxPatternLen int
	nowFunc       func() int64
}

// Fixed agent starting positions by index 1..NumAgents.
var startPositions = [model.NumAgents]model.Point{
	{X: 0, Y: 0},
	{X: 0, Y: 30},
	{X: 15, Y: 15},
	{X: 30, Y: 0},
	{X: 30, Y: 30},
}

// Option applies a configuration option to the Schedule.
type Option func(*Schedule)

// WithNowFunc overrides the wall clock source; used by tests.
func WithNowFunc(f func() int64) Option {
	return func(s *Schedule) {
		if f != nil {
			s.nowFunc = f
		}
	}
}

// New validates the master data and builds a Schedule.
func New(startAt, period int64, checkpoints map[string]model.Point, tasks []Task, opts ...Option) (*Schedule, error) {
	if startAt <= 0 {
		return nil, ErrStartNotSet
	}
	if period <= 0 {
		return nil, ErrPeriodNotSet
	}

	s := &Schedule{
		startAt:     startAt,
		period:      period,
		checkpoints: make([]model.Point, 26),
		byPos:       make(map[model.Point]byte, 26),
		activation:  make(map[string]int64, len(tasks)),
		nowFunc:     func() int64 { return time.Now().UnixMilli() },
	}

	if len(checkpoints) != 26 {
		return nil, fmt.Errorf("%w: got %d checkpoints, want 26", ErrInvalidCheckpoint, len(checkpoints))
	}
	for name, p := range checkpoints {
		if len(name) != 1 || name[0] < 'A' || name[0] > 'Z' {
			return nil, fmt.Errorf("%w: bad name %q", ErrInvalidCheckpoint, name)
		}
		if p.X < 0 || p.X > model.AreaSize || p.Y < 0 || p.Y > model.AreaSize {
			return nil, fmt.Errorf("%w: %s out of area at (%d,%d)", ErrInvalidCheckpoint, name, p.X, p.Y)
		}
		if old, ok := s.byPos[p]; ok {
			return nil, fmt.Errorf("%w: %s and %c share (%d,%d)", ErrInvalidCheckpoint, name, old, p.X, p.Y)
		}
		s.checkpoints[name[0]-'A'] = p
		s.byPos[p] = name[0]
	}

	var prev int64
	for _, t := range tasks {
		if t.Pattern == "" {
			return nil, fmt.Errorf("%w: empty pattern", ErrInvalidTask)
		}
		for i := 0; i < len(t.Pattern); i++ {
			if t.Pattern[i] < 'A' || t.Pattern[i] > 'Z' {
				return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidTask, t.Pattern)
			}
		}
		if t.Time < prev {
			return nil, fmt.Errorf("%w: activation times must be non-decreasing (%q at %d)", ErrInvalidTask, t.Pattern, t.Time)
		}
		// Pattern text is a lookup key table-wide; duplicates would
		// silently merge banked counts.
		if _, dup := s.activation[t.Pattern]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern %q", ErrInvalidTask, t.Pattern)
		}
		s.activation[t.Pattern] = t.Time
		if len(t.Pattern) > s.maxPatternLen {
			s.maxPatternLen = len(t.Pattern)
		}
		prev = t.Time
	}
	s.tasks = append([]Task(nil), tasks...)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Now returns elapsed contest milliseconds; negative before the start.
func (s *Schedule) Now() int64 {
	return s.nowFunc() - s.startAt
}

// StartAt returns the contest start in unix milliseconds.
func (s *Schedule) StartAt() int64 { return s.startAt }

// Period returns the total contest period in milliseconds.
func (s *Schedule) Period() int64 { return s.period }

// MaxPatternLen returns the length of the longest task pattern.
func (s *Schedule) MaxPatternLen() int { return s.maxPatternLen }

// Tasks returns the task list ordered by activation time.
func (s *Schedule) Tasks() []Task { return s.tasks }

// Checkpoints returns the 26 checkpoint positions in A..Z order.
func (s *Schedule) Checkpoints() []model.Point { return s.checkpoints }

// CheckpointAt reports the checkpoint name at p, if any.
func (s *Schedule) CheckpointAt(p model.Point) (byte, bool) {
	name, ok := s.byPos[p]
	return name, ok
}

// ActivationFor returns the activation time for an exact pattern text.
func (s *Schedule) ActivationFor(pattern string) (int64, bool) {
	t, ok := s.activation[pattern]
	return t, ok
}

// ActivatedCount returns how many tasks have activated by now.
func (s *Schedule) ActivatedCount(now int64) int {
	n := 0
	for _, t := range s.tasks {
		if t.Time > now {
			break
		}
		n++
	}
	return n
}

// NextActivation returns the first activation time after now, or -1.
func (s *Schedule) NextActivation(now int64) int64 {
	for _, t := range s.tasks {
		if t.Time > now {
			return t.Time
		}
	}
	return -1
}

// StartPos returns the fixed starting position for agent index 1..NumAgents.
func (s *Schedule) StartPos(idx int) model.Point {
	return startPositions[idx-1]
}
