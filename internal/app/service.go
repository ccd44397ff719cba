// Package service provides the core game service that implements the
// dependencies required by the HTTP API: the rate-limit protocol, the
// snapshot builder, the move handler and stream sessions.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/gridrace/internal/adapters/store"
	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/schedule"
	"github.com/okian/gridrace/pkg/logger"
)

// Rate-limit windows and wait bounds, in contest milliseconds.
const (
	streamWindow = 1000
	gameWindow   = 1000
	moveWindow   = 100
	taskWindow   = 500
	taskMaxWait  = 4000
)

// Stream pacing.
const (
	defaultSettleInterval    = 500 * time.Millisecond
	defaultHeartbeatInterval = 5 * time.Second
)

// Service implements the API dependencies for the game engine.
type Service struct {
	sched *schedule.Schedule
	store store.Store
	log   logger.Logger

	settleInterval    time.Duration
	heartbeatInterval time.Duration

	masterData []byte
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSettleInterval sets the gap between stream subscribe and snapshot.
func WithSettleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.settleInterval = d
		}
	}
}

// WithHeartbeatInterval sets the stream idle heartbeat interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.heartbeatInterval = d
		}
	}
}

// New constructs the game service.
func New(sched *schedule.Schedule, st store.Store, opts ...Option) *Service {
	s := &Service{
		sched:             sched,
		store:             st,
		settleInterval:    defaultSettleInterval,
		heartbeatInterval: defaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("service")
	}

	md, err := json.Marshal(model.MasterData{
		GamePeriod:  sched.Period(),
		MaxLenTask:  sched.MaxPatternLen(),
		NumAgent:    model.NumAgents,
		Checkpoints: sched.Checkpoints(),
		AreaSize:    model.AreaSize,
	})
	if err != nil {
		// The schedule is validated static data; this cannot fail.
		panic(err)
	}
	s.masterData = md

	return s
}

// MasterData returns the precomputed static configuration, or
// ErrBeforeStart before the contest begins.
func (s *Service) MasterData(_ context.Context) ([]byte, error) {
	if s.sched.Now() < 0 {
		return nil, ErrBeforeStart
	}
	return s.masterData, nil
}

// waitUnlock runs the time-lock caller protocol: acquire or wait until the
// returned unlock time and retry once more. A second denial carrying a
// different unlock time means a concurrent duplicate already advanced the
// lock; the whole request is aborted with ErrTimeLimited.
func (s *Service) waitUnlock(ctx context.Context, kind, userID string, window int64) (int64, error) {
	now := s.sched.Now()
	if now < 0 {
		return now, nil
	}

	first := int64(-1)
	for {
		unlock, granted := s.store.TimeLock(ctx, kind+"_"+userID, now, window)
		if granted {
			break
		}
		if first < 0 {
			first = unlock
		} else if first != unlock {
			return 0, ErrTimeLimited
		}

		wait := first - now
		if wait < 1 {
			wait = 1
		}
		time.Sleep(time.Duration(wait) * time.Millisecond)
		now = s.sched.Now()
		for now < first {
			time.Sleep(time.Millisecond)
			now = s.sched.Now()
		}
	}

	return now, nil
}

// resolveToken maps an opaque token onto a user id.
func (s *Service) resolveToken(ctx context.Context, token string) (string, error) {
	userID, ok := s.store.UserID(ctx, token)
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}

// gate runs token resolution, the rate-limit gate and the contest
// lifecycle checks shared by every JSON endpoint.
func (s *Service) gate(ctx context.Context, kind, token string, window int64) (userID string, now int64, err error) {
	userID, err = s.resolveToken(ctx, token)
	if err != nil {
		return "", 0, err
	}
	now, err = s.waitUnlock(ctx, kind, userID, window)
	if err != nil {
		return "", 0, err
	}
	if now < 0 {
		return "", 0, ErrBeforeStart
	}
	if now >= s.sched.Period() {
		return "", 0, ErrGameFinished
	}
	return userID, now, nil
}

// Move applies a move request for agent idx toward (x, y). queueNext
// queues the leg after the current one instead of rerouting now.
func (s *Service) Move(ctx context.Context, token string, idx, x, y int, queueNext bool) (*model.MoveResponse, error) {
	if idx < 1 || idx > model.NumAgents || x < 0 || x > model.AreaSize || y < 0 || y > model.AreaSize {
		return nil, ErrNotFound
	}

	userID, now, err := s.gate(ctx, fmt.Sprintf("move_%d", idx), token, moveWindow)
	if err != nil {
		return nil, err
	}

	moves, err := s.store.Move(ctx, userID, idx, model.Point{X: x, Y: y}, now, queueNext)
	if err != nil {
		return nil, err
	}
	return &model.MoveResponse{Status: model.StatusOK, Now: now, Move: moves}, nil
}

// Task returns the tasks activating exactly at taskTime, waiting for the
// activation when it is imminent.
func (s *Service) Task(ctx context.Context, token string, taskTime int64) (*model.TaskResponse, error) {
	if taskTime < 0 || taskTime >= s.sched.Period() {
		return nil, ErrNotFound
	}

	_, now, err := s.gate(ctx, "task", token, taskWindow)
	if err != nil {
		return nil, err
	}
	if taskTime > now+taskMaxWait {
		return nil, ErrTimeLimited
	}

	var tasks []model.TaskInfo
	nextTask := int64(-1)
	for _, t := range s.sched.Tasks() {
		if t.Time > taskTime {
			nextTask = t.Time
			break
		}
		if t.Time == taskTime {
			tasks = append(tasks, model.TaskInfo{Pattern: t.Pattern, Time: t.Time, Weight: t.Weight})
		}
	}
	if len(tasks) == 0 {
		return nil, ErrNoTaskAtTime
	}

	if taskTime > now {
		time.Sleep(time.Duration(taskTime-now) * time.Millisecond)
		for s.sched.Now() < taskTime {
			time.Sleep(time.Millisecond)
		}
	}

	return &model.TaskResponse{Status: model.StatusOK, Task: tasks, NextTask: nextTask}, nil
}

// Game returns the full per-user snapshot at the current contest time.
func (s *Service) Game(ctx context.Context, token string) (*model.GameResponse, error) {
	userID, now, err := s.gate(ctx, "game", token, gameWindow)
	if err != nil {
		return nil, err
	}
	return s.buildGame(ctx, userID, now)
}
