package service

import (
	"context"

	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/motion"
	"github.com/okian/gridrace/internal/domain/occurrence"
)

// buildGame assembles the consistent, side-effect-free snapshot behind
// /api/game: resolved trajectories, transiently extended visit strings,
// per-task personal counts plus global totals, and the next activation.
func (s *Service) buildGame(ctx context.Context, userID string, now int64) (*model.GameResponse, error) {
	state, err := s.store.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tasks := s.sched.Tasks()
	activated := s.sched.ActivatedCount(now)
	maxLen := s.sched.MaxPatternLen()

	counts := make([]int, activated)
	for i := 0; i < activated; i++ {
		counts[i] = state.Banked[tasks[i].Pattern]
	}

	agents := make([]model.AgentSnapshot, 0, model.NumAgents)
	for a := 0; a < model.NumAgents; a++ {
		moves, arrived := motion.Resolve(state.Agents[a], s.sched.StartPos(a+1), now)
		ss, tt := s.extendVisits(state.Windows[a], arrived)

		for i := 0; i < activated; i++ {
			p := 0
			for p < len(tt) && tt[p] < tasks[i].Time {
				p++
			}
			counts[i] += occurrence.Count(ss, tasks[i].Pattern, p)
		}

		if len(ss) > maxLen {
			off := len(ss) - maxLen
			ss = ss[off:]
			tt = tt[off:]
		}
		agents = append(agents, model.AgentSnapshot{Move: moves, History: ss, HistoryTimes: tt})
	}

	taskData := make([]model.TaskCount, 0, activated)
	for i := 0; i < activated; i++ {
		total := 0
		if i < len(state.Totals) {
			total = state.Totals[i]
		}
		taskData = append(taskData, model.TaskCount{
			Pattern: tasks[i].Pattern,
			Time:    tasks[i].Time,
			Weight:  tasks[i].Weight,
			Count:   counts[i],
			Total:   total,
		})
	}

	return &model.GameResponse{
		Status:   model.StatusOK,
		Now:      now,
		Agent:    agents,
		Task:     taskData,
		NextTask: s.sched.NextActivation(now),
	}, nil
}

// buildGameFrame assembles the first frame of an event stream. Counts are
// the banked values only; the client reconciles live-window matches from
// the histories it receives.
func (s *Service) buildGameFrame(ctx context.Context, userID string, now int64) (*model.GameFrame, error) {
	state, err := s.store.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tasks := s.sched.Tasks()
	activated := s.sched.ActivatedCount(now)

	agents := make([][]model.Waypoint, 0, model.NumAgents)
	histories := make([]model.HistoryView, 0, model.NumAgents)
	for a := 0; a < model.NumAgents; a++ {
		moves, arrived := motion.Resolve(state.Agents[a], s.sched.StartPos(a+1), now)
		ss, tt := s.extendVisits(state.Windows[a], arrived)
		agents = append(agents, moves)
		histories = append(histories, model.HistoryView{Names: ss, Times: tt})
	}

	taskData := make([]model.TaskStatus, 0, activated)
	for i := 0; i < activated; i++ {
		total := 0
		if i < len(state.Totals) {
			total = state.Totals[i]
		}
		taskData = append(taskData, model.TaskStatus{
			Pattern: tasks[i].Pattern,
			Time:    tasks[i].Time,
			Weight:  tasks[i].Weight,
			Count:   state.Banked[tasks[i].Pattern],
			Total:   total,
		})
	}

	return &model.GameFrame{
		Type:        model.FrameGame,
		Now:         now,
		GamePeriod:  s.sched.Period(),
		MaxLenTask:  s.sched.MaxPatternLen(),
		Agent:       agents,
		Checkpoints: s.sched.Checkpoints(),
		Tasks:       taskData,
		History:     histories,
		UserID:      userID,
	}, nil
}

// extendVisits copies a bounded window into its string/times views and
// appends arrivals that happened but are not durably flushed yet. The
// scratch copy is never written back.
func (s *Service) extendVisits(window []occurrence.Entry, arrived []model.Waypoint) (string, []int64) {
	ss := occurrence.String(window)
	tt := occurrence.Times(window)
	for _, w := range arrived {
		name, ok := s.sched.CheckpointAt(model.Point{X: int(w.X), Y: int(w.Y)})
		if !ok || containsTime(tt, w.T) {
			continue
		}
		tt = append(tt, w.T)
		ss += string(name)
	}
	return ss, tt
}

func containsTime(ts []int64, t int64) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}
