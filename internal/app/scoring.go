package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/okian/gridrace/internal/adapters/store"
	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/occurrence"
	"github.com/okian/gridrace/internal/domain/schedule"
	"github.com/okian/gridrace/pkg/logger"
	"github.com/okian/gridrace/pkg/metrics"
)

// Scoring engine pacing, in contest milliseconds.
const (
	// scoreLag keeps the engine a second behind the live edge so move
	// transactions racing the scan have settled.
	scoreLag = 1000
	// scoreCadence is the target wall time per cycle.
	scoreCadence = 2000
	// rankingSnapshotPeriod is the durable snapshot interval.
	rankingSnapshotPeriod = 60_000
)

// Engine is the background scoring and ranking loop. It is the second,
// independent consumer of the durable history logs; its per-user scanners
// share nothing with the live request path.
type Engine struct {
	sched *schedule.Schedule
	store store.Store
	log   logger.Logger

	scanners map[string]*occurrence.Scanner
	taskDefs []occurrence.TaskDef

	lastSnapshot int64
}

// NewEngine creates the scoring engine.
func NewEngine(sched *schedule.Schedule, st store.Store) *Engine {
	defs := make([]occurrence.TaskDef, 0, len(sched.Tasks()))
	for _, t := range sched.Tasks() {
		defs = append(defs, occurrence.TaskDef{Pattern: t.Pattern, Time: t.Time})
	}
	return &Engine{
		sched:        sched,
		store:        st,
		log:          logger.Get().Named("scoring"),
		scanners:     make(map[string]*occurrence.Scanner),
		taskDefs:     defs,
		lastSnapshot: -(1 << 30),
	}
}

// scanReader adapts the store to the scanner's per-agent reads.
type scanReader struct {
	ctx    context.Context
	st     store.Store
	sched  *schedule.Schedule
	userID string
}

func (r scanReader) HistoryFrom(agent, cursor int) []occurrence.Entry {
	return r.st.HistoryFrom(r.ctx, r.userID, agent, cursor)
}

func (r scanReader) LiveArrivals(agent int) []occurrence.Entry {
	var out []occurrence.Entry
	for _, w := range r.st.LiveWaypoints(r.ctx, r.userID, agent) {
		name, ok := r.sched.CheckpointAt(model.Point{X: int(w.X), Y: int(w.Y)})
		if !ok {
			continue
		}
		out = append(out, occurrence.Entry{Name: name, Time: w.T})
	}
	return out
}

// Run executes scoring cycles until the contest has ended and a final
// snapshot past the boundary has been taken, or ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := e.sched.Now() - scoreLag
		if now >= 0 {
			if done := e.cycle(ctx, now); done {
				e.log.Info(ctx, "scoring finished", logger.Int64("now", now))
				return
			}
		}

		elapsed := e.sched.Now() - scoreLag - now
		if elapsed < scoreCadence {
			time.Sleep(time.Duration(scoreCadence-elapsed) * time.Millisecond)
		}
	}
}

// cycle runs one scoring pass at contest time now. It reports true once
// the final post-period snapshot has been taken.
func (e *Engine) cycle(ctx context.Context, now int64) bool {
	start := time.Now()

	users := e.store.Users(ctx)
	counters := make(map[string][]int, len(users))
	for _, userID := range users {
		sc, ok := e.scanners[userID]
		if !ok {
			sc = occurrence.NewScanner(e.taskDefs, e.sched.MaxPatternLen())
			e.scanners[userID] = sc
		}
		counters[userID] = sc.Extend(scanReader{ctx: ctx, st: e.store, sched: e.sched, userID: userID}, now)
	}
	metrics.UpdateScoringUsersScanned(len(users))

	activated := e.sched.ActivatedCount(now)
	totals := make([]int, activated)
	for _, c := range counters {
		for i := range c {
			totals[i] += c[i]
		}
	}

	// Each completer's share of a task is inversely proportional to how
	// many completions exist globally.
	tasks := e.sched.Tasks()
	scores := make(map[string]float64)
	for i := 0; i < activated; i++ {
		if totals[i] == 0 {
			continue
		}
		for userID, c := range counters {
			if c[i] > 0 {
				scores[userID] += float64(tasks[i].Weight) * float64(c[i]) / float64(totals[i])
			}
		}
	}

	ranking := rank(scores, users)
	e.publish(ctx, ranking, totals)

	done := false
	if now >= e.lastSnapshot+rankingSnapshotPeriod {
		byPattern := make(map[string]int, activated)
		for i := 0; i < activated; i++ {
			byPattern[tasks[i].Pattern] = totals[i]
		}
		e.store.SaveRankingSnapshot(ctx, now, byPattern, ranking)
		e.lastSnapshot = now
		e.log.Info(ctx, "ranking snapshot", logger.Int64("now", now))
		if now > e.sched.Period() {
			done = true
		}
	}

	e.store.SetLiveTotals(ctx, totals)
	metrics.RecordScoringCycleDuration(float64(time.Since(start).Milliseconds()))
	return done
}

// rank orders scored users by descending score with ties broken by
// ascending user id, appends the zero-score users after them under the
// same tie-break, and assigns 1-based ranks where equal scores share the
// predecessor's rank.
func rank(scores map[string]float64, users []string) []model.RankingEntry {
	entries := make([]model.RankingEntry, 0, len(users))
	for userID, score := range scores {
		entries = append(entries, model.RankingEntry{Point: score, UserID: userID})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Point != entries[j].Point {
			return entries[i].Point > entries[j].Point
		}
		return entries[i].UserID < entries[j].UserID
	})

	zeros := make([]string, 0)
	for _, userID := range users {
		if _, ok := scores[userID]; !ok {
			zeros = append(zeros, userID)
		}
	}
	sort.Strings(zeros)
	for _, userID := range zeros {
		entries = append(entries, model.RankingEntry{Point: 0, UserID: userID})
	}

	for i := range entries {
		switch {
		case i == 0:
			entries[i].Rank = 1
		case entries[i].Point == entries[i-1].Point:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = i + 1
		}
	}
	return entries
}

// publish sends the ranking delta to every user: the top entries, with
// the last slot personalized for users ranked beyond them.
func (e *Engine) publish(ctx context.Context, ranking []model.RankingEntry, totals []int) {
	if len(ranking) == 0 {
		return
	}

	top := make([]model.RankingEntry, 0, model.NumRanking)
	for i := 0; i < len(ranking) && i < model.NumRanking; i++ {
		top = append(top, ranking[i])
	}

	payload, err := json.Marshal(model.RankingFrame{Type: model.FrameRanking, Ranking: top, TaskTotal: totals})
	if err != nil {
		e.log.Error(ctx, "marshal ranking", logger.Error(err))
		return
	}

	for i, entry := range ranking {
		if i >= model.NumRanking {
			top[model.NumRanking-1] = entry
			payload, err = json.Marshal(model.RankingFrame{Type: model.FrameRanking, Ranking: top, TaskTotal: totals})
			if err != nil {
				e.log.Error(ctx, "marshal ranking", logger.Error(err))
				return
			}
		}
		e.store.Publish(entry.UserID, store.Message{Kind: store.MessageRanking, Payload: payload})
	}
}
