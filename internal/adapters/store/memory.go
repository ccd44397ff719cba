package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/motion"
	"github.com/okian/gridrace/internal/domain/occurrence"
	"github.com/okian/gridrace/internal/domain/schedule"
	"github.com/okian/gridrace/pkg/logger"
	"github.com/okian/gridrace/pkg/metrics"
)

// userData is the authoritative state for one user. Its mutex makes every
// transaction touching the user an indivisible unit.
type userData struct {
	mu      sync.Mutex
	agents  [model.NumAgents]motion.Path
	windows [model.NumAgents][]occurrence.Entry
	durable [model.NumAgents][]occurrence.Entry
	banked  map[string]int
}

// RankingSnapshot is one durable ranking record.
type RankingSnapshot struct {
	Time    int64
	Totals  map[string]int
	Ranking []model.RankingEntry
}

// Memory implements Store in process. The token and user tables are fixed
// at construction; all per-user state mutates only under the user's lock.
type Memory struct {
	sched *schedule.Schedule
	log   logger.Logger

	tokens map[string]string // token -> user id
	users  map[string]*userData
	order  []string // user ids in registration order

	locksMu sync.Mutex
	locks   map[string]int64

	totalsMu sync.RWMutex
	totals   []int

	rankMu    sync.Mutex
	rankTimes []int64
	rankings  map[int64]RankingSnapshot

	hub *hub

	seedUsers []schedule.SeedUser
	generate  int
}

// NewMemory creates the in-process coordination store.
func NewMemory(ctx context.Context, sched *schedule.Schedule, opts ...Option) *Memory {
	m := &Memory{
		sched:    sched,
		log:      logger.Get().Named("store"),
		tokens:   make(map[string]string),
		users:    make(map[string]*userData),
		locks:    make(map[string]int64),
		rankings: make(map[int64]RankingSnapshot),
		hub:      newHub(),
	}

	for _, opt := range opts {
		opt(m)
	}

	for _, u := range m.seedUsers {
		m.register(ctx, u.Token, u.UserID)
	}
	for i := 0; i < m.generate; i++ {
		token := strings.ReplaceAll(uuid.NewString(), "-", "")
		id := strings.ReplaceAll(uuid.NewString(), "-", "")
		m.register(ctx, token, id)
		m.log.Info(ctx, "generated user", logger.String("user", id), logger.String("token", token))
	}

	return m
}

func (m *Memory) register(ctx context.Context, token, userID string) {
	if token == "" || userID == "" {
		m.log.Warn(ctx, "skipping user with empty token or id")
		return
	}
	m.tokens[token] = userID
	if _, ok := m.users[userID]; !ok {
		m.users[userID] = &userData{banked: make(map[string]int)}
		m.order = append(m.order, userID)
	}
}

// UserID resolves an opaque token to a user identifier.
func (m *Memory) UserID(_ context.Context, token string) (string, bool) {
	id, ok := m.tokens[token]
	return id, ok
}

// Users lists all known user identifiers in registration order.
func (m *Memory) Users(_ context.Context) []string {
	return append([]string(nil), m.order...)
}

// ReadUser returns an atomically consistent copy of a user's state.
func (m *Memory) ReadUser(_ context.Context, userID string) (UserState, error) {
	start := time.Now()
	u, ok := m.users[userID]
	if !ok {
		return UserState{}, ErrUnknownUser
	}

	var state UserState
	u.mu.Lock()
	state.Agents = u.agents
	for a := 0; a < model.NumAgents; a++ {
		state.Windows[a] = append([]occurrence.Entry(nil), u.windows[a]...)
	}
	state.Banked = make(map[string]int, len(u.banked))
	for k, v := range u.banked {
		state.Banked[k] = v
	}
	u.mu.Unlock()

	m.totalsMu.RLock()
	state.Totals = append([]int(nil), m.totals...)
	m.totalsMu.RUnlock()

	metrics.RecordStoreTxLatency("read_user", float64(time.Since(start).Milliseconds()))
	return state, nil
}

// Move applies a move request as one atomic transaction and broadcasts
// the resulting delta on the user's channel.
func (m *Memory) Move(_ context.Context, userID string, idx int, target model.Point, now int64, queueNext bool) ([]model.Waypoint, error) {
	start := time.Now()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}

	a := idx - 1
	u.mu.Lock()
	res := motion.Apply(u.agents[a], m.sched.StartPos(idx), target, now, queueNext)
	for _, w := range res.Flush {
		m.flushArrival(u, a, w)
	}
	if res.Changed {
		u.agents[a] = res.Path
	}
	m.hub.publish(userID, Message{Kind: MessageMove, Idx: idx, Time: now, Move: res.Moves})
	u.mu.Unlock()

	metrics.RecordMoveApplied()
	metrics.RecordStoreTxLatency("move", float64(time.Since(start).Milliseconds()))
	return res.Moves, nil
}

// flushArrival appends one completed arrival to the durable log and the
// bounded window, banking evicted occurrences. Caller holds the user lock.
func (m *Memory) flushArrival(u *userData, a int, w model.Waypoint) {
	p := model.Point{X: int(w.X), Y: int(w.Y)}
	name, ok := m.sched.CheckpointAt(p)
	if !ok {
		return
	}
	e := occurrence.Entry{Name: name, Time: w.T}
	u.durable[a] = append(u.durable[a], e)
	u.windows[a] = occurrence.AppendBounded(u.windows[a], e, m.sched.MaxPatternLen(), m.sched, func(pattern string) {
		u.banked[pattern]++
	})
	metrics.RecordHistoryFlush()
}

// TimeLock is the atomic check-and-set rate-limit primitive.
func (m *Memory) TimeLock(_ context.Context, key string, now, window int64) (int64, bool) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	if t, ok := m.locks[key]; ok && now < t {
		metrics.RecordRateLimitDenial()
		return t, false
	}
	m.locks[key] = now + window
	return 0, true
}

// HistoryFrom reads a user's durable log at index cursor and beyond.
func (m *Memory) HistoryFrom(_ context.Context, userID string, agent, cursor int) []occurrence.Entry {
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if cursor >= len(u.durable[agent]) {
		return nil
	}
	return append([]occurrence.Entry(nil), u.durable[agent][cursor:]...)
}

// LiveWaypoints returns the present pending waypoints of one agent.
func (m *Memory) LiveWaypoints(_ context.Context, userID string, agent int) []model.Waypoint {
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.agents[agent]
	if p.N < 2 {
		return nil
	}
	ws := []model.Waypoint{p.W[1]}
	if p.N == 3 {
		ws = append(ws, p.W[2])
	}
	return ws
}

// SetLiveTotals republishes the shared global totals.
func (m *Memory) SetLiveTotals(_ context.Context, totals []int) {
	m.totalsMu.Lock()
	m.totals = append(m.totals[:0], totals...)
	m.totalsMu.Unlock()
}

// SaveRankingSnapshot durably records totals and ranking at a contest time.
func (m *Memory) SaveRankingSnapshot(_ context.Context, now int64, totals map[string]int, ranking []model.RankingEntry) {
	m.rankMu.Lock()
	defer m.rankMu.Unlock()
	m.rankings[now] = RankingSnapshot{
		Time:    now,
		Totals:  totals,
		Ranking: append([]model.RankingEntry(nil), ranking...),
	}
	m.rankTimes = append(m.rankTimes, now)
	metrics.RecordRankingSnapshot()
}

// RankingTimes lists recorded snapshot times in order.
func (m *Memory) RankingTimes(_ context.Context) []int64 {
	m.rankMu.Lock()
	defer m.rankMu.Unlock()
	return append([]int64(nil), m.rankTimes...)
}

// RankingAt returns the durable snapshot taken at a recorded time.
func (m *Memory) RankingAt(_ context.Context, now int64) (RankingSnapshot, bool) {
	m.rankMu.Lock()
	defer m.rankMu.Unlock()
	s, ok := m.rankings[now]
	return s, ok
}

// Subscribe opens a subscription on a user's channel.
func (m *Memory) Subscribe(userID string) *Subscription {
	return m.hub.subscribe(userID)
}

// Publish sends a message on a user's channel.
func (m *Memory) Publish(userID string, msg Message) {
	m.hub.publish(userID, msg)
}
