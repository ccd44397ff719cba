// Package store is the coordination store: the single owner of all durable
// game state. Every mutation runs as a named transaction under a per-user
// lock, giving the same isolation an external store with atomic scripting
// would, and a publish/subscribe channel is keyed per user.
package store

import (
	"context"

	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/motion"
	"github.com/okian/gridrace/internal/domain/occurrence"
)

// MessageKind discriminates messages on a user channel.
type MessageKind int

// The message kinds carried on a user channel.
const (
	// MessageMove is a move delta from a completed move transaction.
	MessageMove MessageKind = iota
	// MessageRanking carries a pre-marshaled ranking frame.
	MessageRanking
	// MessageConnect is a connect marker that supersedes older streams.
	MessageConnect
)

// Message is one pub/sub message on a user channel.
type Message struct {
	Kind MessageKind

	// Idx is the agent index for move deltas.
	Idx int
	// Time is the request time for move deltas and the connect time for
	// connect markers.
	Time int64
	// Move is the resulting waypoint list for move deltas.
	Move []model.Waypoint
	// Payload is the marshaled frame for ranking deltas.
	Payload []byte
}

// UserState is a consistent, deep-copied view of one user's game state.
type UserState struct {
	Agents  [model.NumAgents]motion.Path
	Windows [model.NumAgents][]occurrence.Entry
	Banked  map[string]int
	Totals  []int
}

// Store provides transactional access to all contest state.
type Store interface {
	// UserID resolves an opaque token to a user identifier.
	UserID(ctx context.Context, token string) (string, bool)

	// Users lists all known user identifiers.
	Users(ctx context.Context) []string

	// ReadUser returns an atomically consistent copy of a user's state.
	ReadUser(ctx context.Context, userID string) (UserState, error)

	// Move applies a move request as one atomic transaction: motion
	// rewrite, history flush, bounded-window banking and broadcast.
	// It returns the resulting waypoint list.
	Move(ctx context.Context, userID string, idx int, target model.Point, now int64, queueNext bool) ([]model.Waypoint, error)

	// TimeLock is the atomic rate-limit primitive keyed by
	// (actionType, user). If a recorded unlock time exists and now is
	// before it, that time is returned with granted=false and nothing
	// changes; otherwise the unlock time becomes now+window and
	// granted=true.
	TimeLock(ctx context.Context, key string, now, window int64) (unlock int64, granted bool)

	// HistoryFrom reads a user's unbounded durable log incrementally.
	HistoryFrom(ctx context.Context, userID string, agent, cursor int) []occurrence.Entry

	// LiveWaypoints returns the present pending waypoints (W1, then W2)
	// of one agent, for the scoring engine's live fold-in.
	LiveWaypoints(ctx context.Context, userID string, agent int) []model.Waypoint

	// SetLiveTotals republishes the global per-task totals to the shared
	// live key read by snapshots.
	SetLiveTotals(ctx context.Context, totals []int)

	// SaveRankingSnapshot durably records the per-task totals and full
	// ranking at a contest time, indexed by that time.
	SaveRankingSnapshot(ctx context.Context, now int64, totals map[string]int, ranking []model.RankingEntry)

	// RankingTimes lists the recorded snapshot times in order.
	RankingTimes(ctx context.Context) []int64

	// Subscribe opens a subscription on a user's channel.
	Subscribe(userID string) *Subscription

	// Publish sends a message on a user's channel.
	Publish(userID string, msg Message)
}
