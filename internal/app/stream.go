package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/okian/gridrace/internal/adapters/store"
	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/pkg/metrics"
)

// Frame is one server-sent event. A nil Data with Event "ping" is a
// heartbeat.
type Frame struct {
	Event string
	Data  []byte
}

// Stream is one live event stream session. A session moves from
// connecting through streaming to terminated; at most one session per
// user is logically current, enforced by connect markers on the user's
// channel.
type Stream struct {
	svc         *Service
	userID      string
	connectTime int64
}

// OpenStream validates the token and stamps the connect time. The caller
// runs the session via Run.
func (s *Service) OpenStream(ctx context.Context, token string) (*Stream, error) {
	connectTime := s.sched.Now()
	if connectTime < 0 {
		return nil, ErrBeforeStart
	}
	userID, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Stream{svc: s, userID: userID, connectTime: connectTime}, nil
}

func statusFrame(kind string) Frame {
	data, _ := json.Marshal(model.StatusFrame{Type: kind})
	metrics.RecordStreamFrame(kind)
	return Frame{Data: data}
}

func dataFrame(kind string, v any) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	metrics.RecordStreamFrame(kind)
	return Frame{Data: data}, nil
}

// Run drives the session until it terminates: relaying move deltas,
// ranking deltas and task activations, heartbeating on idle, and ending
// on supersession, contest expiry or transport failure.
func (st *Stream) Run(ctx context.Context, send func(Frame) error) error {
	svc := st.svc

	if st.connectTime >= svc.sched.Period() {
		return send(statusFrame(model.FrameGameFinished))
	}

	// A single check, no wait loop: a colliding reconnect gets an
	// immediate contention frame.
	if _, granted := svc.store.TimeLock(ctx, "stream_"+st.userID, st.connectTime, streamWindow); !granted {
		return send(statusFrame(model.FrameTimeLimit))
	}

	// The marker invalidates any previously open stream for this user.
	// Publish before subscribing so this session never sees its own.
	svc.store.Publish(st.userID, store.Message{Kind: store.MessageConnect, Time: st.connectTime})

	sub := svc.store.Subscribe(st.userID)
	defer sub.Close()

	// Let in-flight deltas land on the subscription before snapshotting,
	// then snapshot as of the post-settle time.
	time.Sleep(svc.settleInterval)
	snapTime := svc.sched.Now()
	if snapTime >= svc.sched.Period() {
		return send(statusFrame(model.FrameGameFinished))
	}

	frame, err := svc.buildGameFrame(ctx, st.userID, snapTime)
	if err != nil {
		return err
	}
	f, err := dataFrame(model.FrameGame, frame)
	if err != nil {
		return err
	}
	if err := send(f); err != nil {
		return err
	}

	tasks := svc.sched.Tasks()
	taskIdx := 0
	for taskIdx < len(tasks) && tasks[taskIdx].Time <= snapTime {
		taskIdx++
	}

	for {
		select {
		case <-ctx.Done():
			// Transport disconnect; nothing more to send.
			return nil

		case msg := <-sub.C:
			switch msg.Kind {
			case store.MessageMove:
				// Deltas older than the snapshot are already covered.
				if msg.Time >= snapTime {
					f, err := dataFrame(model.FrameMove, model.MoveFrame{
						Type: model.FrameMove,
						Idx:  msg.Idx,
						Now:  msg.Time,
						Move: msg.Move,
					})
					if err != nil {
						return err
					}
					if err := send(f); err != nil {
						return err
					}
				}
			case store.MessageRanking:
				metrics.RecordStreamFrame(model.FrameRanking)
				if err := send(Frame{Data: msg.Payload}); err != nil {
					return err
				}
			case store.MessageConnect:
				if msg.Time != st.connectTime {
					if err := send(statusFrame(model.FrameDisconnected)); err != nil {
						return err
					}
					return nil
				}
			}

		case <-time.After(svc.heartbeatInterval):
			metrics.RecordStreamHeartbeat()
			if err := send(Frame{Event: "ping"}); err != nil {
				return err
			}
		}

		now := svc.sched.Now()
		if now >= svc.sched.Period() {
			return send(statusFrame(model.FrameGameFinished))
		}

		first := taskIdx
		for taskIdx < len(tasks) && tasks[taskIdx].Time <= now {
			taskIdx++
		}
		if taskIdx > first {
			reveal := make([]model.TaskReveal, 0, taskIdx-first)
			for i := first; i < taskIdx; i++ {
				reveal = append(reveal, model.TaskReveal{
					Pattern: tasks[i].Pattern,
					Time:    tasks[i].Time,
					Weight:  tasks[i].Weight,
				})
			}
			f, err := dataFrame(model.FrameTask, model.TaskFrame{Type: model.FrameTask, Tasks: reveal})
			if err != nil {
				return err
			}
			if err := send(f); err != nil {
				return err
			}
		}
	}
}
