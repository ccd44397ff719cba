package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/okian/gridrace/internal/adapters/store"
	"github.com/okian/gridrace/internal/domain/model"
	"github.com/okian/gridrace/internal/domain/schedule"
	"github.com/okian/gridrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func scoringCheckpoints() map[string]model.Point {
	cps := make(map[string]model.Point, 26)
	cps["A"] = model.Point{X: 10, Y: 0}
	cps["B"] = model.Point{X: 20, Y: 0}
	for i := 2; i < 26; i++ {
		cps[string(rune('A'+i))] = model.Point{X: i, Y: 29}
	}
	return cps
}

func scoringSchedule() *schedule.Schedule {
	s, err := schedule.New(1, 3_600_000, scoringCheckpoints(), []schedule.Task{
		{Pattern: "AB", Time: 0, Weight: 100},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// traceAB walks one user's agent 1 through A then B with explicit times,
// leaving the final arrival unflushed.
func traceAB(ctx context.Context, m *store.Memory, userID string) {
	if _, err := m.Move(ctx, userID, 1, model.Point{X: 10, Y: 0}, 0, false); err != nil {
		panic(err)
	}
	if _, err := m.Move(ctx, userID, 1, model.Point{X: 20, Y: 0}, 2000, false); err != nil {
		panic(err)
	}
}

func TestRank(t *testing.T) {
	Convey("Given the ranking assignment", t, func() {
		Convey("When scores tie", func() {
			ranking := rank(map[string]float64{
				"carol": 5,
				"bob":   10,
				"alice": 10,
			}, []string{"alice", "bob", "carol"})

			Convey("Then tied users share the rank and the next rank skips", func() {
				So(ranking, ShouldHaveLength, 3)
				So(ranking[0], ShouldResemble, model.RankingEntry{Point: 10, UserID: "alice", Rank: 1})
				So(ranking[1], ShouldResemble, model.RankingEntry{Point: 10, UserID: "bob", Rank: 1})
				So(ranking[2], ShouldResemble, model.RankingEntry{Point: 5, UserID: "carol", Rank: 3})
			})
		})

		Convey("When some users have no score", func() {
			ranking := rank(map[string]float64{"zoe": 4},
				[]string{"zoe", "dan", "bea", "ann"})

			Convey("Then they follow the scored users, ordered by id", func() {
				So(ranking[0].UserID, ShouldEqual, "zoe")
				So(ranking[1], ShouldResemble, model.RankingEntry{Point: 0, UserID: "ann", Rank: 2})
				So(ranking[2], ShouldResemble, model.RankingEntry{Point: 0, UserID: "bea", Rank: 2})
				So(ranking[3], ShouldResemble, model.RankingEntry{Point: 0, UserID: "dan", Rank: 2})
			})
		})

		Convey("When nobody has a score", func() {
			ranking := rank(nil, []string{"b", "a"})

			Convey("Then everyone ties at rank 1 in id order", func() {
				So(ranking[0], ShouldResemble, model.RankingEntry{Point: 0, UserID: "a", Rank: 1})
				So(ranking[1], ShouldResemble, model.RankingEntry{Point: 0, UserID: "b", Rank: 1})
			})
		})
	})
}

func TestEngineCycle(t *testing.T) {
	Convey("Given two users, one of whom completed the task", t, func() {
		ctx := context.Background()
		sched := scoringSchedule()
		m := store.NewMemory(ctx, sched, store.WithSeedUsers([]schedule.SeedUser{
			{Token: "tok1", UserID: "user1"},
			{Token: "tok2", UserID: "user2"},
		}))
		traceAB(ctx, m, "user1")

		e := NewEngine(sched, m)

		sub1 := m.Subscribe("user1")
		sub2 := m.Subscribe("user2")
		defer sub1.Close()
		defer sub2.Close()

		Convey("When a cycle runs past the arrivals", func() {
			done := e.cycle(ctx, 10_000)

			Convey("Then the contest is not done", func() {
				So(done, ShouldBeFalse)
			})

			Convey("Then the completer takes the task's full weight", func() {
				msg := <-sub1.C
				So(msg.Kind, ShouldEqual, store.MessageRanking)

				var frame model.RankingFrame
				So(json.Unmarshal(msg.Payload, &frame), ShouldBeNil)
				So(frame.TaskTotal, ShouldResemble, []int{1})
				So(frame.Ranking, ShouldHaveLength, 2)
				So(frame.Ranking[0], ShouldResemble, model.RankingEntry{Point: 100, UserID: "user1", Rank: 1})
				So(frame.Ranking[1], ShouldResemble, model.RankingEntry{Point: 0, UserID: "user2", Rank: 2})
			})

			Convey("Then every user receives the delta", func() {
				<-sub1.C
				msg := <-sub2.C
				So(msg.Kind, ShouldEqual, store.MessageRanking)
			})

			Convey("Then the live totals are republished", func() {
				st, err := m.ReadUser(ctx, "user1")
				So(err, ShouldBeNil)
				So(st.Totals, ShouldResemble, []int{1})
			})

			Convey("Then a durable snapshot is recorded", func() {
				So(m.RankingTimes(ctx), ShouldResemble, []int64{10_000})
				snap, ok := m.RankingAt(ctx, 10_000)
				So(ok, ShouldBeTrue)
				So(snap.Totals["AB"], ShouldEqual, 1)
			})
		})

		Convey("When cycles repeat inside the snapshot period", func() {
			So(e.cycle(ctx, 10_000), ShouldBeFalse)
			So(e.cycle(ctx, 12_000), ShouldBeFalse)
			So(e.cycle(ctx, 70_001), ShouldBeFalse)

			Convey("Then snapshots land only on the period boundary", func() {
				So(m.RankingTimes(ctx), ShouldResemble, []int64{10_000, 70_001})
			})

			Convey("Then repeated scans do not inflate the counts", func() {
				snap, ok := m.RankingAt(ctx, 70_001)
				So(ok, ShouldBeTrue)
				So(snap.Totals["AB"], ShouldEqual, 1)
			})
		})

		Convey("When a cycle snapshots past the contest period", func() {
			So(e.cycle(ctx, 10_000), ShouldBeFalse)

			Convey("Then it reports the engine done", func() {
				So(e.cycle(ctx, 3_600_001), ShouldBeTrue)
			})
		})
	})
}

func TestEnginePublishPersonalization(t *testing.T) {
	Convey("Given more users than published ranking slots", t, func() {
		ctx := context.Background()
		sched := scoringSchedule()

		users := make([]schedule.SeedUser, 0, 12)
		for i := 0; i < 12; i++ {
			id := fmt.Sprintf("user%02d", i)
			users = append(users, schedule.SeedUser{Token: "tok" + id, UserID: id})
		}
		m := store.NewMemory(ctx, sched, store.WithSeedUsers(users))
		e := NewEngine(sched, m)

		scores := make(map[string]float64, 12)
		ids := make([]string, 0, 12)
		for i := 0; i < 12; i++ {
			id := fmt.Sprintf("user%02d", i)
			scores[id] = float64(120 - i*10)
			ids = append(ids, id)
		}
		ranking := rank(scores, ids)

		subTop := m.Subscribe("user00")
		subLow := m.Subscribe("user11")
		defer subTop.Close()
		defer subLow.Close()

		Convey("When the ranking is published", func() {
			e.publish(ctx, ranking, []int{5})

			Convey("Then a top-ranked user sees the plain top ten", func() {
				var frame model.RankingFrame
				So(json.Unmarshal((<-subTop.C).Payload, &frame), ShouldBeNil)
				So(frame.Ranking, ShouldHaveLength, 10)
				So(frame.Ranking[9].UserID, ShouldEqual, "user09")
			})

			Convey("Then a lower-ranked user takes over the last slot", func() {
				var frame model.RankingFrame
				So(json.Unmarshal((<-subLow.C).Payload, &frame), ShouldBeNil)
				So(frame.Ranking, ShouldHaveLength, 10)
				So(frame.Ranking[8].UserID, ShouldEqual, "user08")
				So(frame.Ranking[9], ShouldResemble, model.RankingEntry{Point: 10, UserID: "user11", Rank: 12})
			})
		})
	})
}
