package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/gridrace/internal/adapters/http/api"
	"github.com/okian/gridrace/internal/adapters/store"
	service "github.com/okian/gridrace/internal/app"
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

// fakeDeps scripts the handler dependencies per test.
type fakeDeps struct {
	masterData func(ctx context.Context) ([]byte, error)
	game       func(ctx context.Context, token string) (*model.GameResponse, error)
	move       func(ctx context.Context, token string, idx, x, y int, queueNext bool) (*model.MoveResponse, error)
	task       func(ctx context.Context, token string, taskTime int64) (*model.TaskResponse, error)
	openStream func(ctx context.Context, token string) (*service.Stream, error)
}

func (d *fakeDeps) MasterData(ctx context.Context) ([]byte, error) {
	return d.masterData(ctx)
}

func (d *fakeDeps) Game(ctx context.Context, token string) (*model.GameResponse, error) {
	return d.game(ctx, token)
}

func (d *fakeDeps) Move(ctx context.Context, token string, idx, x, y int, queueNext bool) (*model.MoveResponse, error) {
	return d.move(ctx, token, idx, x, y, queueNext)
}

func (d *fakeDeps) Task(ctx context.Context, token string, taskTime int64) (*model.TaskResponse, error) {
	return d.task(ctx, token, taskTime)
}

func (d *fakeDeps) OpenStream(ctx context.Context, token string) (*service.Stream, error) {
	return d.openStream(ctx, token)
}

func serve(deps api.Dependencies, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		deps := &fakeDeps{}

		Convey("Then health answers a bare 200", func() {
			rec := serve(deps, http.MethodGet, "/api/health")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.Len(), ShouldEqual, 0)
		})

		Convey("Then every response allows any origin", func() {
			rec := serve(deps, http.MethodGet, "/api/health")
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then metrics exposes the service registry", func() {
			rec := serve(deps, http.MethodGet, "/metrics")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "gridrace_")
		})
	})
}

func TestMasterDataHandler(t *testing.T) {
	Convey("Given the master data endpoint", t, func() {
		Convey("When the contest is running", func() {
			deps := &fakeDeps{masterData: func(context.Context) ([]byte, error) {
				return []byte(`{"game_period":1000}`), nil
			}}
			rec := serve(deps, http.MethodGet, "/api/master_data")

			Convey("Then the precomputed JSON is passed through", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")
				So(rec.Body.String(), ShouldEqual, `{"game_period":1000}`)
			})
		})

		Convey("When the contest has not started", func() {
			deps := &fakeDeps{masterData: func(context.Context) ([]byte, error) {
				return nil, service.ErrBeforeStart
			}}
			rec := serve(deps, http.MethodGet, "/api/master_data")

			Convey("Then the endpoint is a 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When extra path segments are appended", func() {
			deps := &fakeDeps{}
			rec := serve(deps, http.MethodGet, "/api/master_data/extra")

			Convey("Then the request is a 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestGameHandler(t *testing.T) {
	Convey("Given the game endpoint", t, func() {
		Convey("When the token fails the grammar", func() {
			deps := &fakeDeps{}

			Convey("Then uppercase, empty and slashed tokens are 404s", func() {
				So(serve(deps, http.MethodGet, "/api/game/ABC").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/game/").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/game/abc/extra").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the snapshot succeeds", func() {
			deps := &fakeDeps{game: func(_ context.Context, token string) (*model.GameResponse, error) {
				So(token, ShouldEqual, "abc123")
				return &model.GameResponse{Status: model.StatusOK, Now: 42, NextTask: -1}, nil
			}}
			rec := serve(deps, http.MethodGet, "/api/game/abc123")

			Convey("Then the snapshot body is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp model.GameResponse
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, model.StatusOK)
				So(resp.Now, ShouldEqual, 42)
			})
		})

		Convey("When the service reports a lifecycle outcome", func() {
			cases := map[error]string{
				service.ErrTimeLimited:  model.StatusTimeLimit,
				service.ErrGameFinished: model.StatusGameFinished,
			}
			for errCase, wantStatus := range cases {
				errCase, wantStatus := errCase, wantStatus
				deps := &fakeDeps{game: func(context.Context, string) (*model.GameResponse, error) {
					return nil, errCase
				}}
				rec := serve(deps, http.MethodGet, "/api/game/abc123")

				So(rec.Code, ShouldEqual, http.StatusOK)
				var resp model.StatusResponse
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, wantStatus)
			}
		})

		Convey("When the service fails unexpectedly", func() {
			deps := &fakeDeps{game: func(context.Context, string) (*model.GameResponse, error) {
				return nil, context.DeadlineExceeded
			}}
			rec := serve(deps, http.MethodGet, "/api/game/abc123")

			Convey("Then the diagnostic lands in a 500", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "deadline")
			})
		})
	})
}

func TestMoveHandler(t *testing.T) {
	Convey("Given the move endpoints", t, func() {
		Convey("When the arguments fail the grammar", func() {
			deps := &fakeDeps{}

			Convey("Then malformed paths are 404s", func() {
				So(serve(deps, http.MethodGet, "/api/move/abc123").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/abc123/1-2").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/abc123/1-2-3-4").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/ABC/1-2-3").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/abc123/01-2-3").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/abc123/x-2-3").Code, ShouldEqual, http.StatusNotFound)
				So(serve(deps, http.MethodGet, "/api/move/abc123/1--2-3").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the arguments parse", func() {
			var got struct {
				token     string
				idx, x, y int
				queueNext bool
			}
			deps := &fakeDeps{move: func(_ context.Context, token string, idx, x, y int, queueNext bool) (*model.MoveResponse, error) {
				got.token, got.idx, got.x, got.y, got.queueNext = token, idx, x, y, queueNext
				return &model.MoveResponse{Status: model.StatusOK, Now: 7}, nil
			}}

			Convey("Then /api/move/ reroutes immediately", func() {
				rec := serve(deps, http.MethodGet, "/api/move/abc123/2-10-30")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(got.token, ShouldEqual, "abc123")
				So(got.idx, ShouldEqual, 2)
				So(got.x, ShouldEqual, 10)
				So(got.y, ShouldEqual, 30)
				So(got.queueNext, ShouldBeFalse)
			})

			Convey("Then /api/move_next/ queues the leg", func() {
				rec := serve(deps, http.MethodGet, "/api/move_next/abc123/2-10-30")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(got.queueNext, ShouldBeTrue)
			})
		})

		Convey("When the rate limit aborts the request", func() {
			deps := &fakeDeps{move: func(context.Context, string, int, int, int, bool) (*model.MoveResponse, error) {
				return nil, service.ErrTimeLimited
			}}
			rec := serve(deps, http.MethodGet, "/api/move/abc123/1-2-3")

			Convey("Then the structured time-limit body is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, `{"status":"error_time_limit"}`)
			})
		})
	})
}

func TestTaskHandler(t *testing.T) {
	Convey("Given the task endpoint", t, func() {
		Convey("When the arguments fail the grammar", func() {
			deps := &fakeDeps{}

			So(serve(deps, http.MethodGet, "/api/task/abc123").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/api/task/abc123/-5").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/api/task/abc123/12.5").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/api/task/ABC/100").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the query succeeds", func() {
			deps := &fakeDeps{task: func(_ context.Context, token string, taskTime int64) (*model.TaskResponse, error) {
				So(token, ShouldEqual, "abc123")
				So(taskTime, ShouldEqual, 60000)
				return &model.TaskResponse{
					Status:   model.StatusOK,
					Task:     []model.TaskInfo{{Pattern: "AB", Time: 60000, Weight: 100}},
					NextTask: -1,
				}, nil
			}}
			rec := serve(deps, http.MethodGet, "/api/task/abc123/60000")

			Convey("Then the activation list is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp model.TaskResponse
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Task, ShouldHaveLength, 1)
				So(resp.Task[0].Pattern, ShouldEqual, "AB")
			})
		})

		Convey("When no task activates at the time", func() {
			deps := &fakeDeps{task: func(context.Context, string, int64) (*model.TaskResponse, error) {
				return nil, service.ErrNoTaskAtTime
			}}
			rec := serve(deps, http.MethodGet, "/api/task/abc123/100")

			Convey("Then the structured not-found body is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, `{"status":"error_not_found"}`)
			})
		})
	})
}

func TestEventsHandlerAdmission(t *testing.T) {
	Convey("Given stream admission over HTTP", t, func() {
		Convey("When the token fails the grammar", func() {
			deps := &fakeDeps{}
			So(serve(deps, http.MethodGet, "/event/ABC").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the contest has not started", func() {
			deps := &fakeDeps{openStream: func(context.Context, string) (*service.Stream, error) {
				return nil, service.ErrBeforeStart
			}}
			So(serve(deps, http.MethodGet, "/event/abc123").Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("When the token is unknown", func() {
			deps := &fakeDeps{openStream: func(context.Context, string) (*service.Stream, error) {
				return nil, service.ErrNotFound
			}}
			So(serve(deps, http.MethodGet, "/event/abc123").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEventsHandlerStream(t *testing.T) {
	Convey("Given a live event stream over HTTP", t, func() {
		cps := make(map[string]model.Point, 26)
		for i := 0; i < 26; i++ {
			cps[string(rune('A'+i))] = model.Point{X: i, Y: 29}
		}
		sched, err := schedule.New(time.Now().UnixMilli()-1000, 3_600_000, cps, []schedule.Task{
			{Pattern: "AB", Time: 0, Weight: 100},
		})
		So(err, ShouldBeNil)

		ctx := context.Background()
		m := store.NewMemory(ctx, sched, store.WithSeedUsers([]schedule.SeedUser{
			{Token: "tok1", UserID: "user1"},
		}))
		svc := service.New(sched, m, service.WithSettleInterval(0))

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a client connects", func() {
			resp, err := http.Get(srv.URL + "/event/tok1")
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			Convey("Then the response is a well-formed SSE stream", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")
				So(resp.Header.Get("Cache-Control"), ShouldEqual, "no-cache")

				reader := bufio.NewReader(resp.Body)
				line, err := reader.ReadString('\n')
				So(err, ShouldBeNil)
				So(line, ShouldStartWith, "data: ")

				var frame model.GameFrame
				So(json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &frame), ShouldBeNil)
				So(frame.Type, ShouldEqual, model.FrameGame)
				So(frame.UserID, ShouldEqual, "user1")
			})
		})
	})
}
