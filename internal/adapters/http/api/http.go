// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	service "github.com/okian/gridrace/internal/app"
	"github.com/okian/gridrace/internal/domain/model"
)

// URL argument grammar. Anything that fails these is a 404.
var (
	reNum   = regexp.MustCompile(`^([0-9]|[1-9][0-9]{1,8})$`)
	reToken = regexp.MustCompile(`^[0-9a-z]+$`)
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// MasterData returns the static contest configuration.
	MasterData(ctx context.Context) ([]byte, error)

	// Game returns the full per-user snapshot.
	Game(ctx context.Context, token string) (*model.GameResponse, error)

	// Move applies a move request; queueNext queues it after the
	// current leg.
	Move(ctx context.Context, token string, idx, x, y int, queueNext bool) (*model.MoveResponse, error)

	// Task returns the tasks activating at the given contest time.
	Task(ctx context.Context, token string, taskTime int64) (*model.TaskResponse, error)

	// OpenStream starts a live event stream session.
	OpenStream(ctx context.Context, token string) (*service.Stream, error)
}

// Server wires HTTP routes for the game API.
type Server struct {
	healthHandler *HealthHandler
	gameHandler   *GameHandler
	moveHandler   *MoveHandler
	taskHandler   *TaskHandler
	masterHandler *MasterDataHandler
	eventsHandler *EventsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		gameHandler:   NewGameHandler(deps),
		moveHandler:   NewMoveHandler(deps),
		taskHandler:   NewTaskHandler(deps),
		masterHandler: NewMasterDataHandler(deps),
		eventsHandler: NewEventsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/api/health", wrap(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("/api/master_data", wrap(s.masterHandler.HandleMasterData, "master_data"))
	mux.HandleFunc("/api/game/", wrap(s.gameHandler.HandleGame, "game"))
	mux.HandleFunc("/api/move/", wrap(s.moveHandler.HandleMove, "move"))
	mux.HandleFunc("/api/move_next/", wrap(s.moveHandler.HandleMoveNext, "move_next"))
	mux.HandleFunc("/api/task/", wrap(s.taskHandler.HandleTask, "task"))
	mux.HandleFunc("/event/", wrap(s.eventsHandler.HandleEvent, "event"))
	mux.HandleFunc("/metrics", wrap(s.healthHandler.HandleMetrics, "metrics"))
}

// wrap applies the CORS and metrics middleware to a handler.
func wrap(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return CORSMiddleware(MetricsMiddleware(next, endpoint))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError translates service sentinels onto the wire: structured
// status bodies for recoverable outcomes, 404 for unknowns and lifecycle
// gates, and a 500 with the full diagnostic text for everything else.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrBeforeStart):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, service.ErrTimeLimited):
		writeJSON(w, http.StatusOK, model.StatusResponse{Status: model.StatusTimeLimit})
	case errors.Is(err, service.ErrGameFinished):
		writeJSON(w, http.StatusOK, model.StatusResponse{Status: model.StatusGameFinished})
	case errors.Is(err, service.ErrNoTaskAtTime):
		writeJSON(w, http.StatusOK, model.StatusResponse{Status: model.StatusNotFound})
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
	}
}
