package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	service "github.com/okian/gridrace/internal/app"
	"github.com/okian/gridrace/pkg/logger"
	"github.com/okian/gridrace/pkg/metrics"
)

// EventsHandler serves the live server-sent event stream.
type EventsHandler struct {
	deps Dependencies
	log  logger.Logger
	open atomic.Int64
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps, log: logger.Get().Named("events")}
}

// HandleEvent handles GET /event/<token> as a text/event-stream.
func (h *EventsHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/event/")
	if !reToken.MatchString(token) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	stream, err := h.deps.OpenStream(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBeforeStart):
			w.WriteHeader(http.StatusForbidden)
		case errors.Is(err, service.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		default:
			writeServiceError(w, err)
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	// Avoid response buffering in fronting proxies.
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.UpdateOpenStreams(int(h.open.Add(1)))
	defer func() {
		metrics.UpdateOpenStreams(int(h.open.Add(-1)))
	}()

	send := func(f service.Frame) error {
		var err error
		if f.Event != "" {
			_, err = w.Write([]byte("event: " + f.Event + "\ndata: \n\n"))
		} else {
			if _, err = w.Write([]byte("data: ")); err == nil {
				if _, err = w.Write(f.Data); err == nil {
					_, err = w.Write([]byte("\n\n"))
				}
			}
		}
		if err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := stream.Run(r.Context(), send); err != nil && !errors.Is(err, context.Canceled) {
		// Transport failures end the stream silently; anything else is
		// worth a line.
		h.log.Warn(r.Context(), "stream ended", logger.Error(err))
	}
}
