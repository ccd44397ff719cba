package api

import (
	"net/http"
	"strconv"
	"strings"
)

// TaskHandler serves task schedule queries.
type TaskHandler struct {
	deps Dependencies
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(deps Dependencies) *TaskHandler {
	return &TaskHandler{deps: deps}
}

// HandleTask handles GET /api/task/<token>/<time>, waiting for the
// activation when <time> is imminent.
func (h *TaskHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/task/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || !reToken.MatchString(parts[0]) || !reNum.MatchString(parts[1]) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	taskTime, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := h.deps.Task(r.Context(), parts[0], taskTime)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
