package api

import (
	"net/http"
	"strconv"
	"strings"
)

// MoveHandler serves move and move_next requests.
type MoveHandler struct {
	deps Dependencies
}

// NewMoveHandler creates a new move handler.
func NewMoveHandler(deps Dependencies) *MoveHandler {
	return &MoveHandler{deps: deps}
}

// HandleMove handles GET /api/move/<token>/<idx>-<x>-<y>: reroute now.
func (h *MoveHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, strings.TrimPrefix(r.URL.Path, "/api/move/"), false)
}

// HandleMoveNext handles GET /api/move_next/<token>/<idx>-<x>-<y>: queue
// the move after the current leg.
func (h *MoveHandler) HandleMoveNext(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, strings.TrimPrefix(r.URL.Path, "/api/move_next/"), true)
}

func (h *MoveHandler) handle(w http.ResponseWriter, r *http.Request, rest string, queueNext bool) {
	token, idx, x, y, ok := parseMoveArgs(rest)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := h.deps.Move(r.Context(), token, idx, x, y, queueNext)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseMoveArgs splits "<token>/<idx>-<x>-<y>" and validates the grammar.
func parseMoveArgs(rest string) (token string, idx, x, y int, ok bool) {
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return "", 0, 0, 0, false
	}
	args := strings.Split(parts[1], "-")
	if len(args) != 3 {
		return "", 0, 0, 0, false
	}
	if !reToken.MatchString(parts[0]) || !reNum.MatchString(args[0]) || !reNum.MatchString(args[1]) || !reNum.MatchString(args[2]) {
		return "", 0, 0, 0, false
	}

	idx, _ = strconv.Atoi(args[0])
	x, _ = strconv.Atoi(args[1])
	y, _ = strconv.Atoi(args[2])
	return parts[0], idx, x, y, true
}
