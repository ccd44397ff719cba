package api

import (
	"net/http"
	"strings"
)

// GameHandler serves the full per-user snapshot.
type GameHandler struct {
	deps Dependencies
}

// NewGameHandler creates a new game handler.
func NewGameHandler(deps Dependencies) *GameHandler {
	return &GameHandler{deps: deps}
}

// HandleGame handles GET /api/game/<token>.
func (h *GameHandler) HandleGame(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/api/game/")
	if !reToken.MatchString(token) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := h.deps.Game(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MasterDataHandler serves the static contest configuration.
type MasterDataHandler struct {
	deps Dependencies
}

// NewMasterDataHandler creates a new master data handler.
func NewMasterDataHandler(deps Dependencies) *MasterDataHandler {
	return &MasterDataHandler{deps: deps}
}

// HandleMasterData handles GET /api/master_data. It is a 404 before the
// contest starts.
func (h *MasterDataHandler) HandleMasterData(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/master_data" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	data, err := h.deps.MasterData(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
