package model

// Wire shapes for the HTTP API and the event stream. Every response is an
// explicit struct; field names follow the published client protocol.

// Status values shared by the JSON endpoints.
const (
	StatusOK           = "ok"
	StatusTimeLimit    = "error_time_limit"
	StatusNotFound     = "error_not_found"
	StatusGameFinished = "game_finished"
)

// Stream frame types.
const (
	FrameGame         = "game"
	FrameMove         = "move"
	FrameTask         = "task"
	FrameRanking      = "ranking"
	FrameDisconnected = "disconnected"
	FrameGameFinished = "game_finished"
	FrameTimeLimit    = "error_time_limit"
)

// StatusResponse is the body of any endpoint answering with a bare status.
type StatusResponse struct {
	Status string `json:"status"`
}

// MasterData is the static contest configuration served at /api/master_data.
type MasterData struct {
	GamePeriod  int64   `json:"game_period"`
	MaxLenTask  int     `json:"max_len_task"`
	NumAgent    int     `json:"num_agent"`
	Checkpoints []Point `json:"checkpoints"`
	AreaSize    int     `json:"area_size"`
}

// AgentSnapshot is one agent's slice of a full game snapshot.
type AgentSnapshot struct {
	Move         []Waypoint `json:"move"`
	History      string     `json:"history"`
	HistoryTimes []int64    `json:"history_times"`
}

// TaskCount is an activated task with the querying user's personal count
// and the global completion total.
type TaskCount struct {
	Pattern string `json:"s"`
	Time    int64  `json:"t"`
	Weight  int    `json:"weight"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
}

// TaskInfo describes a task without counts; used by /api/task.
type TaskInfo struct {
	Pattern string `json:"s"`
	Time    int64  `json:"t"`
	Weight  int    `json:"weight"`
}

// GameResponse is the body of a successful /api/game call.
type GameResponse struct {
	Status   string          `json:"status"`
	Now      int64           `json:"now"`
	Agent    []AgentSnapshot `json:"agent"`
	Task     []TaskCount     `json:"task"`
	NextTask int64           `json:"next_task"`
}

// MoveResponse is the body of a successful /api/move or /api/move_next call.
type MoveResponse struct {
	Status string     `json:"status"`
	Now    int64      `json:"now"`
	Move   []Waypoint `json:"move"`
}

// TaskResponse is the body of a successful /api/task call.
type TaskResponse struct {
	Status   string     `json:"status"`
	Task     []TaskInfo `json:"task"`
	NextTask int64      `json:"next_task"`
}

// TaskStatus is an activated task inside the stream's initial game frame.
type TaskStatus struct {
	Pattern string `json:"s"`
	Time    int64  `json:"t"`
	Weight  int    `json:"w"`
	Count   int    `json:"c"`
	Total   int    `json:"total"`
}

// TaskReveal announces a newly activated task on the stream.
type TaskReveal struct {
	Pattern string `json:"s"`
	Time    int64  `json:"t"`
	Weight  int    `json:"w"`
}

// HistoryView is a bounded checkpoint-visit log inside the game frame.
type HistoryView struct {
	Names string  `json:"s"`
	Times []int64 `json:"t"`
}

// GameFrame is the first frame of an event stream.
type GameFrame struct {
	Type        string        `json:"type"`
	Now         int64         `json:"now"`
	GamePeriod  int64         `json:"game_period"`
	MaxLenTask  int           `json:"max_len_task"`
	Agent       [][]Waypoint  `json:"agent"`
	Checkpoints []Point       `json:"checkpoints"`
	Tasks       []TaskStatus  `json:"tasks"`
	History     []HistoryView `json:"history"`
	UserID      string        `json:"userId"`
}

// MoveFrame relays one applied move transaction on the stream.
type MoveFrame struct {
	Type string     `json:"type"`
	Idx  int        `json:"idx"`
	Now  int64      `json:"now"`
	Move []Waypoint `json:"move"`
}

// TaskFrame batches newly activated tasks on the stream.
type TaskFrame struct {
	Type  string       `json:"type"`
	Tasks []TaskReveal `json:"tasks"`
}

// RankingFrame carries a ranking delta on the stream.
type RankingFrame struct {
	Type      string         `json:"type"`
	Ranking   []RankingEntry `json:"ranking"`
	TaskTotal []int          `json:"taskTotal"`
}

// StatusFrame is a terminal or error frame on the stream.
type StatusFrame struct {
	Type string `json:"type"`
}
