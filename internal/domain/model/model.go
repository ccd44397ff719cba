// Package model contains domain models passed between layers.
package model

// Contest-wide constants.
const (
	// NumAgents is the number of agents each user controls.
	NumAgents = 5
	// AreaSize is the side length of the grid; coordinates run [0, AreaSize].
	AreaSize = 30
	// NumRanking is the number of entries in a published ranking payload.
	NumRanking = 10
)

// Point is an integer grid position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Waypoint is one leg endpoint of an agent's trajectory. Positions are
// floats because a reroute mid-flight departs from an interpolated point.
type Waypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// RankingEntry is one row of a published ranking.
type RankingEntry struct {
	Point  float64 `json:"point"`
	UserID string  `json:"userId"`
	Rank   int     `json:"rank"`
}
