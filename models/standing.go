package models

// Standing is one agent's accumulated result inside a tournament. It is
// derived from the tournament's matches and never persisted.
type Standing struct {
	AgentID int     `json:"agent_id"`
	Score   float64 `json:"score"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Draws   int     `json:"draws"`
}
