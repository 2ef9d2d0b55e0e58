package models

import "time"

// AgentRating хранит рейтинг агента в рамках одной пары (игра, сезон).
type AgentRating struct {
	ID        int       `json:"id" db:"id"`
	AgentID   int       `json:"agent_id" db:"agent_id"`
	GameID    int       `json:"game_id" db:"game_id"`
	SeasonID  int       `json:"season_id" db:"season_id"`
	Wins      int       `json:"wins" db:"wins"`
	Losses    int       `json:"losses" db:"losses"`
	Draws     int       `json:"draws" db:"draws"`
	Score     float64   `json:"score" db:"score"`
	Elo       float64   `json:"elo" db:"elo"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Agent *Agent `json:"agent,omitempty" db:"-"`
}
