package models

import "time"

type TrophyType string

const (
	TrophyFirst  TrophyType = "FIRST"
	TrophySecond TrophyType = "SECOND"
	TrophyThird  TrophyType = "THIRD"
)

// PlacementTrophies maps a 1-based placement to its trophy.
var PlacementTrophies = []TrophyType{TrophyFirst, TrophySecond, TrophyThird}

type Trophy struct {
	ID           int        `json:"id" db:"id"`
	AgentID      int        `json:"agent_id" db:"agent_id"`
	GameID       int        `json:"game_id" db:"game_id"`
	SeasonID     int        `json:"season_id" db:"season_id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Type         TrophyType `json:"type" db:"type"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
