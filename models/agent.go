package models

import "time"

// Agent is a competing program. Agents are soft-disabled through Active and
// never removed while they have match history.
type Agent struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int       `json:"owner_id" db:"owner_id"`
	GameID    int       `json:"game_id" db:"game_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
