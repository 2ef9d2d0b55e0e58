package models

import "time"

// Game представляет набор правил, в рамках которого соревнуются агенты.
type Game struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
