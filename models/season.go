package models

import "time"

type Season struct {
	ID              int        `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Active          bool       `json:"active" db:"active"`
	Main            bool       `json:"main" db:"main"`
	StartDate       *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty" db:"end_date"`
	IsAutomated     bool       `json:"is_automated" db:"is_automated"`
	AutomatedNumber *int       `json:"automated_number,omitempty" db:"automated_number"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Ended reports whether the season window closed before now.
func (s *Season) Ended(now time.Time) bool {
	return s.EndDate != nil && s.EndDate.Before(now)
}
