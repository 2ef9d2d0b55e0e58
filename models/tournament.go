package models

import "time"

// TournamentMode определяет, как турнир генерирует матчи.
type TournamentMode string

const (
	ModeRoundRobin       TournamentMode = "ROUND_ROBIN"
	ModeDoubleRoundRobin TournamentMode = "DOUBLE_ROUND_ROBIN"
	ModeTripleRoundRobin TournamentMode = "TRIPLE_ROUND_ROBIN"
	ModeTimed            TournamentMode = "TIMED"
)

func (m TournamentMode) Valid() bool {
	switch m {
	case ModeRoundRobin, ModeDoubleRoundRobin, ModeTripleRoundRobin, ModeTimed:
		return true
	}
	return false
}

// Rounds is the number of full brackets generated at once. Timed tournaments
// generate one bracket every time they run low on pending matches.
func (m TournamentMode) Rounds() int {
	switch m {
	case ModeDoubleRoundRobin:
		return 2
	case ModeTripleRoundRobin:
		return 3
	default:
		return 1
	}
}

// TournamentState is the orchestrator's view of a tournament.
type TournamentState string

const (
	StateNeedsMatches TournamentState = "NEEDS_MATCHES"
	StateActive       TournamentState = "ACTIVE"
	StateDone         TournamentState = "DONE"
)

type Tournament struct {
	ID                int            `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	GameID            int            `json:"game_id" db:"game_id"`
	SeasonID          int            `json:"season_id" db:"season_id"`
	Mode              TournamentMode `json:"mode" db:"mode"`
	StartDate         *time.Time     `json:"start_date,omitempty" db:"start_date"`
	EndDate           *time.Time     `json:"end_date,omitempty" db:"end_date"`
	IsAutomated       bool           `json:"is_automated" db:"is_automated"`
	AutomatedNumber   *int           `json:"automated_number,omitempty" db:"automated_number"`
	Done              bool           `json:"done" db:"done"`
	TrophiesAwardedAt *time.Time     `json:"trophies_awarded_at,omitempty" db:"trophies_awarded_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`

	ParticipantIDs []int `json:"participant_ids,omitempty" db:"-"`
}

// InWindow reports whether now falls inside [StartDate, EndDate]. A missing
// bound never matches.
func (t *Tournament) InWindow(now time.Time) bool {
	if t.StartDate == nil || t.EndDate == nil {
		return false
	}
	return !now.Before(*t.StartDate) && !now.After(*t.EndDate)
}

// WindowElapsed reports whether a timed tournament's window is over.
func (t *Tournament) WindowElapsed(now time.Time) bool {
	return t.EndDate == nil || now.After(*t.EndDate)
}
