package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Possible match results, always seen from player1's side.
const (
	ResultPlayer2Win = 0.0
	ResultDraw       = 0.5
	ResultPlayer1Win = 1.0
)

// Taint values written on a match when a report looks wrong.
const (
	TaintDuplicateReport = "duplicate_report"
	TaintMissingDuration = "missing_duration"
)

// AppendTaint adds taint to a comma separated taint list, keeping earlier
// entries and skipping repeats.
func AppendTaint(current *string, taint string) string {
	if current == nil || *current == "" {
		return taint
	}
	for _, t := range strings.Split(*current, ",") {
		if t == taint {
			return *current
		}
	}
	return *current + "," + taint
}

// ValidResult reports whether r is one of 0, 0.5 or 1.
func ValidResult(r float64) bool {
	return r == ResultPlayer2Win || r == ResultDraw || r == ResultPlayer1Win
}

type Match struct {
	ID              int        `json:"id" db:"id"`
	TournamentID    int        `json:"tournament_id" db:"tournament_id"`
	GameID          int        `json:"game_id" db:"game_id"`
	SeasonID        int        `json:"season_id" db:"season_id"`
	Player1ID       int        `json:"player1_id" db:"player1_id"`
	Player2ID       int        `json:"player2_id" db:"player2_id"`
	Ran             bool       `json:"ran" db:"ran"`
	RanAt           *time.Time `json:"ran_at,omitempty" db:"ran_at"`
	Result          *float64   `json:"result,omitempty" db:"result"`
	Data            MatchData  `json:"data" db:"data"`
	EndReason       *string    `json:"end_reason,omitempty" db:"end_reason"`
	Taint           *string    `json:"taint,omitempty" db:"taint"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty" db:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Outcome returns the result for player1 once the match has been played.
func (m *Match) Outcome() (float64, bool) {
	if !m.Ran || m.Result == nil {
		return 0, false
	}
	return *m.Result, true
}

// MatchData is the audit payload stored in matches.data (JSONB). Elo maps are
// keyed by the agent id in decimal form.
type MatchData struct {
	EloBefore map[string]float64 `json:"elo_before,omitempty"`
	EloAfter  map[string]float64 `json:"elo_after,omitempty"`
	EloChange map[string]float64 `json:"elo_change,omitempty"`
	Outcome   json.RawMessage    `json:"outcome,omitempty"`
}

// Rated reports whether the rating engine already wrote its audit trail.
func (d MatchData) Rated() bool {
	return len(d.EloBefore) > 0 || len(d.EloAfter) > 0 || len(d.EloChange) > 0
}

// ClearRatings drops the audit trail, keeping the worker supplied outcome.
func (d *MatchData) ClearRatings() {
	d.EloBefore = nil
	d.EloAfter = nil
	d.EloChange = nil
}

// EloChangeFor returns the recorded change for an agent, if any.
func (d MatchData) EloChangeFor(agentID int) (float64, bool) {
	v, ok := d.EloChange[AgentKey(agentID)]
	return v, ok
}

// AgentKey formats an agent id the way the audit payload keys it.
func AgentKey(agentID int) string {
	return strconv.Itoa(agentID)
}

func (d MatchData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match data: %w", err)
	}
	return b, nil
}

func (d *MatchData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = MatchData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("match data: unsupported source type")
	}
	if len(raw) == 0 {
		*d = MatchData{}
		return nil
	}
	var out MatchData
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal match data: %w", err)
	}
	*d = out
	return nil
}
