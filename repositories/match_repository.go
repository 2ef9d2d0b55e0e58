package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/colosseum/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchInvalidRef    = errors.New("match references a missing tournament, agent or season")
	ErrMatchInvalidResult = errors.New("match result out of range")
)

type MatchRepository interface {
	// CreateBatch inserts all matches with a single statement and fills in their ids.
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// ListPendingIDs returns ids of matches not yet ran, oldest first.
	ListPendingIDs(ctx context.Context) ([]int, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (total int, pending int, err error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error)
	// ListPlayedBySeason returns ran matches of a season in replay order (ran_at, id).
	ListPlayedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Match, error)
	RecordResult(ctx context.Context, exec SQLExecutor, m *models.Match) error
	UpdateData(ctx context.Context, exec SQLExecutor, id int, data models.MatchData) error
	// ClearRatingsBySeason drops the elo audit keys of every match in a season.
	ClearRatingsBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error)
	SetTaint(ctx context.Context, exec SQLExecutor, id int, taint string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, game_id, season_id, player1_id, player2_id, ran, ran_at,
		result, data, end_reason, taint, duration_seconds, created_at`

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	var (
		result    sql.NullFloat64
		duration  sql.NullFloat64
		endReason sql.NullString
		taint     sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.GameID, &m.SeasonID, &m.Player1ID, &m.Player2ID, &m.Ran, &m.RanAt,
		&result, &m.Data, &endReason, &taint, &duration, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if result.Valid {
		m.Result = &result.Float64
	}
	if duration.Valid {
		m.DurationSeconds = &duration.Float64
	}
	if endReason.Valid {
		m.EndReason = &endReason.String
	}
	if taint.Valid {
		m.Taint = &taint.String
	}
	return m, nil
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	n := len(matches)
	tournamentIDs := make([]int, n)
	gameIDs := make([]int, n)
	seasonIDs := make([]int, n)
	p1 := make([]int, n)
	p2 := make([]int, n)
	for i, m := range matches {
		tournamentIDs[i] = m.TournamentID
		gameIDs[i] = m.GameID
		seasonIDs[i] = m.SeasonID
		p1[i] = m.Player1ID
		p2[i] = m.Player2ID
	}

	// WITH ORDINALITY keeps RETURNING rows in input order.
	query := `
		INSERT INTO matches (tournament_id, game_id, season_id, player1_id, player2_id)
		SELECT t, g, s, a, b
		FROM UNNEST($1::int[], $2::int[], $3::int[], $4::int[], $5::int[]) WITH ORDINALITY AS u(t, g, s, a, b, ord)
		ORDER BY ord
		RETURNING id, created_at`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query,
		pq.Array(tournamentIDs), pq.Array(gameIDs), pq.Array(seasonIDs), pq.Array(p1), pq.Array(p2),
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if i >= n {
			return fmt.Errorf("match batch insert returned more rows than inserted")
		}
		if scanErr := rows.Scan(&matches[i].ID, &matches[i].CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to scan created match: %w", scanErr)
		}
		i++
	}
	if err = rows.Err(); err != nil {
		return r.handleMatchError(err)
	}
	if i != n {
		return fmt.Errorf("match batch insert returned %d rows, expected %d", i, n)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, err
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	m, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrMatchNotFound) {
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	return m, err
}

func (r *postgresMatchRepository) ListPendingIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM matches WHERE NOT ran ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending matches: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pending match id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pending match iteration: %w", err)
	}
	return ids, nil
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, int, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT ran) FROM matches WHERE tournament_id = $1`
	var total, pending int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return total, pending, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY id ASC`
	return r.list(ctx, exec, query, tournamentID)
}

func (r *postgresMatchRepository) ListPlayedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE season_id = $1 AND ran ORDER BY ran_at ASC NULLS FIRST, id ASC`
	return r.list(ctx, exec, query, seasonID)
}

func (r *postgresMatchRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if m.RanAt == nil {
		now := time.Now().UTC()
		m.RanAt = &now
	}
	query := `
		UPDATE matches
		SET ran = TRUE, ran_at = $1, result = $2, end_reason = $3, duration_seconds = $4, data = $5, taint = $6
		WHERE id = $7`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		m.RanAt, m.Result, m.EndReason, m.DurationSeconds, m.Data, m.Taint, m.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	if err = checkAffectedRows(result, ErrMatchNotFound); err != nil {
		return err
	}
	m.Ran = true
	return nil
}

func (r *postgresMatchRepository) UpdateData(ctx context.Context, exec SQLExecutor, id int, data models.MatchData) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE matches SET data = $1 WHERE id = $2`, data, id)
	if err != nil {
		return fmt.Errorf("failed to update data of match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ClearRatingsBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int64, error) {
	query := `
		UPDATE matches
		SET data = data - 'elo_before' - 'elo_after' - 'elo_change'
		WHERE season_id = $1`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, seasonID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear rating audit for season %d: %w", seasonID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresMatchRepository) SetTaint(ctx context.Context, exec SQLExecutor, id int, taint string) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE matches SET taint = $1 WHERE id = $2`, taint, id)
	if err != nil {
		return fmt.Errorf("failed to taint match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := pqErrorCode(err)
	switch code {
	case pqForeignKeyViolation:
		return ErrMatchInvalidRef
	case "23514":
		if constraint == "matches_result_check" {
			return ErrMatchInvalidResult
		}
	}
	return err
}
