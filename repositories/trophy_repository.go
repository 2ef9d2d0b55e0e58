package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/colosseum/models"
	"github.com/lib/pq"
)

var ErrTrophyConflict = errors.New("agent already holds a trophy for this tournament")

type TrophyRepository interface {
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error)
	CreateBatch(ctx context.Context, exec SQLExecutor, trophies []*models.Trophy) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Trophy, error)
}

type postgresTrophyRepository struct {
	db *sql.DB
}

func NewPostgresTrophyRepository(db *sql.DB) TrophyRepository {
	return &postgresTrophyRepository{db: db}
}

func (r *postgresTrophyRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTrophyRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int64, error) {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM trophies WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trophies of tournament %d: %w", tournamentID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresTrophyRepository) CreateBatch(ctx context.Context, exec SQLExecutor, trophies []*models.Trophy) error {
	if len(trophies) == 0 {
		return nil
	}
	n := len(trophies)
	agentIDs := make([]int, n)
	gameIDs := make([]int, n)
	seasonIDs := make([]int, n)
	tournamentIDs := make([]int, n)
	types := make([]string, n)
	for i, t := range trophies {
		agentIDs[i] = t.AgentID
		gameIDs[i] = t.GameID
		seasonIDs[i] = t.SeasonID
		tournamentIDs[i] = t.TournamentID
		types[i] = string(t.Type)
	}

	query := `
		INSERT INTO trophies (agent_id, game_id, season_id, tournament_id, type)
		SELECT a, g, s, t, ty
		FROM UNNEST($1::int[], $2::int[], $3::int[], $4::int[], $5::text[]) WITH ORDINALITY AS u(a, g, s, t, ty, ord)
		ORDER BY ord
		RETURNING id, created_at`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query,
		pq.Array(agentIDs), pq.Array(gameIDs), pq.Array(seasonIDs), pq.Array(tournamentIDs), pq.Array(types),
	)
	if err != nil {
		return r.handleTrophyError(err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() && i < n {
		if scanErr := rows.Scan(&trophies[i].ID, &trophies[i].CreatedAt); scanErr != nil {
			return fmt.Errorf("failed to scan created trophy: %w", scanErr)
		}
		i++
	}
	return r.handleTrophyError(rows.Err())
}

func (r *postgresTrophyRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Trophy, error) {
	query := `
		SELECT id, agent_id, game_id, season_id, tournament_id, type, created_at
		FROM trophies
		WHERE tournament_id = $1
		ORDER BY type ASC, agent_id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trophies of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	trophies := make([]*models.Trophy, 0)
	for rows.Next() {
		t := &models.Trophy{}
		if scanErr := rows.Scan(&t.ID, &t.AgentID, &t.GameID, &t.SeasonID, &t.TournamentID, &t.Type, &t.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan trophy row: %w", scanErr)
		}
		trophies = append(trophies, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during trophy rows iteration: %w", err)
	}
	return trophies, nil
}

func (r *postgresTrophyRepository) handleTrophyError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err, "trophies_agent_tournament_key") {
		return ErrTrophyConflict
	}
	return err
}
