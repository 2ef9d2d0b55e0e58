package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/colosseum/models"
	"github.com/lib/pq"
)

var (
	ErrRatingNotFound   = errors.New("agent rating not found")
	ErrRatingInvalidRef = errors.New("agent rating references a missing agent, game or season")
)

type RatingRepository interface {
	// GetOrCreateForUpdate returns the row for (agent, game, season), creating it
	// with the baseline rating when absent, and locks it until exec commits.
	GetOrCreateForUpdate(ctx context.Context, exec SQLExecutor, agentID, gameID, seasonID int, baseline float64) (*models.AgentRating, error)
	Update(ctx context.Context, exec SQLExecutor, rating *models.AgentRating) error
	// ResetSeason puts every rating row of the season back to the baseline.
	ResetSeason(ctx context.Context, exec SQLExecutor, seasonID int, baseline float64) (int64, error)
	// CreateForAgents inserts baseline rows for the given agents, skipping existing ones.
	CreateForAgents(ctx context.Context, exec SQLExecutor, seasonID int, agents []*models.Agent, baseline float64) error
	// ListBySeason returns the season's ratings with their agents, best elo first.
	ListBySeason(ctx context.Context, seasonID int) ([]*models.AgentRating, error)
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingRepository) GetOrCreateForUpdate(ctx context.Context, exec SQLExecutor, agentID, gameID, seasonID int, baseline float64) (*models.AgentRating, error) {
	e := r.getExecutor(exec)

	insert := `
		INSERT INTO agent_ratings (agent_id, game_id, season_id, elo)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, game_id, season_id) DO NOTHING`
	if _, err := e.ExecContext(ctx, insert, agentID, gameID, seasonID, baseline); err != nil {
		return nil, r.handleRatingError(err)
	}

	query := `
		SELECT id, agent_id, game_id, season_id, wins, losses, draws, score, elo, updated_at
		FROM agent_ratings
		WHERE agent_id = $1 AND game_id = $2 AND season_id = $3
		FOR UPDATE`

	rating := &models.AgentRating{}
	err := e.QueryRowContext(ctx, query, agentID, gameID, seasonID).Scan(
		&rating.ID, &rating.AgentID, &rating.GameID, &rating.SeasonID,
		&rating.Wins, &rating.Losses, &rating.Draws, &rating.Score, &rating.Elo, &rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to lock rating for agent %d: %w", agentID, err)
	}
	return rating, nil
}

func (r *postgresRatingRepository) Update(ctx context.Context, exec SQLExecutor, rating *models.AgentRating) error {
	query := `
		UPDATE agent_ratings
		SET wins = $1, losses = $2, draws = $3, score = $4, elo = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		rating.Wins, rating.Losses, rating.Draws, rating.Score, rating.Elo, rating.ID,
	).Scan(&rating.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRatingNotFound
		}
		return fmt.Errorf("failed to update rating %d: %w", rating.ID, err)
	}
	return nil
}

func (r *postgresRatingRepository) ResetSeason(ctx context.Context, exec SQLExecutor, seasonID int, baseline float64) (int64, error) {
	query := `
		UPDATE agent_ratings
		SET wins = 0, losses = 0, draws = 0, score = 0, elo = $1, updated_at = NOW()
		WHERE season_id = $2`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, baseline, seasonID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset ratings for season %d: %w", seasonID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresRatingRepository) CreateForAgents(ctx context.Context, exec SQLExecutor, seasonID int, agents []*models.Agent, baseline float64) error {
	if len(agents) == 0 {
		return nil
	}
	agentIDs := make([]int, len(agents))
	gameIDs := make([]int, len(agents))
	for i, a := range agents {
		agentIDs[i] = a.ID
		gameIDs[i] = a.GameID
	}

	query := `
		INSERT INTO agent_ratings (agent_id, game_id, season_id, elo)
		SELECT a, g, $3, $4 FROM UNNEST($1::int[], $2::int[]) AS t(a, g)
		ON CONFLICT (agent_id, game_id, season_id) DO NOTHING`

	_, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(agentIDs), pq.Array(gameIDs), seasonID, baseline)
	return r.handleRatingError(err)
}

func (r *postgresRatingRepository) ListBySeason(ctx context.Context, seasonID int) ([]*models.AgentRating, error) {
	query := `
		SELECT r.id, r.agent_id, r.game_id, r.season_id, r.wins, r.losses, r.draws, r.score, r.elo, r.updated_at,
		       a.id, a.name, a.owner_id, a.game_id, a.active, a.created_at
		FROM agent_ratings r
		JOIN agents a ON a.id = r.agent_id
		WHERE r.season_id = $1
		ORDER BY r.elo DESC, r.agent_id ASC`

	rows, err := r.db.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	ratings := make([]*models.AgentRating, 0)
	for rows.Next() {
		rt := &models.AgentRating{Agent: &models.Agent{}}
		if scanErr := rows.Scan(
			&rt.ID, &rt.AgentID, &rt.GameID, &rt.SeasonID, &rt.Wins, &rt.Losses, &rt.Draws, &rt.Score, &rt.Elo, &rt.UpdatedAt,
			&rt.Agent.ID, &rt.Agent.Name, &rt.Agent.OwnerID, &rt.Agent.GameID, &rt.Agent.Active, &rt.Agent.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", scanErr)
		}
		ratings = append(ratings, rt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rating rows iteration: %w", err)
	}
	return ratings, nil
}

func (r *postgresRatingRepository) handleRatingError(err error) error {
	if err == nil {
		return nil
	}
	if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
		return ErrRatingInvalidRef
	}
	return err
}
