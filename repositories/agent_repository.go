package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/colosseum/models"
	"github.com/lib/pq"
)

var ErrAgentNotFound = errors.New("agent not found")

type AgentRepository interface {
	GetByID(ctx context.Context, id int) (*models.Agent, error)
	ListByIDs(ctx context.Context, ids []int) ([]*models.Agent, error)
	// ListActive returns active agents, optionally restricted to one game.
	ListActive(ctx context.Context, gameID *int) ([]*models.Agent, error)
}

type postgresAgentRepository struct {
	db *sql.DB
}

func NewPostgresAgentRepository(db *sql.DB) AgentRepository {
	return &postgresAgentRepository{db: db}
}

const agentColumns = `id, name, owner_id, game_id, active, created_at`

func scanAgent(row rowScanner) (*models.Agent, error) {
	a := &models.Agent{}
	err := row.Scan(&a.ID, &a.Name, &a.OwnerID, &a.GameID, &a.Active, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresAgentRepository) GetByID(ctx context.Context, id int) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	a, err := scanAgent(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrAgentNotFound) {
		return nil, fmt.Errorf("failed to get agent %d: %w", id, err)
	}
	return a, err
}

func (r *postgresAgentRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Agent, error) {
	if len(ids) == 0 {
		return []*models.Agent{}, nil
	}
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = ANY($1) ORDER BY id ASC`
	return r.list(ctx, query, pq.Array(ids))
}

func (r *postgresAgentRepository) ListActive(ctx context.Context, gameID *int) ([]*models.Agent, error) {
	if gameID != nil {
		query := `SELECT ` + agentColumns + ` FROM agents WHERE active AND game_id = $1 ORDER BY id ASC`
		return r.list(ctx, query, *gameID)
	}
	query := `SELECT ` + agentColumns + ` FROM agents WHERE active ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *postgresAgentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Agent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*models.Agent, 0)
	for rows.Next() {
		a, scanErr := scanAgent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", scanErr)
		}
		agents = append(agents, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during agent rows iteration: %w", err)
	}
	return agents, nil
}
