package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/colosseum/models"
)

var ErrGameNotFound = errors.New("game not found")

type GameRepository interface {
	GetByID(ctx context.Context, id int) (*models.Game, error)
	GetByName(ctx context.Context, name string) (*models.Game, error)
	GetFirstActive(ctx context.Context) (*models.Game, error)
}

type postgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) GameRepository {
	return &postgresGameRepository{db: db}
}

const gameColumns = `id, name, active, created_at`

func (r *postgresGameRepository) scanGame(row rowScanner) (*models.Game, error) {
	g := &models.Game{}
	if err := row.Scan(&g.ID, &g.Name, &g.Active, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`
	g, err := r.scanGame(r.db.QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrGameNotFound) {
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}
	return g, err
}

func (r *postgresGameRepository) GetByName(ctx context.Context, name string) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE name = $1`
	g, err := r.scanGame(r.db.QueryRowContext(ctx, query, name))
	if err != nil && !errors.Is(err, ErrGameNotFound) {
		return nil, fmt.Errorf("failed to get game %q: %w", name, err)
	}
	return g, err
}

func (r *postgresGameRepository) GetFirstActive(ctx context.Context) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE active ORDER BY id ASC LIMIT 1`
	g, err := r.scanGame(r.db.QueryRowContext(ctx, query))
	if err != nil && !errors.Is(err, ErrGameNotFound) {
		return nil, fmt.Errorf("failed to get first active game: %w", err)
	}
	return g, err
}
