package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/colosseum/models"
)

var (
	ErrSeasonNotFound     = errors.New("season not found")
	ErrSeasonNameConflict = errors.New("season name already exists")
	ErrSeasonMainConflict = errors.New("another active main season exists")
)

type SeasonRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	// GetCurrent returns the active main season.
	GetCurrent(ctx context.Context, exec SQLExecutor) (*models.Season, error)
	GetLastAutomated(ctx context.Context, exec SQLExecutor) (*models.Season, error)
	Create(ctx context.Context, exec SQLExecutor, s *models.Season) error
	ClearMain(ctx context.Context, exec SQLExecutor) error
	// DeactivateEnded switches off every active season whose end date is before now.
	DeactivateEnded(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error)
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

func (r *postgresSeasonRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const seasonColumns = `id, name, active, main, start_date, end_date, is_automated, automated_number, created_at`

func scanSeason(row rowScanner) (*models.Season, error) {
	s := &models.Season{}
	var automatedNumber sql.NullInt64
	err := row.Scan(
		&s.ID, &s.Name, &s.Active, &s.Main, &s.StartDate, &s.EndDate,
		&s.IsAutomated, &automatedNumber, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	if automatedNumber.Valid {
		n := int(automatedNumber.Int64)
		s.AutomatedNumber = &n
	}
	return s, nil
}

func (r *postgresSeasonRepository) getOne(ctx context.Context, exec SQLExecutor, what, query string, args ...interface{}) (*models.Season, error) {
	s, err := scanSeason(r.getExecutor(exec).QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrSeasonNotFound) {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return s, err
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1`
	return r.getOne(ctx, exec, fmt.Sprintf("season %d", id), query, id)
}

func (r *postgresSeasonRepository) GetCurrent(ctx context.Context, exec SQLExecutor) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE active AND main ORDER BY id DESC LIMIT 1`
	return r.getOne(ctx, exec, "current season", query)
}

func (r *postgresSeasonRepository) GetLastAutomated(ctx context.Context, exec SQLExecutor) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE is_automated ORDER BY automated_number DESC NULLS LAST, id DESC LIMIT 1`
	return r.getOne(ctx, exec, "last automated season", query)
}

func (r *postgresSeasonRepository) Create(ctx context.Context, exec SQLExecutor, s *models.Season) error {
	query := `
		INSERT INTO seasons (name, active, main, start_date, end_date, is_automated, automated_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		s.Name, s.Active, s.Main, s.StartDate, s.EndDate, s.IsAutomated, s.AutomatedNumber,
	).Scan(&s.ID, &s.CreatedAt)
	return r.handleSeasonError(err)
}

func (r *postgresSeasonRepository) ClearMain(ctx context.Context, exec SQLExecutor) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE seasons SET main = FALSE WHERE main`)
	if err != nil {
		return fmt.Errorf("failed to clear main season flag: %w", err)
	}
	return nil
}

func (r *postgresSeasonRepository) DeactivateEnded(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error) {
	query := `UPDATE seasons SET active = FALSE WHERE active AND end_date IS NOT NULL AND end_date < $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate ended seasons: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

func (r *postgresSeasonRepository) handleSeasonError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := pqErrorCode(err)
	if code == pqUniqueViolation {
		switch constraint {
		case "seasons_name_key":
			return ErrSeasonNameConflict
		case "uq_seasons_current":
			return ErrSeasonMainConflict
		}
	}
	return err
}
