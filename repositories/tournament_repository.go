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
	ErrTournamentNotFound           = errors.New("tournament not found")
	ErrTournamentNameConflict       = errors.New("tournament name already exists")
	ErrTournamentInvalidRef         = errors.New("tournament references a missing game or season")
	ErrTournamentInvalidParticipant = errors.New("tournament participant does not exist")
)

type TournamentRepository interface {
	// Create inserts the tournament and its participant list.
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	// GetByIDForUpdate locks the tournament row until exec's transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	ListParticipantIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error)
	// ListForSweep returns tournaments that are not done, or done without trophies.
	ListForSweep(ctx context.Context) ([]*models.Tournament, error)
	// ListDoneWithoutTrophies returns finished tournaments with no pending matches
	// that were never awarded.
	ListDoneWithoutTrophies(ctx context.Context) ([]*models.Tournament, error)
	GetLastAutomated(ctx context.Context, mode models.TournamentMode) (*models.Tournament, error)
	MarkDone(ctx context.Context, exec SQLExecutor, id int) error
	MarkTrophiesAwarded(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, game_id, season_id, mode, start_date, end_date, is_automated,
		automated_number, done, trophies_awarded_at, created_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	var automatedNumber sql.NullInt64
	err := row.Scan(
		&t.ID, &t.Name, &t.GameID, &t.SeasonID, &t.Mode, &t.StartDate, &t.EndDate, &t.IsAutomated,
		&automatedNumber, &t.Done, &t.TrophiesAwardedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if automatedNumber.Valid {
		n := int(automatedNumber.Int64)
		t.AutomatedNumber = &n
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	e := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (name, game_id, season_id, mode, start_date, end_date, is_automated, automated_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, done, created_at`

	err := e.QueryRowContext(ctx, query,
		t.Name, t.GameID, t.SeasonID, t.Mode, t.StartDate, t.EndDate, t.IsAutomated, t.AutomatedNumber,
	).Scan(&t.ID, &t.Done, &t.CreatedAt)
	if err != nil {
		return r.handleTournamentError(err)
	}

	if len(t.ParticipantIDs) == 0 {
		return nil
	}
	participants := `
		INSERT INTO tournament_participants (tournament_id, agent_id)
		SELECT $1, a FROM UNNEST($2::int[]) AS a
		ON CONFLICT DO NOTHING`
	if _, err = e.ExecContext(ctx, participants, t.ID, pq.Array(t.ParticipantIDs)); err != nil {
		return r.handleTournamentError(err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, err
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil && !errors.Is(err, ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to lock tournament %d: %w", id, err)
	}
	return t, err
}

func (r *postgresTournamentRepository) ListParticipantIDs(ctx context.Context, exec SQLExecutor, tournamentID int) ([]int, error) {
	query := `SELECT agent_id FROM tournament_participants WHERE tournament_id = $1 ORDER BY agent_id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return ids, nil
}

func (r *postgresTournamentRepository) ListForSweep(ctx context.Context) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE NOT done OR trophies_awarded_at IS NULL
		ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *postgresTournamentRepository) ListDoneWithoutTrophies(ctx context.Context) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + `
		FROM tournaments t
		WHERE t.done
		  AND t.trophies_awarded_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = t.id AND NOT m.ran)
		ORDER BY t.id ASC`
	return r.list(ctx, query)
}

func (r *postgresTournamentRepository) GetLastAutomated(ctx context.Context, mode models.TournamentMode) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE is_automated AND mode = $1
		ORDER BY automated_number DESC NULLS LAST, id DESC
		LIMIT 1`
	t, err := scanTournament(r.db.QueryRowContext(ctx, query, mode))
	if err != nil && !errors.Is(err, ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to get last automated %s tournament: %w", mode, err)
	}
	return t, err
}

func (r *postgresTournamentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) MarkDone(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE tournaments SET done = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d done: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) MarkTrophiesAwarded(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	query := `UPDATE tournaments SET trophies_awarded_at = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark trophies awarded for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	code, constraint := pqErrorCode(err)
	switch code {
	case pqUniqueViolation:
		if constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
	case pqForeignKeyViolation:
		switch constraint {
		case "tournament_participants_agent_id_fkey":
			return ErrTournamentInvalidParticipant
		default:
			return ErrTournamentInvalidRef
		}
	}
	return err
}
