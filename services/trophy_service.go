package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dosada05/colosseum/brackets"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
	"golang.org/x/sync/errgroup"
)

const backfillConcurrency = 4

type TrophyAwardedPayload struct {
	TournamentID int              `json:"tournament_id"`
	Trophies     []*models.Trophy `json:"trophies"`
}

type TrophyService interface {
	// CreateTrophies awards placements for a finished tournament, replacing any
	// trophies it already has.
	CreateTrophies(ctx context.Context, tournamentID int) ([]*models.Trophy, error)
	// Backfill awards every finished tournament that never got its trophies.
	Backfill(ctx context.Context) (int, error)
	Standings(ctx context.Context, tournamentID int) ([]models.Standing, error)
}

type trophyService struct {
	tx             Transactor
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	trophyRepo     repositories.TrophyRepository
	events         EventPublisher
	counters       *telemetry.Counters
	logger         *slog.Logger
	now            func() time.Time
}

func NewTrophyService(
	tx Transactor,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	trophyRepo repositories.TrophyRepository,
	events EventPublisher,
	counters *telemetry.Counters,
	logger *slog.Logger,
) TrophyService {
	return &trophyService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		trophyRepo:     trophyRepo,
		events:         events,
		counters:       counters,
		logger:         loggerOrDefault(logger),
		now:            time.Now,
	}
}

// ComputeStandings accumulates score and counters per agent over played
// matches. Ordered by score, then agent id.
func ComputeStandings(matches []*models.Match) []models.Standing {
	byAgent := make(map[int]*models.Standing)
	get := func(agentID int) *models.Standing {
		st, ok := byAgent[agentID]
		if !ok {
			st = &models.Standing{AgentID: agentID}
			byAgent[agentID] = st
		}
		return st
	}

	for _, m := range matches {
		outcome, played := m.Outcome()
		if !played || !models.ValidResult(outcome) {
			continue
		}
		p1, p2 := get(m.Player1ID), get(m.Player2ID)
		p1.Score += outcome
		p2.Score += 1 - outcome
		switch outcome {
		case models.ResultPlayer1Win:
			p1.Wins++
			p2.Losses++
		case models.ResultPlayer2Win:
			p1.Losses++
			p2.Wins++
		default:
			p1.Draws++
			p2.Draws++
		}
	}

	standings := make([]models.Standing, 0, len(byAgent))
	for _, st := range byAgent {
		standings = append(standings, *st)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].AgentID < standings[j].AgentID
	})
	return standings
}

// AwardPlacements maps the top three distinct scores to FIRST, SECOND and
// THIRD. Every agent sharing one of those scores gets the placement, so more
// than three agents can be awarded.
func AwardPlacements(standings []models.Standing) map[int]models.TrophyType {
	awards := make(map[int]models.TrophyType)
	placement := -1
	var lastScore float64
	for _, st := range standings {
		if placement < 0 || st.Score != lastScore {
			placement++
			lastScore = st.Score
		}
		if placement >= len(models.PlacementTrophies) {
			break
		}
		awards[st.AgentID] = models.PlacementTrophies[placement]
	}
	return awards
}

func placementRank(t models.TrophyType) int {
	for i, p := range models.PlacementTrophies {
		if p == t {
			return i
		}
	}
	return len(models.PlacementTrophies)
}

func (s *trophyService) Standings(ctx context.Context, tournamentID int) ([]models.Standing, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, mapRepositoryError(err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	return ComputeStandings(matches), nil
}

func (s *trophyService) CreateTrophies(ctx context.Context, tournamentID int) ([]*models.Trophy, error) {
	var trophies []*models.Trophy
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return mapRepositoryError(err)
		}
		_, pending, err := s.matchRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !t.Done || pending > 0 {
			return fmt.Errorf("%w: tournament %d done=%t pending=%d", ErrPreconditionFailed, tournamentID, t.Done, pending)
		}

		matches, err := s.matchRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		awards := AwardPlacements(ComputeStandings(matches))

		trophies = make([]*models.Trophy, 0, len(awards))
		for agentID, trophyType := range awards {
			trophies = append(trophies, &models.Trophy{
				AgentID:      agentID,
				GameID:       t.GameID,
				SeasonID:     t.SeasonID,
				TournamentID: t.ID,
				Type:         trophyType,
			})
		}
		sort.Slice(trophies, func(i, j int) bool {
			ri, rj := placementRank(trophies[i].Type), placementRank(trophies[j].Type)
			if ri != rj {
				return ri < rj
			}
			return trophies[i].AgentID < trophies[j].AgentID
		})

		if _, err = s.trophyRepo.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		if err = s.trophyRepo.CreateBatch(ctx, exec, trophies); err != nil {
			return err
		}
		return s.tournamentRepo.MarkTrophiesAwarded(ctx, exec, tournamentID, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.counters.Inc(telemetry.TrophyRuns)
	s.logger.Info("trophies awarded", slog.Int("tournament_id", tournamentID), slog.Int("count", len(trophies)))
	publish(s.events, tournamentID, brackets.EventTrophiesAwarded, TrophyAwardedPayload{TournamentID: tournamentID, Trophies: trophies})
	return trophies, nil
}

func (s *trophyService) Backfill(ctx context.Context) (int, error) {
	tournaments, err := s.tournamentRepo.ListDoneWithoutTrophies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tournaments without trophies: %w", err)
	}

	var (
		awarded atomic.Int64
		mu      sync.Mutex
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)
	for _, t := range tournaments {
		g.Go(func() error {
			// Отмена останавливает оставшиеся турниры, ошибка одного турнира нет.
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := s.CreateTrophies(gctx, t.ID); err != nil {
				s.logger.Error("trophy backfill failed", slog.Int("tournament_id", t.ID), slog.Any("error", err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("tournament %d: %w", t.ID, err))
				mu.Unlock()
				return nil
			}
			awarded.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	return int(awarded.Load()), errors.Join(append(errs, waitErr)...)
}
