package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/colosseum/elo"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
	"github.com/Dosada05/colosseum/telemetry"
)

// RecalculateResult summarises a season replay.
type RecalculateResult struct {
	SeasonID        int   `json:"season_id"`
	RatingsReset    int64 `json:"ratings_reset"`
	MatchesReplayed int   `json:"matches_replayed"`
	MatchesSkipped  int   `json:"matches_skipped"`
}

type RatingService interface {
	// ApplyMatch updates both players' season ratings from a played match and
	// writes the elo audit trail onto it. exec must be a transaction.
	ApplyMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error
	RecordMatchRatings(ctx context.Context, matchID int) error
	RecalculateSeason(ctx context.Context, seasonID int) (*RecalculateResult, error)
	ListSeasonRatings(ctx context.Context, seasonID int) ([]*models.AgentRating, error)
}

type ratingService struct {
	tx         Transactor
	ratingRepo repositories.RatingRepository
	matchRepo  repositories.MatchRepository
	seasonRepo repositories.SeasonRepository
	kFactor    float64
	counters   *telemetry.Counters
	logger     *slog.Logger
}

func NewRatingService(
	tx Transactor,
	ratingRepo repositories.RatingRepository,
	matchRepo repositories.MatchRepository,
	seasonRepo repositories.SeasonRepository,
	counters *telemetry.Counters,
	logger *slog.Logger,
) RatingService {
	return &ratingService{
		tx:         tx,
		ratingRepo: ratingRepo,
		matchRepo:  matchRepo,
		seasonRepo: seasonRepo,
		kFactor:    elo.KFactor,
		counters:   counters,
		logger:     loggerOrDefault(logger),
	}
}

func (s *ratingService) ApplyMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	outcome, played := match.Outcome()
	if !played {
		return fmt.Errorf("match %d: %w", match.ID, ErrMatchNotPlayed)
	}
	if !models.ValidResult(outcome) {
		return fmt.Errorf("match %d result %v: %w", match.ID, outcome, ErrInvalidResult)
	}
	if match.Data.Rated() {
		s.counters.Inc(telemetry.AnomalyAlreadyRated)
		return fmt.Errorf("match %d: %w", match.ID, ErrMatchAlreadyRated)
	}
	if match.Player1ID == match.Player2ID {
		return fmt.Errorf("match %d pairs agent %d with itself: %w", match.ID, match.Player1ID, ErrValidationFailed)
	}

	// Блокируем строки рейтинга всегда в порядке возрастания id агента.
	lockOrder := []int{match.Player1ID, match.Player2ID}
	if lockOrder[0] > lockOrder[1] {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	locked := make(map[int]*models.AgentRating, 2)
	for _, agentID := range lockOrder {
		rating, err := s.ratingRepo.GetOrCreateForUpdate(ctx, exec, agentID, match.GameID, match.SeasonID, elo.DefaultRating)
		if err != nil {
			return fmt.Errorf("failed to lock rating of agent %d: %w", agentID, err)
		}
		locked[agentID] = rating
	}
	r1, r2 := locked[match.Player1ID], locked[match.Player2ID]

	before1, before2 := r1.Elo, r2.Elo
	after1, after2 := elo.Update(before1, before2, outcome, s.kFactor)

	applyOutcome(r1, outcome)
	applyOutcome(r2, 1-outcome)
	r1.Elo, r2.Elo = after1, after2

	for _, rating := range []*models.AgentRating{r1, r2} {
		if err := s.ratingRepo.Update(ctx, exec, rating); err != nil {
			return fmt.Errorf("failed to save rating of agent %d: %w", rating.AgentID, err)
		}
	}

	k1, k2 := models.AgentKey(match.Player1ID), models.AgentKey(match.Player2ID)
	match.Data.EloBefore = map[string]float64{k1: before1, k2: before2}
	match.Data.EloAfter = map[string]float64{k1: after1, k2: after2}
	match.Data.EloChange = map[string]float64{k1: after1 - before1, k2: after2 - before2}

	if err := s.matchRepo.UpdateData(ctx, exec, match.ID, match.Data); err != nil {
		return fmt.Errorf("failed to write rating audit of match %d: %w", match.ID, err)
	}
	return nil
}

func applyOutcome(r *models.AgentRating, score float64) {
	switch score {
	case models.ResultPlayer1Win:
		r.Wins++
	case models.ResultPlayer2Win:
		r.Losses++
	default:
		r.Draws++
	}
	r.Score += score
}

func (s *ratingService) RecordMatchRatings(ctx context.Context, matchID int) error {
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return mapRepositoryError(err)
		}
		return s.ApplyMatch(ctx, exec, match)
	})
}

// RecalculateSeason resets every rating of the season and replays its played
// matches in completion order. Everything happens in one transaction.
func (s *ratingService) RecalculateSeason(ctx context.Context, seasonID int) (*RecalculateResult, error) {
	if _, err := s.seasonRepo.GetByID(ctx, nil, seasonID); err != nil {
		return nil, mapRepositoryError(err)
	}

	result := &RecalculateResult{SeasonID: seasonID}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Match rows before rating rows, the same order ReportResult locks them in.
		if _, err := s.matchRepo.ClearRatingsBySeason(ctx, exec, seasonID); err != nil {
			return err
		}
		var err error
		result.RatingsReset, err = s.ratingRepo.ResetSeason(ctx, exec, seasonID, elo.DefaultRating)
		if err != nil {
			return err
		}

		played, err := s.matchRepo.ListPlayedBySeason(ctx, exec, seasonID)
		if err != nil {
			return err
		}
		for _, match := range played {
			match.Data.ClearRatings()
			applyErr := s.ApplyMatch(ctx, exec, match)
			if errors.Is(applyErr, ErrInvalidResult) || errors.Is(applyErr, ErrMatchNotPlayed) {
				s.logger.Warn("skipping unrateable match during recalculation",
					slog.Int("season_id", seasonID), slog.Int("match_id", match.ID), slog.Any("error", applyErr))
				result.MatchesSkipped++
				continue
			}
			if applyErr != nil {
				return applyErr
			}
			result.MatchesReplayed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recalculate season %d: %w", seasonID, err)
	}

	s.logger.Info("season ratings recalculated",
		slog.Int("season_id", seasonID),
		slog.Int64("ratings_reset", result.RatingsReset),
		slog.Int("matches_replayed", result.MatchesReplayed),
		slog.Int("matches_skipped", result.MatchesSkipped),
	)
	return result, nil
}

func (s *ratingService) ListSeasonRatings(ctx context.Context, seasonID int) ([]*models.AgentRating, error) {
	if _, err := s.seasonRepo.GetByID(ctx, nil, seasonID); err != nil {
		return nil, mapRepositoryError(err)
	}
	ratings, err := s.ratingRepo.ListBySeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings of season %d: %w", seasonID, err)
	}
	return ratings, nil
}
