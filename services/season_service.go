package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/colosseum/elo"
	"github.com/Dosada05/colosseum/models"
	"github.com/Dosada05/colosseum/repositories"
)

const automatedSeasonDays = 7

type SeasonService interface {
	CurrentSeason(ctx context.Context) (*models.Season, error)
	// UpdateSeasonsState deactivates seasons whose end date has passed.
	UpdateSeasonsState(ctx context.Context, now time.Time) (int64, error)
	// CreateAutomatedSeason opens the next weekly season unless an automated one
	// is still active. It returns nil when nothing was created.
	CreateAutomatedSeason(ctx context.Context, now time.Time) (*models.Season, error)
}

type seasonService struct {
	tx         Transactor
	seasonRepo repositories.SeasonRepository
	agentRepo  repositories.AgentRepository
	ratingRepo repositories.RatingRepository
	enabled    bool
	logger     *slog.Logger
}

func NewSeasonService(
	tx Transactor,
	seasonRepo repositories.SeasonRepository,
	agentRepo repositories.AgentRepository,
	ratingRepo repositories.RatingRepository,
	automatedSeasons bool,
	logger *slog.Logger,
) SeasonService {
	return &seasonService{
		tx:         tx,
		seasonRepo: seasonRepo,
		agentRepo:  agentRepo,
		ratingRepo: ratingRepo,
		enabled:    automatedSeasons,
		logger:     loggerOrDefault(logger),
	}
}

func (s *seasonService) CurrentSeason(ctx context.Context) (*models.Season, error) {
	season, err := s.seasonRepo.GetCurrent(ctx, nil)
	if errors.Is(err, repositories.ErrSeasonNotFound) {
		return nil, ErrNoCurrentSeason
	}
	return season, err
}

func (s *seasonService) UpdateSeasonsState(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.seasonRepo.DeactivateEnded(ctx, nil, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("seasons deactivated", slog.Int64("count", n))
	}
	return n, nil
}

func (s *seasonService) CreateAutomatedSeason(ctx context.Context, now time.Time) (*models.Season, error) {
	if !s.enabled {
		return nil, nil
	}

	last, err := s.seasonRepo.GetLastAutomated(ctx, nil)
	if err != nil && !errors.Is(err, repositories.ErrSeasonNotFound) {
		return nil, err
	}
	next := 1
	if last != nil {
		if last.Active && !last.Ended(now) {
			return nil, nil
		}
		if last.AutomatedNumber != nil {
			next = *last.AutomatedNumber + 1
		}
	}

	agents, err := s.agentRepo.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}

	start := startOfDay(now)
	end := endOfDay(now).AddDate(0, 0, automatedSeasonDays-1)
	season := &models.Season{
		Name:            fmt.Sprintf("Automated Season %d", next),
		Active:          true,
		Main:            true,
		StartDate:       &start,
		EndDate:         &end,
		IsAutomated:     true,
		AutomatedNumber: &next,
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.seasonRepo.ClearMain(ctx, exec); err != nil {
			return err
		}
		if err := s.seasonRepo.Create(ctx, exec, season); err != nil {
			return err
		}
		return s.ratingRepo.CreateForAgents(ctx, exec, season.ID, agents, elo.DefaultRating)
	})
	if err != nil {
		s.logger.Warn("failed to create automated season", slog.String("name", season.Name), slog.Any("error", err))
		return nil, mapRepositoryError(err)
	}

	s.logger.Info("automated season created",
		slog.Int("season_id", season.ID),
		slog.String("name", season.Name),
		slog.Int("ratings", len(agents)),
	)
	return season, nil
}
